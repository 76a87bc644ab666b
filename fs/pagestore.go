package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fwojciec/siteclone"
)

// ManifestFile is the name of the manifest written on Commit.
const ManifestFile = "manifest.json"

// Ensure FileStore implements siteclone.PageStore at compile time.
var _ siteclone.PageStore = (*FileStore)(nil)

// FileStore implements siteclone.PageStore with atomic update semantics.
// Pages are saved to a temporary directory, then moved atomically on Commit.
// Each page is written as <name>.html, with an optional <name>.png
// screenshot and <name>.md markdown sidecar.
type FileStore struct {
	baseDir string
	name    string

	// Converter, when set, writes a markdown sidecar for every page.
	Converter siteclone.Converter
	Logger    *slog.Logger
}

// NewFileStore creates a new FileStore.
// baseDir is the parent directory, name is the output directory name.
// Files are saved to baseDir/name.tmp and moved to baseDir/name on Commit.
func NewFileStore(baseDir, name string) *FileStore {
	return &FileStore{
		baseDir: baseDir,
		name:    name,
	}
}

// Dir returns the directory pages end up in after Commit.
func (s *FileStore) Dir() string {
	return s.finalDir()
}

func (s *FileStore) tempDir() string {
	return filepath.Join(s.baseDir, s.name+".tmp")
}

func (s *FileStore) finalDir() string {
	return filepath.Join(s.baseDir, s.name)
}

func (s *FileStore) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

// Save writes the page's files to the temporary directory.
func (s *FileStore) Save(ctx context.Context, content *siteclone.PageContent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	page := content.Page
	if err := validFile(page.File); err != nil {
		return err
	}

	dir := s.tempDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	stem := strings.TrimSuffix(page.File, filepath.Ext(page.File))
	if err := os.WriteFile(filepath.Join(dir, page.File), []byte(content.HTML), 0644); err != nil {
		return err
	}
	if len(content.Screenshot) > 0 {
		if err := os.WriteFile(filepath.Join(dir, stem+".png"), content.Screenshot, 0644); err != nil {
			return err
		}
	}
	if s.Converter != nil {
		md, err := s.Converter.Convert(content.HTML, page.URL)
		if err != nil {
			// A failed sidecar does not fail the capture.
			s.logger().Warn("markdown conversion failed", "url", page.URL, "err", err)
			return nil
		}
		if err := os.WriteFile(filepath.Join(dir, stem+".md"), []byte(FormatMarkdown(&page, md)), 0644); err != nil {
			return err
		}
	}
	return nil
}

// validFile rejects names that would escape the output directory.
func validFile(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return siteclone.Errorf(siteclone.EINVALID, "invalid page file name %q", name)
	}
	if name == ManifestFile {
		return siteclone.Errorf(siteclone.EINVALID, "page file name %q is reserved", name)
	}
	return nil
}

// Commit writes the manifest and replaces the final directory with the
// temporary one. Committing without saved pages still produces a
// directory holding the manifest.
func (s *FileStore) Commit(ctx context.Context, manifest *siteclone.Manifest) error {
	if err := os.MkdirAll(s.tempDir(), 0755); err != nil {
		return err
	}
	if manifest != nil {
		data, err := json.MarshalIndent(manifest, "", "  ")
		if err != nil {
			return fmt.Errorf("encode manifest: %w", err)
		}
		if err := os.WriteFile(filepath.Join(s.tempDir(), ManifestFile), data, 0644); err != nil {
			return err
		}
	}

	// Remove existing final directory if present
	if err := os.RemoveAll(s.finalDir()); err != nil {
		return err
	}

	// Atomically rename temp to final
	if err := os.Rename(s.tempDir(), s.finalDir()); err != nil {
		return err
	}

	return nil
}

// Abort discards everything saved since the store was created.
func (s *FileStore) Abort() error {
	return os.RemoveAll(s.tempDir())
}
