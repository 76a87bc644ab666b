package main_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fwojciec/siteclone"
	main "github.com/fwojciec/siteclone/cmd/siteclone"
	"github.com/fwojciec/siteclone/fs"
	"github.com/fwojciec/siteclone/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const siteRoot = "https://acme.test/"

// fastPolicy disables every wait so fixture crawls finish instantly.
const fastPolicy = `max_pages: 10
hover_wait: 0s
menu_open_wait: 0s
action_delay: 0s
scroll_interval: 0s
loading_timeout: 0s
stabilize_max_wait: 0s
retry_delay: 0s
min_content_length: 10
concurrency: 1
gc_interval: 0
requests_per_second: 0
`

func navLink(sel, text, href string, x, y float64, visible bool) siteclone.Element {
	return siteclone.Element{
		Selector: sel,
		Tag:      "a",
		Text:     text,
		Href:     href,
		Rect:     siteclone.Rect{X: x, Y: y, Width: 80, Height: 30},
		Visible:  visible,
		InNav:    true,
	}
}

func article(title, body string) *mock.Page {
	return &mock.Page{HTML: "<html><head><title>" + title + "</title></head><body><main><h1>" + title + "</h1><p>" + body + "</p></main></body></html>"}
}

// acmeSite is a root page with a three-item "Company" hover menu, a direct
// "Contact" link and one body link. The navigation lives in Elements only,
// so the body link is the sole link the extractor finds.
func acmeSite() *mock.Site {
	return mock.NewSite().
		Add(siteRoot, &mock.Page{
			HTML: `<html><head><title>Acme</title></head><body>
<main><h1>Acme Corporation</h1><p>Industrial anvils and rocket skates since 1949.</p>
<a href="/news">Latest news</a></main></body></html>`,
			Elements: []siteclone.Element{
				navLink("#company", "Company", "", 100, 20, true),
				navLink("#contact", "Contact", siteRoot+"contact", 300, 20, true),
				navLink("#about", "About", siteRoot+"company/about", 100, 60, false),
				navLink("#history", "History", siteRoot+"company/history", 100, 90, false),
				navLink("#vision", "Vision", siteRoot+"company/vision", 100, 120, false),
			},
			Reveals: map[string][]string{"#company": {"#about", "#history", "#vision"}},
		}).
		Add(siteRoot+"company/about", article("About", "A family business building anvils for cartoon coyotes.")).
		Add(siteRoot+"company/history", article("History", "Founded in a desert garage, moved to a canyon factory in 1962.")).
		Add(siteRoot+"company/vision", article("Vision", "Every falling object deserves precision engineering and a shadow.")).
		Add(siteRoot+"contact", article("Contact", "Write to PO Box 42, Mesa Flats, or send a carrier pigeon.")).
		Add(siteRoot+"news", article("News", "The new jet-powered roller skates ship next spring in three colors."))
}

type harness struct {
	main   *main.Main
	dir    string
	policy string
}

func newHarness(t *testing.T, site *mock.Site) *harness {
	t.Helper()
	dir := t.TempDir()
	policy := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(policy, []byte(fastPolicy), 0644))

	m := main.NewMain()
	m.DBPath = filepath.Join(dir, "siteclone.db")
	m.Pool = site.Pool()
	return &harness{main: m, dir: dir, policy: policy}
}

func (h *harness) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := h.main.Run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRun_HelpFlag(t *testing.T) {
	t.Parallel()

	m := main.NewMain()
	m.DBPath = filepath.Join(t.TempDir(), "test.db")
	var stdout, stderr bytes.Buffer

	err := m.Run(context.Background(), []string{"--help"}, &stdout, &stderr)

	require.NoError(t, err)
	for _, cmd := range []string{"detect", "clone", "serve", "history"} {
		assert.Contains(t, stdout.String(), cmd)
	}
	assert.Contains(t, stdout.String(), "Usage:")
}

func TestRun_NoArgs(t *testing.T) {
	t.Parallel()

	m := main.NewMain()
	m.DBPath = filepath.Join(t.TempDir(), "test.db")
	var stdout, stderr bytes.Buffer

	err := m.Run(context.Background(), nil, &stdout, &stderr)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no command specified")
}

func TestRun_HelpWithoutCreatingDB(t *testing.T) {
	t.Parallel()

	m := main.NewMain()
	m.DBPath = filepath.Join(t.TempDir(), "never.db")
	var stdout, stderr bytes.Buffer

	require.NoError(t, m.Run(context.Background(), []string{"-h"}, &stdout, &stderr))

	_, err := os.Stat(m.DBPath)
	assert.True(t, os.IsNotExist(err))
}

func TestCmdDetect(t *testing.T) {
	t.Parallel()

	t.Run("prints detected menus as YAML", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, acmeSite())

		stdout, _, err := h.run(t, "detect", "--policy", h.policy, siteRoot)

		require.NoError(t, err)
		assert.Contains(t, stdout, "trigger: Company")
		assert.Contains(t, stdout, "name: About")
		assert.Contains(t, stdout, "url: https://acme.test/company/history")
		assert.Contains(t, stdout, "trigger: Contact")
	})

	t.Run("writes menus to a file", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, acmeSite())
		out := filepath.Join(h.dir, "menus.yaml")

		stdout, _, err := h.run(t, "detect", "--policy", h.policy, "-o", out, siteRoot)

		require.NoError(t, err)
		assert.Contains(t, stdout, "Wrote 2 menus")
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Contains(t, string(data), "trigger: Company")
	})

	t.Run("unreachable root fails", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, mock.NewSite())

		_, _, err := h.run(t, "detect", "--policy", h.policy, siteRoot)

		assert.Equal(t, siteclone.EROOTLOAD, siteclone.ErrorCode(err))
	})

	t.Run("rejects unknown profiles", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, acmeSite())

		_, _, err := h.run(t, "detect", "--policy", h.policy, "--profile", "museum", siteRoot)

		assert.Equal(t, siteclone.ENOTFOUND, siteclone.ErrorCode(err))
	})
}

func TestCmdClone(t *testing.T) {
	t.Parallel()

	t.Run("clones menu and body pages and archives the session", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, acmeSite())
		out := filepath.Join(h.dir, "out")

		stdout, _, err := h.run(t, "clone", "-q", "--policy", h.policy, "-o", out, "--markdown", siteRoot)
		require.NoError(t, err)

		// Then the summary names the output directory
		assert.Contains(t, stdout, "Cloned 6 pages to "+filepath.Join(out, "acme_test-"))

		// And the directory holds the pages, sidecars and manifest
		entries, err := os.ReadDir(out)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		cloneDir := filepath.Join(out, entries[0].Name())

		data, err := os.ReadFile(filepath.Join(cloneDir, fs.ManifestFile))
		require.NoError(t, err)
		var manifest siteclone.Manifest
		require.NoError(t, json.Unmarshal(data, &manifest))
		assert.Equal(t, siteRoot, manifest.RootURL)
		require.Len(t, manifest.Pages, 6)
		assert.Equal(t, "index", manifest.Pages[0].Name)
		assert.Equal(t, siteclone.PriorityMenu, manifest.Pages[1].Priority)

		for _, p := range manifest.Pages {
			_, err := os.Stat(filepath.Join(cloneDir, p.File))
			assert.NoError(t, err, p.File)
		}
		md, err := os.ReadFile(filepath.Join(cloneDir, "Company_About.md"))
		require.NoError(t, err)
		assert.Contains(t, string(md), "source: https://acme.test/company/about")

		// And the history lists the session
		stdout, _, err = h.run(t, "history")
		require.NoError(t, err)
		assert.Contains(t, stdout, siteRoot)
		assert.Contains(t, stdout, "done")
	})

	t.Run("uses pre-approved menus", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, acmeSite())
		menus := filepath.Join(h.dir, "menus.yaml")
		require.NoError(t, os.WriteFile(menus, []byte(`- trigger: Company
  items:
    - name: Vision
      url: https://acme.test/company/vision
`), 0644))

		stdout, _, err := h.run(t, "clone", "-q", "--policy", h.policy, "--max-pages", "2",
			"-o", filepath.Join(h.dir, "out"), "--menus", menus, siteRoot)

		require.NoError(t, err)
		assert.Contains(t, stdout, "Cloned 2 pages")

		history, _, err := h.run(t, "history", "list", "--root", siteRoot)
		require.NoError(t, err)
		id := strings.Fields(strings.Split(history, "\n")[1])[0]

		show, _, err := h.run(t, "history", "show", id)
		require.NoError(t, err)
		assert.Contains(t, show, "Company_Vision.html")
		assert.NotContains(t, show, "Company_About")
	})

	t.Run("reports a failed root load", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, mock.NewSite())

		_, _, err := h.run(t, "clone", "-q", "--policy", h.policy, "-o", filepath.Join(h.dir, "out"), siteRoot)

		assert.Equal(t, siteclone.EROOTLOAD, siteclone.ErrorCode(err))

		stdout, _, err := h.run(t, "history", "list", "--phase", "error")
		require.NoError(t, err)
		assert.Contains(t, stdout, siteRoot)
	})

	t.Run("rejects invalid URLs", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, acmeSite())

		_, _, err := h.run(t, "clone", "-q", "--policy", h.policy, "ftp://acme.test/")

		assert.Equal(t, siteclone.EINVALID, siteclone.ErrorCode(err))
	})
}
