// Package trafilatura extracts the main content of captured pages with
// go-trafilatura.
package trafilatura

import (
	"bytes"
	"strings"

	"github.com/fwojciec/siteclone"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"
)

// Ensure Extractor implements siteclone.Extractor at compile time.
var _ siteclone.Extractor = (*Extractor)(nil)

// Extractor wraps go-trafilatura to extract main content from HTML.
type Extractor struct {
	opts trafilatura.Options
}

// NewExtractor creates a new Extractor. Fallback extractors are enabled
// since marketing pages often defeat the primary heuristics.
func NewExtractor() *Extractor {
	return &Extractor{
		opts: trafilatura.Options{
			EnableFallback:  true,
			ExcludeComments: true,
		},
	}
}

// Extract processes raw HTML and returns the main content and its text.
// A page trafilatura finds no content in yields an empty result, which the
// capture quality gate rejects.
func (e *Extractor) Extract(rawHTML string) (*siteclone.ExtractResult, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, siteclone.Errorf(siteclone.EINVALID, "empty HTML input")
	}

	result, err := trafilatura.Extract(strings.NewReader(rawHTML), e.opts)
	if err != nil || result == nil {
		return &siteclone.ExtractResult{}, nil
	}

	var contentHTML string
	if result.ContentNode != nil {
		contentHTML, err = renderNode(result.ContentNode)
		if err != nil {
			return nil, siteclone.Errorf(siteclone.EINTERNAL, "render content: %v", err)
		}
	}

	return &siteclone.ExtractResult{
		Title:       result.Metadata.Title,
		ContentHTML: contentHTML,
		Text:        strings.Join(strings.Fields(result.ContentText), " "),
	}, nil
}

// renderNode converts an html.Node to a string.
func renderNode(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}
