// Package readability extracts the main content of captured pages with
// go-readability.
package readability

import (
	"net/url"
	"strings"

	"github.com/fwojciec/siteclone"
	"github.com/go-shiori/go-readability"
)

// Ensure Extractor implements siteclone.Extractor at compile time.
var _ siteclone.Extractor = (*Extractor)(nil)

// Extractor wraps go-readability to extract main content from HTML.
type Extractor struct {
	// PageURL resolves relative links in the extracted content. Optional.
	PageURL *url.URL
}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract processes raw HTML and returns the main content and its text.
func (e *Extractor) Extract(rawHTML string) (*siteclone.ExtractResult, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, siteclone.Errorf(siteclone.EINVALID, "empty HTML input")
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), e.PageURL)
	if err != nil {
		return nil, siteclone.Errorf(siteclone.ELOWCONTENT, "readability: %v", err)
	}

	return &siteclone.ExtractResult{
		Title:       article.Title,
		ContentHTML: article.Content,
		Text:        strings.Join(strings.Fields(article.TextContent), " "),
	}, nil
}
