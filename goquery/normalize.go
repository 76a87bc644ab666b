package goquery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/siteclone"
)

// Compile-time interface verification.
var _ siteclone.ContentNormalizer = (*Normalizer)(nil)

// volatileSelector matches markup that changes between loads of the same
// page without changing what the page is.
const volatileSelector = "script, style, noscript, template, link, meta, iframe, svg, input, select, textarea"

// chromeSelector matches the site template shared by every page.
const chromeSelector = "nav, header, footer, aside, [role=navigation], [role=banner], [role=contentinfo], [role=complementary]"

// mainSelector matches the region holding a page's own content.
const mainSelector = "main, [role=main], article"

// Normalizer reduces a page to the visible text of its main content.
type Normalizer struct{}

// NewNormalizer creates a new Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize returns the visible text of the page's main region with
// whitespace collapsed. Tags, attributes, comments and the navigation,
// header, footer and aside chrome are dropped, so pages sharing a template
// compare by what they say. A page that is nothing but chrome falls back
// to all of its text.
func (n *Normalizer) Normalize(raw string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", siteclone.Errorf(siteclone.EINVALID, "failed to parse HTML: %v", err)
	}

	body := doc.Find("body")
	body.Find(volatileSelector).Remove()
	all := visibleText(body)

	scope := body
	if main := body.Find(mainSelector).First(); main.Length() > 0 {
		scope = main
	}
	scope.Find(chromeSelector).Remove()
	if text := visibleText(scope); text != "" {
		return text, nil
	}
	return all, nil
}
