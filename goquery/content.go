package goquery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/siteclone"
	"golang.org/x/net/html"
)

// Compile-time interface verification.
var _ siteclone.Extractor = (*Extractor)(nil)

// boilerplateSelector matches page chrome that is not main content.
const boilerplateSelector = `script, style, noscript, template, nav, header, footer, aside, ` +
	`[role="navigation"], [role="banner"], [role="contentinfo"]`

// mainSelectors are tried in order to locate the main content.
var mainSelectors = []string{"main", `[role="main"]`, "article", "#content", ".content"}

// Extractor is a lightweight main-content extractor: it picks the main
// landmark (falling back to body) and drops page chrome.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the page title, main content HTML and its visible text.
func (e *Extractor) Extract(raw string) (*siteclone.ExtractResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, siteclone.Errorf(siteclone.EINVALID, "failed to parse HTML: %v", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	content := doc.Find("body")
	for _, sel := range mainSelectors {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			content = found
			break
		}
	}
	content.Find(boilerplateSelector).Remove()

	contentHTML, err := content.Html()
	if err != nil {
		return nil, siteclone.Errorf(siteclone.EINTERNAL, "failed to render HTML: %v", err)
	}
	return &siteclone.ExtractResult{
		Title:       title,
		ContentHTML: strings.TrimSpace(contentHTML),
		Text:        visibleText(content),
	}, nil
}

// visibleText joins the text nodes below sel with single spaces, so
// adjacent blocks do not run together.
func visibleText(sel *goquery.Selection) string {
	var words []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			words = append(words, strings.Fields(node.Data)...)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, node := range sel.Nodes {
		walk(node)
	}
	return strings.Join(words, " ")
}
