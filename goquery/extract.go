package goquery

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/siteclone"
)

// Compile-time interface verification.
var _ siteclone.LinkExtractor = (*LinkExtractor)(nil)

// linkSelector matches every element that navigates somewhere.
const linkSelector = "a[href], area[href]"

// LinkExtractor extracts every http(s) link of a page. Scope decisions
// (internal, external, excluded) are left to the caller.
type LinkExtractor struct{}

// NewLinkExtractor creates a new LinkExtractor.
func NewLinkExtractor() *LinkExtractor {
	return &LinkExtractor{}
}

// ExtractLinks returns the unique links of html resolved against baseURL,
// in document order. Fragments are stripped and links back to baseURL are
// dropped. The text of the first occurrence wins.
func (e *LinkExtractor) ExtractLinks(html string, baseURL string) ([]siteclone.DiscoveredLink, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, siteclone.Errorf(siteclone.EINVALID, "invalid base URL: %v", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, siteclone.Errorf(siteclone.EINVALID, "failed to parse HTML: %v", err)
	}

	// <base href> changes how relative links resolve.
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}
	self := withoutFragment(base)

	seen := make(map[string]struct{})
	links := []siteclone.DiscoveredLink{}
	doc.Find(linkSelector).Each(func(_ int, sel *goquery.Selection) {
		href, exists := sel.Attr("href")
		if !exists || strings.TrimSpace(href) == "" {
			return
		}

		// Skip non-HTTP links (javascript:, mailto:, etc.)
		if isNonHTTPLink(href) {
			return
		}

		resolved := resolveURL(base, href)
		if resolved == "" || resolved == self {
			return
		}
		if _, ok := seen[resolved]; ok {
			return
		}
		seen[resolved] = struct{}{}

		text := strings.Join(strings.Fields(sel.Text()), " ")
		if text == "" {
			text = strings.TrimSpace(sel.AttrOr("aria-label", sel.AttrOr("title", "")))
		}
		links = append(links, siteclone.DiscoveredLink{URL: resolved, Text: text})
	})
	return links, nil
}

// resolveURL resolves href against base and strips the fragment.
// Returns empty string if href cannot be parsed or is not http(s).
func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return withoutFragment(resolved)
}

func withoutFragment(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}

// isNonHTTPLink checks if a href is a non-HTTP link that should be skipped.
func isNonHTTPLink(href string) bool {
	href = strings.ToLower(strings.TrimSpace(href))
	return strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:")
}
