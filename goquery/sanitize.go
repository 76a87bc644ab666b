package goquery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/siteclone"
)

// Compile-time interface verification.
var _ siteclone.Sanitizer = (*Sanitizer)(nil)

// unsafeSelector matches markup that runs code, embeds third-party
// documents or fetches resources ahead of time.
const unsafeSelector = `script, iframe, noscript, object, embed, ` +
	`link[rel~="preload"], link[rel~="prefetch"], link[rel~="modulepreload"], ` +
	`link[rel~="preconnect"], link[rel~="dns-prefetch"]`

// Sanitizer strips captured pages down to markup that renders offline.
type Sanitizer struct{}

// NewSanitizer creates a new Sanitizer.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{}
}

// Sanitize removes scripts, iframes, resource hints, inline event handlers
// and renderer element tags, and neutralizes javascript: links.
func (s *Sanitizer) Sanitize(raw string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", siteclone.Errorf(siteclone.EINVALID, "failed to parse HTML: %v", err)
	}

	doc.Find(unsafeSelector).Remove()
	doc.Find("[" + siteclone.ElementIDAttr + "]").RemoveAttr(siteclone.ElementIDAttr)
	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		node := sel.Get(0)
		var handlers []string
		for _, attr := range node.Attr {
			if strings.HasPrefix(strings.ToLower(attr.Key), "on") {
				handlers = append(handlers, attr.Key)
			}
		}
		for _, key := range handlers {
			sel.RemoveAttr(key)
		}
		if href, ok := sel.Attr("href"); ok && strings.HasPrefix(strings.ToLower(strings.TrimSpace(href)), "javascript:") {
			sel.SetAttr("href", "#")
		}
	})

	out, err := doc.Html()
	if err != nil {
		return "", siteclone.Errorf(siteclone.EINTERNAL, "failed to render HTML: %v", err)
	}
	return out, nil
}
