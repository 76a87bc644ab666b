// Package htmltomarkdown writes Markdown renditions of captured pages
// with html-to-markdown.
package htmltomarkdown

import (
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/fwojciec/siteclone"
)

// Ensure Converter implements siteclone.Converter at compile time.
var _ siteclone.Converter = (*Converter)(nil)

// Converter wraps html-to-markdown to convert HTML to Markdown.
type Converter struct {
	conv *converter.Converter
}

// NewConverter creates a new Converter.
func NewConverter() *Converter {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	return &Converter{conv: conv}
}

// Convert transforms HTML content into Markdown. When pageURL is set,
// relative links and images become absolute on its origin.
func (c *Converter) Convert(html string, pageURL string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", siteclone.Errorf(siteclone.EINVALID, "empty HTML input")
	}

	var (
		result string
		err    error
	)
	if pageURL == "" {
		result, err = c.conv.ConvertString(html)
	} else {
		u, perr := url.Parse(pageURL)
		if perr != nil || u.Host == "" {
			return "", siteclone.Errorf(siteclone.EINVALID, "invalid page URL %q", pageURL)
		}
		result, err = c.conv.ConvertString(html, converter.WithDomain(u.Scheme+"://"+u.Host))
	}
	if err != nil {
		return "", siteclone.Errorf(siteclone.EINTERNAL, "convert: %v", err)
	}
	return strings.TrimSpace(result), nil
}
