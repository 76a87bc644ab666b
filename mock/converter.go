package mock

import "github.com/fwojciec/siteclone"

var _ siteclone.Converter = (*Converter)(nil)

// Converter is a mock implementation of siteclone.Converter.
type Converter struct {
	ConvertFn func(html string, pageURL string) (string, error)
}

func (c *Converter) Convert(html string, pageURL string) (string, error) {
	return c.ConvertFn(html, pageURL)
}
