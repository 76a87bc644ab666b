package mock

import "github.com/fwojciec/siteclone"

var _ siteclone.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of siteclone.Extractor.
type Extractor struct {
	ExtractFn func(html string) (*siteclone.ExtractResult, error)
}

func (e *Extractor) Extract(html string) (*siteclone.ExtractResult, error) {
	return e.ExtractFn(html)
}
