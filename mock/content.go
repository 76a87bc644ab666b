package mock

import (
	"context"

	"github.com/fwojciec/siteclone"
)

var _ siteclone.LinkExtractor = (*LinkExtractor)(nil)

// LinkExtractor is a mock implementation of siteclone.LinkExtractor.
type LinkExtractor struct {
	ExtractLinksFn func(html string, baseURL string) ([]siteclone.DiscoveredLink, error)
}

func (e *LinkExtractor) ExtractLinks(html string, baseURL string) ([]siteclone.DiscoveredLink, error) {
	return e.ExtractLinksFn(html, baseURL)
}

var _ siteclone.FrameworkDetector = (*FrameworkDetector)(nil)

// FrameworkDetector is a mock implementation of siteclone.FrameworkDetector.
type FrameworkDetector struct {
	DetectFn func(html string) siteclone.Framework
}

func (d *FrameworkDetector) Detect(html string) siteclone.Framework {
	return d.DetectFn(html)
}

var _ siteclone.ContentNormalizer = (*ContentNormalizer)(nil)

// ContentNormalizer is a mock implementation of siteclone.ContentNormalizer.
type ContentNormalizer struct {
	NormalizeFn func(html string) (string, error)
}

func (n *ContentNormalizer) Normalize(html string) (string, error) {
	return n.NormalizeFn(html)
}

var _ siteclone.Sanitizer = (*Sanitizer)(nil)

// Sanitizer is a mock implementation of siteclone.Sanitizer.
type Sanitizer struct {
	SanitizeFn func(html string) (string, error)
}

func (s *Sanitizer) Sanitize(html string) (string, error) {
	return s.SanitizeFn(html)
}

var _ siteclone.MenuDetector = (*MenuDetector)(nil)

// MenuDetector is a mock implementation of siteclone.MenuDetector.
type MenuDetector struct {
	DetectFn func(ctx context.Context, r siteclone.Renderer, pageURL string) ([]siteclone.MenuGroup, error)
}

func (d *MenuDetector) Detect(ctx context.Context, r siteclone.Renderer, pageURL string) ([]siteclone.MenuGroup, error) {
	return d.DetectFn(ctx, r, pageURL)
}
