package mock

import (
	"context"

	"github.com/fwojciec/siteclone"
)

var _ siteclone.SitemapService = (*SitemapService)(nil)

// SitemapService is a mock implementation of siteclone.SitemapService.
type SitemapService struct {
	DiscoverURLsFn func(ctx context.Context, baseURL string, filter *siteclone.URLFilter) ([]string, error)
}

func (s *SitemapService) DiscoverURLs(ctx context.Context, baseURL string, filter *siteclone.URLFilter) ([]string, error) {
	return s.DiscoverURLsFn(ctx, baseURL, filter)
}

var _ siteclone.RobotsChecker = (*RobotsChecker)(nil)

// RobotsChecker is a mock implementation of siteclone.RobotsChecker.
type RobotsChecker struct {
	AllowedFn func(ctx context.Context, rawURL string) bool
}

func (r *RobotsChecker) Allowed(ctx context.Context, rawURL string) bool {
	return r.AllowedFn(ctx, rawURL)
}
