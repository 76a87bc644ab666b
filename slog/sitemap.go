// Package slog provides logging decorators for the crawl's collaborators.
// Each decorator logs one line per call with its duration and error.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/siteclone"
)

// Ensure LoggingSitemapService implements siteclone.SitemapService.
var _ siteclone.SitemapService = (*LoggingSitemapService)(nil)

// LoggingSitemapService logs the crawl seeds a SitemapService returns.
type LoggingSitemapService struct {
	next   siteclone.SitemapService
	logger *slog.Logger
}

// NewLoggingSitemapService creates a new LoggingSitemapService.
func NewLoggingSitemapService(next siteclone.SitemapService, logger *slog.Logger) *LoggingSitemapService {
	return &LoggingSitemapService{next: next, logger: logger}
}

// DiscoverURLs delegates to the wrapped service. Failures are warnings
// since the crawl continues without sitemap seeds, and a site without a
// sitemap is only logged at debug level.
func (s *LoggingSitemapService) DiscoverURLs(ctx context.Context, baseURL string, filter *siteclone.URLFilter) (urls []string, err error) {
	defer func(begin time.Time) {
		attrs := []any{
			"root", baseURL,
			"seeds", len(urls),
			"filtered", filter != nil,
			"duration", time.Since(begin),
		}
		switch {
		case err != nil:
			s.logger.Log(ctx, slog.LevelWarn, "sitemap seeds", append(attrs, "err", err)...)
		case len(urls) == 0:
			s.logger.Log(ctx, slog.LevelDebug, "sitemap seeds", attrs...)
		default:
			s.logger.Log(ctx, slog.LevelInfo, "sitemap seeds", append(attrs, "first", urls[0])...)
		}
	}(time.Now())
	return s.next.DiscoverURLs(ctx, baseURL, filter)
}
