package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/siteclone"
)

// Ensure LoggingPageStore implements siteclone.PageStore.
var _ siteclone.PageStore = (*LoggingPageStore)(nil)

// LoggingPageStore wraps a PageStore with logging.
type LoggingPageStore struct {
	next   siteclone.PageStore
	logger *slog.Logger
}

// NewLoggingPageStore creates a new LoggingPageStore.
func NewLoggingPageStore(next siteclone.PageStore, logger *slog.Logger) *LoggingPageStore {
	return &LoggingPageStore{next: next, logger: logger}
}

// Save delegates to the wrapped store and logs the page written.
func (s *LoggingPageStore) Save(ctx context.Context, content *siteclone.PageContent) (err error) {
	defer func(begin time.Time) {
		s.logger.Debug("save page",
			"name", content.Page.Name,
			"url", content.Page.URL,
			"bytes", len(content.HTML),
			"screenshot", len(content.Screenshot) > 0,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Save(ctx, content)
}

// Commit delegates to the wrapped store and logs the manifest size.
func (s *LoggingPageStore) Commit(ctx context.Context, manifest *siteclone.Manifest) (err error) {
	defer func(begin time.Time) {
		pages, errs := 0, 0
		if manifest != nil {
			pages, errs = len(manifest.Pages), len(manifest.Errors)
		}
		s.logger.Info("commit pages",
			"pages", pages,
			"errors", errs,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Commit(ctx, manifest)
}

// Abort delegates to the wrapped store.
func (s *LoggingPageStore) Abort() (err error) {
	defer func() {
		s.logger.Info("abort pages", "err", err)
	}()
	return s.next.Abort()
}
