package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/siteclone"
)

// Ensure LoggingMenuDetector implements siteclone.MenuDetector.
var _ siteclone.MenuDetector = (*LoggingMenuDetector)(nil)

// LoggingMenuDetector wraps a MenuDetector with logging.
type LoggingMenuDetector struct {
	next   siteclone.MenuDetector
	logger *slog.Logger
}

// NewLoggingMenuDetector creates a new LoggingMenuDetector.
func NewLoggingMenuDetector(next siteclone.MenuDetector, logger *slog.Logger) *LoggingMenuDetector {
	return &LoggingMenuDetector{next: next, logger: logger}
}

// Detect delegates to the wrapped detector and logs the menus found.
func (d *LoggingMenuDetector) Detect(ctx context.Context, r siteclone.Renderer, pageURL string) (menus []siteclone.MenuGroup, err error) {
	defer func(begin time.Time) {
		items, direct := 0, 0
		for _, m := range menus {
			items += len(m.Items)
			if len(m.Items) == 0 {
				direct++
			}
		}
		d.logger.Info("menu detection",
			"url", pageURL,
			"groups", len(menus),
			"items", items,
			"direct", direct,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return d.next.Detect(ctx, r, pageURL)
}
