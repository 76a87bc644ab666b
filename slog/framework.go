package slog

import (
	"log/slog"
	"time"

	"github.com/fwojciec/siteclone"
)

// Ensure LoggingFrameworkDetector implements siteclone.FrameworkDetector.
var _ siteclone.FrameworkDetector = (*LoggingFrameworkDetector)(nil)

// LoggingFrameworkDetector wraps a FrameworkDetector with debug logging.
type LoggingFrameworkDetector struct {
	next   siteclone.FrameworkDetector
	logger *slog.Logger
}

// NewLoggingFrameworkDetector creates a new LoggingFrameworkDetector.
func NewLoggingFrameworkDetector(next siteclone.FrameworkDetector, logger *slog.Logger) *LoggingFrameworkDetector {
	return &LoggingFrameworkDetector{next: next, logger: logger}
}

// Detect delegates to the wrapped detector and logs the result.
func (d *LoggingFrameworkDetector) Detect(html string) siteclone.Framework {
	begin := time.Now()
	framework := d.next.Detect(html)
	name := string(framework)
	if framework == siteclone.FrameworkUnknown {
		name = "(unknown)"
	}
	d.logger.Debug("framework detection",
		"framework", name,
		"bytes", len(html),
		"duration", time.Since(begin),
	)
	return framework
}
