package crawl

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/debug"

	"github.com/fwojciec/siteclone"
)

// MemoryGovernor issues a memory-pressure hint every interval accepted
// pages and warns when the heap grows past the configured limit.
type MemoryGovernor struct {
	interval int
	limitMB  int
	releaser siteclone.MemoryReleaser
	logger   *slog.Logger
	count    int

	// readMemStats is replaced in tests.
	readMemStats func(*runtime.MemStats)
	freeOS       func()
}

// NewMemoryGovernor creates a governor. releaser may be nil; interval < 1
// disables the hint.
func NewMemoryGovernor(interval, limitMB int, releaser siteclone.MemoryReleaser, logger *slog.Logger) *MemoryGovernor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MemoryGovernor{
		interval:     interval,
		limitMB:      limitMB,
		releaser:     releaser,
		logger:       logger,
		readMemStats: runtime.ReadMemStats,
		freeOS:       debug.FreeOSMemory,
	}
}

// PageAccepted counts one accepted page and runs a check when the interval
// is reached. It reports whether a check ran. Failures are logged, never
// returned.
func (g *MemoryGovernor) PageAccepted(ctx context.Context) bool {
	if g.interval < 1 {
		return false
	}
	g.count++
	if g.count%g.interval != 0 {
		return false
	}
	g.Check(ctx)
	return true
}

// Check releases memory and compares the in-use heap against the limit.
// It returns the in-use memory in MB.
func (g *MemoryGovernor) Check(ctx context.Context) uint64 {
	if g.releaser != nil {
		if err := g.releaser.ReleaseMemory(ctx); err != nil {
			g.logger.Debug("release renderer memory", "err", err)
		}
	}
	g.freeOS()

	var stats runtime.MemStats
	g.readMemStats(&stats)
	usedMB := stats.HeapInuse / (1024 * 1024)
	if g.limitMB > 0 && usedMB > uint64(g.limitMB) {
		g.logger.Warn("memory usage above limit", "used_mb", usedMB, "limit_mb", g.limitMB, "pages", g.count)
	} else {
		g.logger.Debug("memory check", "heap", FormatBytes(stats.HeapInuse), "pages", g.count)
	}
	return usedMB
}
