package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/siteclone"
)

// Ensure the renderer decorators implement their interfaces.
var (
	_ siteclone.Renderer       = (*LoggingRenderer)(nil)
	_ siteclone.RendererPool   = (*LoggingPool)(nil)
	_ siteclone.MemoryReleaser = (*LoggingPool)(nil)
)

// LoggingRenderer wraps a Renderer with logging. Navigations are logged
// at info level, DOM queries and pointer actions at debug level.
type LoggingRenderer struct {
	next   siteclone.Renderer
	logger *slog.Logger
}

// NewLoggingRenderer creates a new LoggingRenderer.
func NewLoggingRenderer(next siteclone.Renderer, logger *slog.Logger) *LoggingRenderer {
	return &LoggingRenderer{next: next, logger: logger}
}

// Navigate logs the URL being loaded and delegates to the wrapped renderer.
func (r *LoggingRenderer) Navigate(ctx context.Context, url string, wait siteclone.WaitStrategy, timeout time.Duration) (err error) {
	defer func(begin time.Time) {
		r.logger.Info("navigate",
			"url", url,
			"wait", string(wait),
			"timeout", timeout,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return r.next.Navigate(ctx, url, wait, timeout)
}

// URL delegates to the wrapped renderer.
func (r *LoggingRenderer) URL(ctx context.Context) (string, error) {
	return r.next.URL(ctx)
}

// Evaluate delegates to the wrapped renderer and logs failures.
func (r *LoggingRenderer) Evaluate(ctx context.Context, expr string) (v any, err error) {
	defer func() {
		if err != nil {
			r.logger.Debug("evaluate", "expr", expr, "err", err)
		}
	}()
	return r.next.Evaluate(ctx, expr)
}

// Elements delegates to the wrapped renderer and logs the match count.
func (r *LoggingRenderer) Elements(ctx context.Context, selector string) (elems []siteclone.Element, err error) {
	defer func(begin time.Time) {
		r.logger.Debug("elements",
			"selector", selector,
			"count", len(elems),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return r.next.Elements(ctx, selector)
}

// Hover delegates to the wrapped renderer.
func (r *LoggingRenderer) Hover(ctx context.Context, selector string) (err error) {
	defer func() {
		r.logger.Debug("hover", "selector", selector, "err", err)
	}()
	return r.next.Hover(ctx, selector)
}

// Click delegates to the wrapped renderer.
func (r *LoggingRenderer) Click(ctx context.Context, selector string) (err error) {
	defer func() {
		r.logger.Debug("click", "selector", selector, "err", err)
	}()
	return r.next.Click(ctx, selector)
}

// ScrollBy delegates to the wrapped renderer.
func (r *LoggingRenderer) ScrollBy(ctx context.Context, dx, dy int) error {
	return r.next.ScrollBy(ctx, dx, dy)
}

// Screenshot delegates to the wrapped renderer and logs the image size.
func (r *LoggingRenderer) Screenshot(ctx context.Context) (png []byte, err error) {
	defer func(begin time.Time) {
		r.logger.Debug("screenshot",
			"bytes", len(png),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return r.next.Screenshot(ctx)
}

// HTML delegates to the wrapped renderer.
func (r *LoggingRenderer) HTML(ctx context.Context) (string, error) {
	return r.next.HTML(ctx)
}

// Close delegates to the wrapped renderer.
func (r *LoggingRenderer) Close() error {
	return r.next.Close()
}

// LoggingPool wraps a RendererPool so every acquired renderer logs.
type LoggingPool struct {
	next   siteclone.RendererPool
	logger *slog.Logger
}

// NewLoggingPool creates a new LoggingPool.
func NewLoggingPool(next siteclone.RendererPool, logger *slog.Logger) *LoggingPool {
	return &LoggingPool{next: next, logger: logger}
}

// Acquire returns a logging renderer around one from the wrapped pool.
func (p *LoggingPool) Acquire(ctx context.Context) (siteclone.Renderer, error) {
	begin := time.Now()
	r, err := p.next.Acquire(ctx)
	if err != nil {
		p.logger.Warn("acquire renderer", "duration", time.Since(begin), "err", err)
		return nil, err
	}
	p.logger.Debug("acquire renderer", "duration", time.Since(begin))
	return NewLoggingRenderer(r, p.logger), nil
}

// Release hands the wrapped renderer back to the wrapped pool.
func (p *LoggingPool) Release(r siteclone.Renderer) {
	if lr, ok := r.(*LoggingRenderer); ok {
		r = lr.next
	}
	p.next.Release(r)
}

// ReleaseMemory delegates to the wrapped pool when it can shed memory.
func (p *LoggingPool) ReleaseMemory(ctx context.Context) (err error) {
	m, ok := p.next.(siteclone.MemoryReleaser)
	if !ok {
		return nil
	}
	defer func(begin time.Time) {
		p.logger.Info("release memory", "duration", time.Since(begin), "err", err)
	}(time.Now())
	return m.ReleaseMemory(ctx)
}

// Close delegates to the wrapped pool.
func (p *LoggingPool) Close() error {
	return p.next.Close()
}
