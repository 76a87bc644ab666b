package mock

import (
	"context"
	"time"

	"github.com/fwojciec/siteclone"
)

var _ siteclone.Renderer = (*Renderer)(nil)

// Renderer is a mock implementation of siteclone.Renderer.
type Renderer struct {
	NavigateFn   func(ctx context.Context, url string, wait siteclone.WaitStrategy, timeout time.Duration) error
	URLFn        func(ctx context.Context) (string, error)
	EvaluateFn   func(ctx context.Context, expr string) (any, error)
	ElementsFn   func(ctx context.Context, selector string) ([]siteclone.Element, error)
	HoverFn      func(ctx context.Context, selector string) error
	ClickFn      func(ctx context.Context, selector string) error
	ScrollByFn   func(ctx context.Context, dx, dy int) error
	ScreenshotFn func(ctx context.Context) ([]byte, error)
	HTMLFn       func(ctx context.Context) (string, error)
	CloseFn      func() error
}

func (r *Renderer) Navigate(ctx context.Context, url string, wait siteclone.WaitStrategy, timeout time.Duration) error {
	return r.NavigateFn(ctx, url, wait, timeout)
}

func (r *Renderer) URL(ctx context.Context) (string, error) {
	return r.URLFn(ctx)
}

func (r *Renderer) Evaluate(ctx context.Context, expr string) (any, error) {
	return r.EvaluateFn(ctx, expr)
}

func (r *Renderer) Elements(ctx context.Context, selector string) ([]siteclone.Element, error) {
	return r.ElementsFn(ctx, selector)
}

func (r *Renderer) Hover(ctx context.Context, selector string) error {
	return r.HoverFn(ctx, selector)
}

func (r *Renderer) Click(ctx context.Context, selector string) error {
	return r.ClickFn(ctx, selector)
}

func (r *Renderer) ScrollBy(ctx context.Context, dx, dy int) error {
	return r.ScrollByFn(ctx, dx, dy)
}

func (r *Renderer) Screenshot(ctx context.Context) ([]byte, error) {
	return r.ScreenshotFn(ctx)
}

func (r *Renderer) HTML(ctx context.Context) (string, error) {
	return r.HTMLFn(ctx)
}

func (r *Renderer) Close() error {
	return r.CloseFn()
}

var _ siteclone.RendererPool = (*RendererPool)(nil)

// RendererPool is a mock implementation of siteclone.RendererPool.
type RendererPool struct {
	AcquireFn func(ctx context.Context) (siteclone.Renderer, error)
	ReleaseFn func(r siteclone.Renderer)
	CloseFn   func() error
}

func (p *RendererPool) Acquire(ctx context.Context) (siteclone.Renderer, error) {
	return p.AcquireFn(ctx)
}

func (p *RendererPool) Release(r siteclone.Renderer) {
	p.ReleaseFn(r)
}

func (p *RendererPool) Close() error {
	return p.CloseFn()
}
