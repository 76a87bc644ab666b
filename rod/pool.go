package rod

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fwojciec/siteclone"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Ensure Pool implements the pool interfaces at compile time.
var (
	_ siteclone.RendererPool   = (*Pool)(nil)
	_ siteclone.MemoryReleaser = (*Pool)(nil)
)

// PoolConfig configures the tabs handed out by a Pool.
type PoolConfig struct {
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int

	// BlockFonts fails font requests so pages settle faster.
	BlockFonts bool
}

// ConfigFromPolicy returns the tab settings of a crawl policy.
func ConfigFromPolicy(policy *siteclone.CrawlPolicy) PoolConfig {
	return PoolConfig{
		UserAgent:      policy.UserAgent,
		ViewportWidth:  policy.ViewportWidth,
		ViewportHeight: policy.ViewportHeight,
		BlockFonts:     policy.BlockFonts,
	}
}

// Pool hands out Chrome tabs as renderers. Each Acquire opens a fresh tab
// configured with the pool's viewport, user agent and request blocking.
//
// Pool is safe for concurrent use.
type Pool struct {
	manager *BrowserManager
	config  PoolConfig

	mu     sync.Mutex
	active map[*Renderer]struct{}
}

// NewPool launches a browser and returns a pool over it.
func NewPool(config PoolConfig, opts ...ManagerOption) (*Pool, error) {
	manager, err := NewBrowserManager(opts...)
	if err != nil {
		return nil, err
	}
	return &Pool{
		manager: manager,
		config:  config,
		active:  make(map[*Renderer]struct{}),
	}, nil
}

// Acquire opens a configured tab.
func (p *Pool) Acquire(ctx context.Context) (siteclone.Renderer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, release, err := p.manager.NewPage()
	if err != nil {
		return nil, err
	}
	r := &Renderer{page: page, release: release}
	if err := p.configure(r); err != nil {
		_ = r.Close()
		return nil, err
	}

	p.mu.Lock()
	p.active[r] = struct{}{}
	p.mu.Unlock()
	return r, nil
}

func (p *Pool) configure(r *Renderer) error {
	if p.config.ViewportWidth > 0 && p.config.ViewportHeight > 0 {
		if err := r.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             p.config.ViewportWidth,
			Height:            p.config.ViewportHeight,
			DeviceScaleFactor: 1,
		}); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
	}
	if p.config.UserAgent != "" {
		if err := r.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent: p.config.UserAgent,
		}); err != nil {
			return fmt.Errorf("set user agent: %w", err)
		}
	}
	if p.config.BlockFonts {
		router := r.page.HijackRequests()
		if err := router.Add("*", proto.NetworkResourceTypeFont, func(h *rod.Hijack) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		}); err != nil {
			return fmt.Errorf("block fonts: %w", err)
		}
		go router.Run()
		r.router = router
	}
	return nil
}

// Release closes a tab obtained from Acquire.
func (p *Pool) Release(r siteclone.Renderer) {
	if rr, ok := r.(*Renderer); ok {
		p.mu.Lock()
		delete(p.active, rr)
		p.mu.Unlock()
	}
	_ = r.Close()
}

// ReleaseMemory runs a garbage collection in every open tab.
func (p *Pool) ReleaseMemory(ctx context.Context) error {
	p.mu.Lock()
	renderers := make([]*Renderer, 0, len(p.active))
	for r := range p.active {
		renderers = append(renderers, r)
	}
	p.mu.Unlock()

	var errs []error
	for _, r := range renderers {
		if err := r.collectGarbage(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every open tab and shuts the browsers down.
func (p *Pool) Close() error {
	p.mu.Lock()
	renderers := make([]*Renderer, 0, len(p.active))
	for r := range p.active {
		renderers = append(renderers, r)
	}
	p.active = make(map[*Renderer]struct{})
	p.mu.Unlock()

	for _, r := range renderers {
		_ = r.Close()
	}
	return p.manager.Close()
}

// LauncherPID returns the process ID of the current browser launcher.
func (p *Pool) LauncherPID() int {
	return p.manager.LauncherPID()
}
