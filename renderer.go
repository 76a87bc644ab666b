package siteclone

import (
	"context"
	"time"
)

// Rect is an element's bounding box in page coordinates (CSS pixels,
// relative to the top of the document).
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether the box has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// ElementIDAttr is the attribute renderers tag snapshotted elements with
// so their selectors stay valid. It is not part of the captured page.
const ElementIDAttr = "data-sc-id"

// Element is a snapshot of a DOM element taken by a Renderer.
type Element struct {
	// Selector uniquely addresses the element for Hover and Click for as
	// long as the page is not reloaded.
	Selector string `json:"selector"`
	Tag      string `json:"tag"`
	Text     string `json:"text"`
	Href     string `json:"href"` // resolved href of the element or its first nested link
	Class    string `json:"class"`
	Role     string `json:"role"`
	Rect     Rect   `json:"rect"`
	Visible  bool   `json:"visible"`

	// Ancestry flags used by the menu heuristics.
	InFooter  bool `json:"inFooter"`
	InTabList bool `json:"inTabList"`
	InNav     bool `json:"inNav"`
}

// Renderer is a single browser tab (or equivalent) driven by the crawl.
// Implementations are not required to be safe for concurrent use.
type Renderer interface {
	// Navigate loads url and waits for the given lifecycle event.
	Navigate(ctx context.Context, url string, wait WaitStrategy, timeout time.Duration) error

	// URL returns the address of the currently loaded document.
	URL(ctx context.Context) (string, error)

	// Evaluate runs a JavaScript expression and returns its JSON-decoded value.
	Evaluate(ctx context.Context, expr string) (any, error)

	// Elements snapshots all elements matching the CSS selector.
	Elements(ctx context.Context, selector string) ([]Element, error)

	// Hover moves the pointer over the element addressed by selector.
	Hover(ctx context.Context, selector string) error

	// Click clicks the element addressed by selector.
	Click(ctx context.Context, selector string) error

	// ScrollBy scrolls the viewport by the given offsets.
	ScrollBy(ctx context.Context, dx, dy int) error

	// Screenshot captures the viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	// HTML returns the serialized DOM of the current document.
	HTML(ctx context.Context) (string, error)

	// Close releases the renderer.
	Close() error
}

// RendererPool hands out renderers to crawl workers.
type RendererPool interface {
	// Acquire returns a renderer ready for navigation.
	Acquire(ctx context.Context) (Renderer, error)

	// Release returns a renderer obtained from Acquire.
	Release(r Renderer)

	// Close releases all pooled resources.
	Close() error
}

// MemoryReleaser is implemented by pools that can shed memory on request.
type MemoryReleaser interface {
	ReleaseMemory(ctx context.Context) error
}
