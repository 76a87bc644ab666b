package crawl

import (
	"context"
	"strings"
	"time"

	"github.com/fwojciec/siteclone"
)

// scrollHeightExpr reads the document height used to bound auto-scrolling.
const scrollHeightExpr = `document.body ? document.body.scrollHeight : 0`

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// settle waits for dynamic content: loading indicators are waited out,
// the page is scrolled to trigger lazy loading, known menu triggers are
// optionally hovered, and client-rendered pages are polled until their
// markup stops changing.
func (c *Capturer) settle(ctx context.Context, r siteclone.Renderer) error {
	p := c.Policy
	if p.WaitForLoading {
		if err := c.waitForLoading(ctx, r); err != nil {
			return err
		}
	}
	if err := c.autoScroll(ctx, r); err != nil {
		return err
	}
	if p.HoverOnCapture && len(c.HoverTriggers) > 0 {
		if err := c.hoverTriggers(ctx, r); err != nil {
			return err
		}
	}
	if c.Frameworks != nil {
		html, err := r.HTML(ctx)
		if err != nil {
			return err
		}
		if fw := c.Frameworks.Detect(html); fw != siteclone.FrameworkUnknown {
			c.logger().Debug("stabilizing client rendered page", "framework", fw)
			return c.stabilize(ctx, r, len(html))
		}
	}
	return nil
}

// hoverTriggers hovers the elements whose text names a known menu
// trigger, so content rendered on hover is part of the capture.
func (c *Capturer) hoverTriggers(ctx context.Context, r siteclone.Renderer) error {
	want := make(map[string]struct{}, len(c.HoverTriggers))
	for _, t := range c.HoverTriggers {
		want[strings.ToLower(t)] = struct{}{}
	}
	elems, err := r.Elements(ctx, MenuCandidateSelector)
	if err != nil {
		return err
	}
	for _, e := range elems {
		if _, ok := want[strings.ToLower(cleanMenuText(e.Text))]; !ok || !e.Visible {
			continue
		}
		if err := r.Hover(ctx, e.Selector); err != nil {
			continue
		}
		if err := sleep(ctx, c.Policy.ActionDelay); err != nil {
			return err
		}
	}
	return nil
}

// waitForLoading polls for visible loading indicators until none remain
// or LoadingTimeout passes. A persistent indicator is not an error.
func (c *Capturer) waitForLoading(ctx context.Context, r siteclone.Renderer) error {
	p := c.Policy
	if len(p.LoadingSelectors) == 0 {
		return nil
	}
	selector := strings.Join(p.LoadingSelectors, ", ")
	deadline := time.Now().Add(p.LoadingTimeout)
	for {
		elems, err := r.Elements(ctx, selector)
		if err != nil {
			return err
		}
		if !anyVisible(elems) {
			return nil
		}
		if !time.Now().Before(deadline) {
			c.logger().Debug("loading indicator still visible", "timeout", p.LoadingTimeout)
			return nil
		}
		if err := sleep(ctx, p.LoadingCheckInterval); err != nil {
			return err
		}
	}
}

// autoScroll scrolls down in ScrollDistance steps until the bottom of the
// document (re-read after each step, since lazy content grows it) or
// MaxScrollSteps, then returns to the top.
func (c *Capturer) autoScroll(ctx context.Context, r siteclone.Renderer) error {
	p := c.Policy
	if p.ScrollDistance <= 0 || p.MaxScrollSteps <= 0 {
		return nil
	}
	scrolled := 0
	for step := 0; step < p.MaxScrollSteps; step++ {
		height, err := evalNumber(ctx, r, scrollHeightExpr)
		if err != nil {
			return err
		}
		if scrolled >= int(height) {
			break
		}
		if err := r.ScrollBy(ctx, 0, p.ScrollDistance); err != nil {
			return err
		}
		scrolled += p.ScrollDistance
		if err := sleep(ctx, p.ScrollInterval); err != nil {
			return err
		}
	}
	if scrolled > 0 {
		return r.ScrollBy(ctx, 0, -scrolled)
	}
	return nil
}

// stabilize polls the markup size every StabilizeInterval until it has
// not changed for StableDuration, giving up silently after StabilizeMaxWait.
func (c *Capturer) stabilize(ctx context.Context, r siteclone.Renderer, size int) error {
	p := c.Policy
	start := time.Now()
	stableSince := start
	for time.Since(start) < p.StabilizeMaxWait {
		if err := sleep(ctx, p.StabilizeInterval); err != nil {
			return err
		}
		html, err := r.HTML(ctx)
		if err != nil {
			return err
		}
		if len(html) != size {
			size = len(html)
			stableSince = time.Now()
			continue
		}
		if time.Since(stableSince) >= p.StableDuration {
			return nil
		}
	}
	return nil
}

func anyVisible(elems []siteclone.Element) bool {
	for _, e := range elems {
		if e.Visible {
			return true
		}
	}
	return false
}

func evalNumber(ctx context.Context, r siteclone.Renderer, expr string) (float64, error) {
	v, err := r.Evaluate(ctx, expr)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, nil
}
