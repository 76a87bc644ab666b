package rod

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/fwojciec/siteclone"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Ensure Renderer implements siteclone.Renderer at compile time.
var _ siteclone.Renderer = (*Renderer)(nil)

// Renderer is one Chrome tab. It is not safe for concurrent use.
type Renderer struct {
	page    *rod.Page
	router  *rod.HijackRouter
	release func()
	once    sync.Once
}

// Navigate loads url and waits for the lifecycle event matching wait.
// Documents answered with an HTTP error status fail the navigation.
func (r *Renderer) Navigate(ctx context.Context, url string, wait siteclone.WaitStrategy, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	page := r.page.Context(ctx)

	waitFor := page.WaitNavigation(lifecycleEvent(wait))
	if err := page.Navigate(url); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	waitFor()
	if err := ctx.Err(); err != nil {
		return err
	}

	status, err := r.evaluate(ctx, navigationStatusJS)
	if err != nil {
		return err
	}
	if code := status.Value.Int(); code >= 400 {
		return fmt.Errorf("HTTP %d for %s", code, url)
	}
	return nil
}

func lifecycleEvent(wait siteclone.WaitStrategy) proto.PageLifecycleEventName {
	switch wait {
	case siteclone.WaitDOMContentLoaded:
		return proto.PageLifecycleEventNameDOMContentLoaded
	case siteclone.WaitNetworkIdle:
		return proto.PageLifecycleEventNameNetworkIdle
	default:
		return proto.PageLifecycleEventNameLoad
	}
}

// URL returns the address of the loaded document after redirects.
func (r *Renderer) URL(ctx context.Context) (string, error) {
	info, err := r.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

// Evaluate runs a JavaScript expression in the page and returns its value
// decoded from JSON. Promises are awaited.
func (r *Renderer) Evaluate(ctx context.Context, expr string) (any, error) {
	obj, err := r.evaluate(ctx, expr)
	if err != nil {
		return nil, err
	}
	return obj.Value.Val(), nil
}

func (r *Renderer) evaluate(ctx context.Context, expr string) (*proto.RuntimeRemoteObject, error) {
	res, err := proto.RuntimeEvaluate{
		Expression:    expr,
		ReturnByValue: true,
		AwaitPromise:  true,
	}.Call(r.page.Context(ctx))
	if err != nil {
		return nil, err
	}
	if ex := res.ExceptionDetails; ex != nil {
		msg := ex.Text
		if ex.Exception != nil && ex.Exception.Description != "" {
			msg = ex.Exception.Description
		}
		return nil, fmt.Errorf("evaluate: %s", msg)
	}
	return res.Result, nil
}

// Elements snapshots every element matching selector. Each element is
// tagged with a data-sc-id attribute so the returned selectors stay valid
// until the next navigation.
func (r *Renderer) Elements(ctx context.Context, selector string) ([]siteclone.Element, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return nil, err
	}
	obj, err := r.evaluate(ctx, fmt.Sprintf(snapshotJS, quoted))
	if err != nil {
		return nil, err
	}
	var elems []siteclone.Element
	if err := json.Unmarshal([]byte(obj.Value.Str()), &elems); err != nil {
		return nil, fmt.Errorf("decode element snapshot: %w", err)
	}
	return elems, nil
}

// Hover moves the mouse over the first element matching selector.
func (r *Renderer) Hover(ctx context.Context, selector string) error {
	el, err := r.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.Hover()
}

// Click left-clicks the first element matching selector.
func (r *Renderer) Click(ctx context.Context, selector string) error {
	el, err := r.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// element looks selector up without rod's retry loop, so a missing element
// fails immediately.
func (r *Renderer) element(ctx context.Context, selector string) (*rod.Element, error) {
	els, err := r.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	if els.Empty() {
		return nil, siteclone.Errorf(siteclone.ENOTFOUND, "no element matches %s", selector)
	}
	return els.First(), nil
}

// ScrollBy scrolls the window by the given offsets.
func (r *Renderer) ScrollBy(ctx context.Context, dx, dy int) error {
	_, err := r.evaluate(ctx, fmt.Sprintf("window.scrollBy(%d, %d)", dx, dy))
	return err
}

// Screenshot captures the viewport as PNG.
func (r *Renderer) Screenshot(ctx context.Context) ([]byte, error) {
	return r.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// HTML returns the serialized DOM of the loaded document.
func (r *Renderer) HTML(ctx context.Context) (string, error) {
	return r.page.Context(ctx).HTML()
}

// Close stops request interception and closes the tab.
func (r *Renderer) Close() error {
	var err error
	r.once.Do(func() {
		if r.router != nil {
			err = r.router.Stop()
		}
		r.release()
	})
	return err
}

// collectGarbage asks the tab's V8 isolate to run a full collection.
func (r *Renderer) collectGarbage(ctx context.Context) error {
	return proto.HeapProfilerCollectGarbage{}.Call(r.page.Context(ctx))
}

const navigationStatusJS = `(() => {
  const nav = performance.getEntriesByType("navigation")[0];
  return nav && nav.responseStatus ? nav.responseStatus : 0;
})()`

// snapshotJS takes a JSON-quoted selector and returns a JSON array of
// element snapshots shaped like siteclone.Element.
const snapshotJS = `(() => {
  let nodes;
  try {
    nodes = document.querySelectorAll(%s);
  } catch (e) {
    return "[]";
  }
  window.__scNext = window.__scNext || 0;
  const out = [];
  for (const el of nodes) {
    let id = el.getAttribute("data-sc-id");
    if (!id) {
      id = String(++window.__scNext);
      el.setAttribute("data-sc-id", id);
    }
    const box = el.getBoundingClientRect();
    const style = getComputedStyle(el);
    const link = el.matches("a[href]") ? el : el.querySelector("a[href]");
    const cls = el.getAttribute("class") || "";
    out.push({
      selector: '[data-sc-id="' + id + '"]',
      tag: el.tagName.toLowerCase(),
      text: (el.innerText || el.textContent || "").replace(/\s+/g, " ").trim(),
      href: link ? link.href : "",
      class: cls,
      role: el.getAttribute("role") || "",
      rect: { x: box.x, y: box.y, width: box.width, height: box.height },
      visible: box.width > 0 && box.height > 0 &&
        style.display !== "none" && style.visibility !== "hidden" &&
        parseFloat(style.opacity || "1") > 0,
      inFooter: !!el.closest("footer, [role=contentinfo]"),
      inTabList: !!el.closest("[role=tablist]"),
      inNav: !!el.closest("nav, header, [role=navigation], [role=menubar]"),
    });
  }
  return JSON.stringify(out);
})()`
