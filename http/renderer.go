// Package http implements the crawl's plain-HTTP collaborators: a static
// renderer for sites that don't require JavaScript, robots.txt and sitemap
// discovery, and the JSON/SSE API server.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/siteclone"
)

// DefaultFetchTimeout is the default timeout for HTTP requests.
// Kept consistent with the browser renderer's navigation timeout.
const DefaultFetchTimeout = 10 * time.Second

// maxBodySize caps the size of a fetched document.
const maxBodySize = 10 << 20

// idAttr tags elements returned by Elements so they can be addressed later.
const idAttr = siteclone.ElementIDAttr

// Ensure Renderer and Pool implement the crawl interfaces at compile time.
var (
	_ siteclone.Renderer     = (*Renderer)(nil)
	_ siteclone.RendererPool = (*Pool)(nil)
)

// Renderer loads documents over HTTP without executing JavaScript. It has
// no layout engine: element boxes are empty, visibility is inferred from
// markup, and pointer actions are unsupported, so menus revealed on hover
// are not discovered.
type Renderer struct {
	client    *http.Client
	userAgent string

	url  string
	body string
	doc  *goquery.Document
	next int
}

// Option configures a Renderer or Pool.
type Option func(*options)

type options struct {
	client    *http.Client
	userAgent string
}

// WithClient sets the HTTP client. The client's own timeout still applies
// on top of per-navigation timeouts.
func WithClient(c *http.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}

func newOptions(opts []Option) options {
	o := options{
		client:    &http.Client{Timeout: DefaultFetchTimeout},
		userAgent: siteclone.DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewRenderer creates a static Renderer.
func NewRenderer(opts ...Option) *Renderer {
	o := newOptions(opts)
	return &Renderer{client: o.client, userAgent: o.userAgent}
}

// Navigate fetches rawURL. The wait strategy has no meaning without a
// browser and is ignored. Redirects are followed; URL reports the final
// address.
func (r *Renderer) Navigate(ctx context.Context, rawURL string, _ siteclone.WaitStrategy, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return siteclone.Errorf(siteclone.EINVALID, "invalid URL %q: %v", rawURL, err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d for %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("parse %s: %w", rawURL, err)
	}

	r.url = resp.Request.URL.String()
	r.body = string(body)
	r.doc = doc
	r.next = 0
	return nil
}

// URL returns the address of the loaded document after redirects.
func (r *Renderer) URL(ctx context.Context) (string, error) {
	if r.doc == nil {
		return "", siteclone.Errorf(siteclone.EINVALID, "no document loaded")
	}
	return r.url, nil
}

// Evaluate has no script engine: every expression evaluates to undefined.
func (r *Renderer) Evaluate(ctx context.Context, expr string) (any, error) {
	return nil, nil
}

// Elements snapshots the elements matching selector.
func (r *Renderer) Elements(ctx context.Context, selector string) ([]siteclone.Element, error) {
	if r.doc == nil {
		return nil, siteclone.Errorf(siteclone.EINVALID, "no document loaded")
	}
	base, _ := url.Parse(r.url)

	// Invalid selectors match nothing.
	sel := r.doc.Find(selector)

	out := make([]siteclone.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, r.snapshot(s, base))
	})
	return out, nil
}

func (r *Renderer) snapshot(s *goquery.Selection, base *url.URL) siteclone.Element {
	id, ok := s.Attr(idAttr)
	if !ok {
		r.next++
		id = strconv.Itoa(r.next)
		s.SetAttr(idAttr, id)
	}

	href, _ := s.Attr("href")
	if href == "" {
		href, _ = s.Find("a[href]").First().Attr("href")
	}
	class, _ := s.Attr("class")
	role, _ := s.Attr("role")

	return siteclone.Element{
		Selector:  fmt.Sprintf("[%s=%q]", idAttr, id),
		Tag:       goquery.NodeName(s),
		Text:      strings.Join(strings.Fields(s.Text()), " "),
		Href:      resolve(base, href),
		Class:     class,
		Role:      role,
		Visible:   visible(s),
		InFooter:  s.Closest("footer, [role=contentinfo]").Length() > 0,
		InTabList: s.Closest("[role=tablist]").Length() > 0,
		InNav:     s.Closest("nav, header, [role=navigation], [role=menubar]").Length() > 0,
	}
}

// visible infers visibility from the element and its ancestors: hidden
// attributes, aria-hidden and inline display or visibility styles.
func visible(s *goquery.Selection) bool {
	for n := s; n.Length() > 0; n = n.Parent() {
		if goquery.NodeName(n) == "#document" {
			break
		}
		if _, ok := n.Attr("hidden"); ok {
			return false
		}
		if v, _ := n.Attr("aria-hidden"); v == "true" {
			return false
		}
		style, _ := n.Attr("style")
		style = strings.ReplaceAll(strings.ToLower(style), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
		if t, _ := n.Attr("type"); goquery.NodeName(n) == "input" && t == "hidden" {
			return false
		}
	}
	return true
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// Hover is unsupported without a browser.
func (r *Renderer) Hover(ctx context.Context, selector string) error {
	return siteclone.Errorf(siteclone.EINVALID, "static renderer cannot hover %s", selector)
}

// Click is unsupported without a browser.
func (r *Renderer) Click(ctx context.Context, selector string) error {
	return siteclone.Errorf(siteclone.EINVALID, "static renderer cannot click %s", selector)
}

// ScrollBy is a no-op: there is no viewport.
func (r *Renderer) ScrollBy(ctx context.Context, dx, dy int) error {
	return nil
}

// Screenshot is unsupported without a browser.
func (r *Renderer) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, siteclone.Errorf(siteclone.EINVALID, "static renderer cannot take screenshots")
}

// HTML returns the document as it was served.
func (r *Renderer) HTML(ctx context.Context) (string, error) {
	if r.doc == nil {
		return "", siteclone.Errorf(siteclone.EINVALID, "no document loaded")
	}
	return r.body, nil
}

// Close drops the loaded document. The HTTP client needs no cleanup.
func (r *Renderer) Close() error {
	r.doc = nil
	return nil
}

// Pool hands out static renderers sharing one HTTP client.
type Pool struct {
	opts options
}

// NewPool creates a Pool.
func NewPool(opts ...Option) *Pool {
	return &Pool{opts: newOptions(opts)}
}

// Acquire returns a fresh renderer.
func (p *Pool) Acquire(ctx context.Context) (siteclone.Renderer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Renderer{client: p.opts.client, userAgent: p.opts.userAgent}, nil
}

// Release closes r.
func (p *Pool) Release(r siteclone.Renderer) {
	_ = r.Close()
}

// Close is a no-op.
func (p *Pool) Close() error {
	return nil
}
