package mock

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/siteclone"
)

// Site is an in-memory website that drives crawl code without a browser.
// Pages are registered up front and treated as read-only afterwards.
type Site struct {
	mu       sync.Mutex
	pages    map[string]*Page
	visits   map[string]int
	hovers   []string
	released int
}

// Page is one document of a Site.
type Page struct {
	HTML string

	// Render, when set, replaces HTML and receives the 1-based number of
	// HTML calls made since the page was loaded.
	Render func(call int) string

	// Elements are the page's element snapshots. Selector must be unique.
	Elements []siteclone.Element

	// Reveals maps a trigger selector to the selectors of the elements
	// that become visible while it is hovered or clicked.
	Reveals map[string][]string

	// ClickReveals, when it has an entry for a trigger, replaces Reveals
	// for clicks on it.
	ClickReveals map[string][]string

	// Navigates maps a trigger selector to the URL a click loads.
	Navigates map[string]string

	// Queries overrides Elements results for exact selectors.
	Queries map[string][]siteclone.Element

	ScrollHeight int

	// FailNavigate, when set, is called with the 1-based visit number and
	// may fail the navigation.
	FailNavigate func(visit int) error

	// Delay is added to every navigation. A delay beyond the navigation
	// timeout fails with context.DeadlineExceeded.
	Delay time.Duration
}

// NewSite returns an empty Site.
func NewSite() *Site {
	return &Site{
		pages:  make(map[string]*Page),
		visits: make(map[string]int),
	}
}

// Add registers a page under url.
func (s *Site) Add(url string, p *Page) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = p
	return s
}

// Visits returns how many navigations were made to url.
func (s *Site) Visits(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, _ := s.lookupLocked(url)
	return s.visits[key]
}

// Hovers returns every hovered selector in order.
func (s *Site) Hovers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.hovers...)
}

// Released returns how many times ReleaseMemory was called on the pool.
func (s *Site) Released() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

func (s *Site) lookupLocked(url string) (string, *Page) {
	if p, ok := s.pages[url]; ok {
		return url, p
	}
	alt := url + "/"
	if strings.HasSuffix(url, "/") {
		alt = strings.TrimSuffix(url, "/")
	}
	if p, ok := s.pages[alt]; ok {
		return alt, p
	}
	return url, nil
}

// NewRenderer returns a renderer browsing the site.
func (s *Site) NewRenderer() *SiteRenderer {
	return &SiteRenderer{site: s}
}

// Pool returns a RendererPool handing out site renderers.
func (s *Site) Pool() *SitePool {
	return &SitePool{site: s}
}

var _ siteclone.Renderer = (*SiteRenderer)(nil)

// SiteRenderer is a siteclone.Renderer over a Site.
type SiteRenderer struct {
	site     *Site
	url      string
	page     *Page
	revealed map[string]struct{}
	htmlCall int
	scrollY  int
	closed   bool
}

func (r *SiteRenderer) Navigate(ctx context.Context, url string, wait siteclone.WaitStrategy, timeout time.Duration) error {
	r.site.mu.Lock()
	key, page := r.site.lookupLocked(url)
	r.site.visits[key]++
	visit := r.site.visits[key]
	r.site.mu.Unlock()

	if page == nil {
		return fmt.Errorf("navigate %s: 404 not found", url)
	}
	if page.FailNavigate != nil {
		if err := page.FailNavigate(visit); err != nil {
			return err
		}
	}
	if page.Delay > 0 {
		var deadline <-chan time.Time
		if timeout > 0 {
			t := time.NewTimer(timeout)
			defer t.Stop()
			deadline = t.C
		}
		delay := time.NewTimer(page.Delay)
		defer delay.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return context.DeadlineExceeded
		case <-delay.C:
		}
	}
	r.load(url, page)
	return nil
}

func (r *SiteRenderer) load(url string, page *Page) {
	r.url = url
	r.page = page
	r.revealed = nil
	r.htmlCall = 0
	r.scrollY = 0
}

func (r *SiteRenderer) URL(ctx context.Context) (string, error) {
	return r.url, nil
}

func (r *SiteRenderer) Evaluate(ctx context.Context, expr string) (any, error) {
	if r.page == nil {
		return nil, fmt.Errorf("no page loaded")
	}
	switch {
	case strings.Contains(expr, "scrollHeight"):
		return float64(r.page.ScrollHeight), nil
	case strings.Contains(expr, "scrollY"):
		return float64(r.scrollY), nil
	}
	return nil, nil
}

func (r *SiteRenderer) Elements(ctx context.Context, selector string) ([]siteclone.Element, error) {
	if r.page == nil {
		return nil, fmt.Errorf("no page loaded")
	}
	if q, ok := r.page.Queries[selector]; ok {
		return append([]siteclone.Element(nil), q...), nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(r.markup()))
	if err != nil {
		return nil, err
	}
	var out []siteclone.Element
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		idx, err := strconv.Atoi(s.AttrOr("data-mock", ""))
		if err != nil {
			return
		}
		e := r.page.Elements[idx]
		if _, ok := r.revealed[e.Selector]; ok {
			e.Visible = true
		}
		out = append(out, e)
	})
	return out, nil
}

// markup renders the element snapshots as a document goquery can match
// selectors against. Ancestry flags become wrapping nav, footer and
// tablist elements.
func (r *SiteRenderer) markup() string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i, e := range r.page.Elements {
		tag := e.Tag
		if tag == "" {
			tag = "a"
		}
		var prefix, suffix string
		if e.InNav {
			prefix, suffix = prefix+"<nav>", "</nav>"+suffix
		}
		if e.InFooter {
			prefix, suffix = prefix+"<footer>", "</footer>"+suffix
		}
		if e.InTabList {
			prefix, suffix = prefix+`<div role="tablist">`, "</div>"+suffix
		}
		b.WriteString(prefix)
		fmt.Fprintf(&b, `<%s data-mock="%d"`, tag, i)
		if e.Class != "" {
			fmt.Fprintf(&b, ` class="%s"`, html.EscapeString(e.Class))
		}
		if e.Role != "" {
			fmt.Fprintf(&b, ` role="%s"`, html.EscapeString(e.Role))
		}
		if e.Href != "" {
			fmt.Fprintf(&b, ` href="%s"`, html.EscapeString(e.Href))
		}
		fmt.Fprintf(&b, `>%s</%s>`, html.EscapeString(e.Text), tag)
		b.WriteString(suffix)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func (r *SiteRenderer) find(selector string) bool {
	for _, e := range r.page.Elements {
		if e.Selector == selector {
			return true
		}
	}
	return false
}

func (r *SiteRenderer) Hover(ctx context.Context, selector string) error {
	if r.page == nil || !r.find(selector) {
		return fmt.Errorf("hover %s: element not found", selector)
	}
	r.site.mu.Lock()
	r.site.hovers = append(r.site.hovers, selector)
	r.site.mu.Unlock()

	r.reveal(r.page.Reveals[selector])
	return nil
}

func (r *SiteRenderer) reveal(selectors []string) {
	r.revealed = make(map[string]struct{})
	for _, sel := range selectors {
		r.revealed[sel] = struct{}{}
	}
}

func (r *SiteRenderer) Click(ctx context.Context, selector string) error {
	if r.page == nil || !r.find(selector) {
		return fmt.Errorf("click %s: element not found", selector)
	}
	if target, ok := r.page.Navigates[selector]; ok {
		r.site.mu.Lock()
		_, page := r.site.lookupLocked(target)
		r.site.mu.Unlock()
		if page == nil {
			page = &Page{}
		}
		r.load(target, page)
		return nil
	}
	if sels, ok := r.page.ClickReveals[selector]; ok {
		r.reveal(sels)
		return nil
	}
	r.reveal(r.page.Reveals[selector])
	return nil
}

func (r *SiteRenderer) ScrollBy(ctx context.Context, dx, dy int) error {
	if r.page == nil {
		return fmt.Errorf("no page loaded")
	}
	r.scrollY += dy
	if r.scrollY < 0 {
		r.scrollY = 0
	}
	return nil
}

// ScrollY returns the current vertical scroll offset.
func (r *SiteRenderer) ScrollY() int {
	return r.scrollY
}

func (r *SiteRenderer) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("png:" + r.url), nil
}

func (r *SiteRenderer) HTML(ctx context.Context) (string, error) {
	if r.page == nil {
		return "", fmt.Errorf("no page loaded")
	}
	r.htmlCall++
	if r.page.Render != nil {
		return r.page.Render(r.htmlCall), nil
	}
	return r.page.HTML, nil
}

func (r *SiteRenderer) Close() error {
	r.closed = true
	return nil
}

var (
	_ siteclone.RendererPool   = (*SitePool)(nil)
	_ siteclone.MemoryReleaser = (*SitePool)(nil)
)

// SitePool is a siteclone.RendererPool over a Site.
type SitePool struct {
	site *Site
}

func (p *SitePool) Acquire(ctx context.Context) (siteclone.Renderer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.site.NewRenderer(), nil
}

func (p *SitePool) Release(r siteclone.Renderer) {
	_ = r.Close()
}

func (p *SitePool) Close() error {
	return nil
}

func (p *SitePool) ReleaseMemory(ctx context.Context) error {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	p.site.released++
	return nil
}
