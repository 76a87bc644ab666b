package http

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/fwojciec/siteclone"
)

// Ensure SitemapService implements siteclone.SitemapService.
var _ siteclone.SitemapService = (*SitemapService)(nil)

const (
	// DefaultMaxSitemapURLs caps the URLs collected per discovery, the
	// per-file limit of the sitemap protocol.
	DefaultMaxSitemapURLs = 50000

	// maxIndexDepth bounds sitemap index nesting.
	maxIndexDepth = 3

	// defaultEntryPriority is the protocol default for <url> entries
	// without a <priority>.
	defaultEntryPriority = 0.5
)

// fallbackSitemaps are tried in order when robots.txt declares none.
var fallbackSitemaps = []string{"/sitemap.xml", "/sitemap_index.xml"}

// SitemapService discovers a site's pages from its sitemaps. Only URLs on
// the host being cloned are returned, ordered by their sitemap priority so
// the pages a site marks as important seed the crawl first.
type SitemapService struct {
	client  *http.Client
	robots  *Robots
	maxURLs int
}

// SitemapOption configures a SitemapService.
type SitemapOption func(*SitemapService)

// WithMaxSitemapURLs caps the URLs returned by one discovery.
func WithMaxSitemapURLs(n int) SitemapOption {
	return func(s *SitemapService) {
		if n > 0 {
			s.maxURLs = n
		}
	}
}

// NewSitemapService creates a new SitemapService with the given HTTP client.
// If client is nil, http.DefaultClient is used. Sitemap directives are read
// through robots, which may be nil; passing the crawl's checker shares its
// robots.txt cache.
func NewSitemapService(client *http.Client, robots *Robots, opts ...SitemapOption) *SitemapService {
	if client == nil {
		client = http.DefaultClient
	}
	if robots == nil {
		robots = NewRobots(client, "")
	}
	s := &SitemapService{client: client, robots: robots, maxURLs: DefaultMaxSitemapURLs}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DiscoverURLs returns the sitemap URLs of baseURL's host, highest
// <priority> first and in document order within a priority. A baseURL with
// a path limits results to that path subtree. Returns an empty slice when
// the site has no sitemap.
//
// A broken sitemap referenced from an index is skipped; a broken top-level
// sitemap fails the discovery.
func (s *SitemapService) DiscoverURLs(ctx context.Context, baseURL string, filter *siteclone.URLFilter) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, siteclone.Errorf(siteclone.EINVALID, "invalid base URL %q", baseURL)
	}

	sitemaps, err := s.locate(ctx, base)
	if err != nil {
		return nil, err
	}

	w := &sitemapWalk{
		svc:    s,
		host:   strings.ToLower(base.Hostname()),
		prefix: pathPrefix(base.Path),
		filter: filter,
		seen:   make(map[string]bool),
		urls:   make(map[string]bool),
	}
	for _, sm := range sitemaps {
		if err := w.visit(ctx, sm, 0); err != nil {
			return nil, err
		}
	}
	return w.result(), nil
}

// locate returns the sitemaps declared in robots.txt, or the first
// well-known location that answers.
func (s *SitemapService) locate(ctx context.Context, base *url.URL) ([]string, error) {
	root := url.URL{Scheme: base.Scheme, Host: base.Host}
	if declared := s.robots.Sitemaps(ctx, root.String()); len(declared) > 0 {
		return declared, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, p := range fallbackSitemaps {
		candidate := root.ResolveReference(&url.URL{Path: p}).String()
		ok, err := s.exists(ctx, candidate)
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if ok {
			return []string{candidate}, nil
		}
	}
	return nil, nil
}

type sitemapEntry struct {
	url      string
	priority float64
	order    int
}

// sitemapWalk collects entries across one discovery's sitemaps.
type sitemapWalk struct {
	svc     *SitemapService
	host    string
	prefix  string
	filter  *siteclone.URLFilter
	seen    map[string]bool
	urls    map[string]bool
	entries []sitemapEntry
}

func (w *sitemapWalk) full() bool {
	return len(w.entries) >= w.svc.maxURLs
}

func (w *sitemapWalk) visit(ctx context.Context, sitemapURL string, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.seen[sitemapURL] || w.full() {
		return nil
	}
	w.seen[sitemapURL] = true

	root, err := w.svc.read(ctx, sitemapURL)
	if err != nil {
		return err
	}

	if root.Tag != "sitemapindex" {
		w.collect(root)
		return nil
	}
	if depth >= maxIndexDepth {
		return nil
	}
	for _, el := range root.SelectElements("sitemap") {
		loc := elementText(el, "loc")
		if loc == "" {
			continue
		}
		if err := w.visit(ctx, loc, depth+1); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
	}
	return nil
}

func (w *sitemapWalk) collect(urlset *etree.Element) {
	for _, el := range urlset.SelectElements("url") {
		if w.full() {
			return
		}
		loc := elementText(el, "loc")
		if loc == "" || w.urls[loc] || !w.accept(loc) {
			continue
		}
		w.urls[loc] = true
		w.entries = append(w.entries, sitemapEntry{
			url:      loc,
			priority: entryPriority(elementText(el, "priority")),
			order:    len(w.entries),
		})
	}
}

func (w *sitemapWalk) accept(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || strings.ToLower(u.Hostname()) != w.host {
		return false
	}
	if w.prefix != "" && !strings.HasPrefix(u.Path, w.prefix) {
		return false
	}
	return w.filter.Match(rawURL)
}

func (w *sitemapWalk) result() []string {
	sort.SliceStable(w.entries, func(i, j int) bool {
		return w.entries[i].priority > w.entries[j].priority
	})
	out := make([]string, 0, len(w.entries))
	for _, e := range w.entries {
		out = append(out, e.url)
	}
	return out
}

// read fetches and parses one sitemap document, inflating gzip sitemaps.
func (s *SitemapService) read(ctx context.Context, sitemapURL string) (*etree.Element, error) {
	resp, err := s.get(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if isGzip(sitemapURL, resp.Header.Get("Content-Type")) {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("sitemap %s: %w", sitemapURL, err)
		}
		defer gz.Close()
		body = gz
	}

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(body); err != nil {
		return nil, fmt.Errorf("parsing sitemap %s: %w", sitemapURL, err)
	}
	root := doc.Root()
	if root == nil || (root.Tag != "urlset" && root.Tag != "sitemapindex") {
		return nil, fmt.Errorf("sitemap %s: not a urlset or sitemapindex", sitemapURL)
	}
	return root, nil
}

func (s *SitemapService) get(ctx context.Context, targetURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, targetURL)
	}
	return resp, nil
}

// exists reports whether targetURL answers a GET with 200. HEAD is
// avoided since many sites reject it for generated sitemaps.
func (s *SitemapService) exists(ctx context.Context, targetURL string) (bool, error) {
	resp, err := s.get(ctx, targetURL)
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	return true, nil
}

func isGzip(rawURL, contentType string) bool {
	if strings.HasSuffix(strings.ToLower(rawURL), ".gz") {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "gzip")
}

func elementText(parent *etree.Element, tag string) string {
	el := parent.SelectElement(tag)
	if el == nil {
		return ""
	}
	return strings.TrimSpace(el.Text())
}

func entryPriority(s string) float64 {
	p, err := strconv.ParseFloat(s, 64)
	if err != nil || p < 0 || p > 1 {
		return defaultEntryPriority
	}
	return p
}

// pathPrefix normalizes a base path for subtree matching: "/docs" matches
// "/docs/" and "/docs/intro" but not "/documentation".
func pathPrefix(p string) string {
	if p == "" || p == "/" {
		return ""
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}
