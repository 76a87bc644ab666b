package crawl

import (
	"context"
	"net"
	"net/url"
	"path"
	"strings"

	"github.com/fwojciec/siteclone"
	"golang.org/x/net/publicsuffix"
)

// Canonicalize resolves href against base and returns the canonical form
// used for deduplication: absolute http(s), lowercase scheme and host,
// no default port, no fragment, and "/" for an empty path.
// Returns false for anything that is not a fetchable web URL.
func Canonicalize(base, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	u := ref
	if base != "" {
		b, err := url.Parse(base)
		if err != nil {
			return "", false
		}
		u = b.ResolveReference(ref)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = net.JoinHostPort(host, port)
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
	return u.String(), true
}

// Scope decides which discovered links belong to a session and at which
// priority they are crawled.
type Scope struct {
	root       *url.URL
	site       string
	deepDepth  int
	exclude    *siteclone.URLFilter
	extensions map[string]struct{}
	priority   []string
	robots     siteclone.RobotsChecker
}

// NewScope builds the scope of a crawl rooted at rootURL.
// robots may be nil to ignore robots.txt.
func NewScope(rootURL string, policy *siteclone.CrawlPolicy, robots siteclone.RobotsChecker) (*Scope, error) {
	canonical, ok := Canonicalize("", rootURL)
	if !ok {
		return nil, siteclone.Errorf(siteclone.EINVALID, "invalid root URL %q", rootURL)
	}
	root, err := url.Parse(canonical)
	if err != nil {
		return nil, siteclone.Errorf(siteclone.EINVALID, "invalid root URL %q", rootURL)
	}

	exclude, err := siteclone.NewExcludeFilter(policy.ExcludePatterns)
	if err != nil {
		return nil, err
	}

	extensions := make(map[string]struct{}, len(policy.ExcludeExtensions))
	for _, ext := range policy.ExcludeExtensions {
		extensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}

	return &Scope{
		root:       root,
		site:       registrableDomain(root.Hostname()),
		deepDepth:  policy.DeepDepth,
		exclude:    exclude,
		extensions: extensions,
		priority:   policy.PriorityPaths,
		robots:     robots,
	}, nil
}

// RootURL returns the canonical root URL.
func (s *Scope) RootURL() string {
	return s.root.String()
}

// Allowed reports whether a canonical URL may be crawled: same registrable
// domain as the root, not a binary or data file, not excluded by pattern,
// and permitted by robots.txt when a checker is configured.
func (s *Scope) Allowed(ctx context.Context, canonical string) bool {
	u, err := url.Parse(canonical)
	if err != nil {
		return false
	}
	if registrableDomain(u.Hostname()) != s.site {
		return false
	}
	if ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), "."); ext != "" {
		if _, excluded := s.extensions[ext]; excluded {
			return false
		}
	}
	if !s.exclude.Match(canonical) {
		return false
	}
	if s.robots != nil && !s.robots.Allowed(ctx, canonical) {
		return false
	}
	return true
}

// Classify turns a link found on a page at parentDepth into a crawl task.
// Returns false for links outside the scope.
func (s *Scope) Classify(ctx context.Context, link siteclone.DiscoveredLink, parentDepth int) (siteclone.CrawlTask, bool) {
	canonical, ok := Canonicalize(s.root.String(), link.URL)
	if !ok || !s.Allowed(ctx, canonical) {
		return siteclone.CrawlTask{}, false
	}
	u, _ := url.Parse(canonical)

	priority := siteclone.PriorityInternal
	switch {
	case s.isPriorityPath(u.Path):
	case !strings.EqualFold(u.Host, s.root.Host):
		priority = siteclone.PriorityExternal
	case parentDepth >= s.deepDepth:
		priority = siteclone.PriorityDeep
	}

	return siteclone.CrawlTask{
		URL:      canonical,
		Priority: priority,
		Depth:    parentDepth + 1,
		Label:    strings.TrimSpace(link.Text),
	}, true
}

// MenuTasks converts menu groups into depth-1 MENU tasks in menu order.
// A group without items contributes its direct link.
func (s *Scope) MenuTasks(ctx context.Context, menus []siteclone.MenuGroup) []siteclone.CrawlTask {
	var tasks []siteclone.CrawlTask
	add := func(rawURL, trigger, label string) {
		canonical, ok := Canonicalize(s.root.String(), rawURL)
		if !ok || !s.Allowed(ctx, canonical) {
			return
		}
		tasks = append(tasks, siteclone.CrawlTask{
			URL:        canonical,
			Priority:   siteclone.PriorityMenu,
			Depth:      1,
			SourceMenu: trigger,
			Label:      label,
		})
	}
	for _, group := range menus {
		if len(group.Items) == 0 {
			if group.URL != "" {
				add(group.URL, group.Trigger, "")
			}
			continue
		}
		for _, item := range group.Items {
			if item.URL != "" {
				add(item.URL, group.Trigger, item.Name)
			}
		}
	}
	return tasks
}

func (s *Scope) isPriorityPath(p string) bool {
	for _, prefix := range s.priority {
		if prefix != "" && strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// registrableDomain returns the eTLD+1 of host. IP addresses and hosts
// without a public suffix are their own site.
func registrableDomain(host string) string {
	host = strings.ToLower(host)
	if net.ParseIP(host) != nil {
		return host
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return site
}
