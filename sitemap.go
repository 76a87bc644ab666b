package siteclone

import (
	"context"
	"regexp"
	"strings"
)

// SitemapService discovers URLs from website sitemaps.
type SitemapService interface {
	// DiscoverURLs finds all URLs from a site's sitemap.
	// It first checks robots.txt for sitemap directives, then falls back
	// to /sitemap.xml. Sitemap indexes are resolved recursively.
	//
	// The filter can be used to include/exclude URLs by pattern.
	// If filter is nil, all URLs are returned.
	DiscoverURLs(ctx context.Context, baseURL string, filter *URLFilter) ([]string, error)
}

// RobotsChecker answers robots.txt questions for the crawl user agent.
type RobotsChecker interface {
	// Allowed reports whether rawURL may be fetched. Unreachable or
	// malformed robots.txt files allow everything.
	Allowed(ctx context.Context, rawURL string) bool
}

// URLFilter specifies patterns for including/excluding URLs.
type URLFilter struct {
	// Include patterns - if set, only URLs matching at least one pattern are included.
	Include []*regexp.Regexp

	// Exclude patterns - URLs matching any pattern are excluded.
	// Exclude is applied after Include.
	Exclude []*regexp.Regexp
}

// Match returns true if the URL passes the filter.
// If the filter is nil, all URLs pass.
func (f *URLFilter) Match(url string) bool {
	if f == nil {
		return true
	}

	// If include patterns exist, URL must match at least one
	if len(f.Include) > 0 {
		matched := false
		for _, re := range f.Include {
			if re.MatchString(url) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, re := range f.Exclude {
		if re.MatchString(url) {
			return false
		}
	}

	return true
}

// GlobToRegexp compiles a path glob such as "/board/*" or "/search*" into a
// regexp matched against the path portion of a URL. "*" matches any run of
// characters, including "/". A trailing "/*" also matches the bare prefix.
func GlobToRegexp(glob string) (*regexp.Regexp, error) {
	if glob == "" {
		return nil, Errorf(EINVALID, "empty glob pattern")
	}
	body := glob
	optionalTail := strings.HasSuffix(body, "/*")
	if optionalTail {
		body = strings.TrimSuffix(body, "/*")
	}
	parts := strings.Split(body, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	pattern := `^(?:[a-zA-Z][a-zA-Z0-9+.-]*://[^/]+)?` + strings.Join(parts, ".*")
	if optionalTail {
		pattern += `(?:/.*)?`
	}
	pattern += `(?:[?#].*)?$`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, Errorf(EINVALID, "invalid glob %q: %v", glob, err)
	}
	return re, nil
}

// NewExcludeFilter builds a URLFilter that rejects URLs matching any glob.
func NewExcludeFilter(globs []string) (*URLFilter, error) {
	filter := &URLFilter{}
	for _, g := range globs {
		re, err := GlobToRegexp(g)
		if err != nil {
			return nil, err
		}
		filter.Exclude = append(filter.Exclude, re)
	}
	return filter, nil
}
