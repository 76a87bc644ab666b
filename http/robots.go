package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/fwojciec/siteclone"
	"github.com/temoto/robotstxt"
)

// maxRobotsSize caps how much of a robots.txt file is read.
const maxRobotsSize = 512 * 1024

// Ensure Robots implements siteclone.RobotsChecker at compile time.
var _ siteclone.RobotsChecker = (*Robots)(nil)

// Robots answers robots.txt questions, fetching each host's file once.
type Robots struct {
	client    *http.Client
	userAgent string

	mu    sync.Mutex
	hosts map[string]*robotstxt.RobotsData
}

// NewRobots creates a checker for userAgent. If client is nil,
// http.DefaultClient is used.
func NewRobots(client *http.Client, userAgent string) *Robots {
	if client == nil {
		client = http.DefaultClient
	}
	if userAgent == "" {
		userAgent = siteclone.DefaultUserAgent
	}
	return &Robots{
		client:    client,
		userAgent: userAgent,
		hosts:     make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether rawURL may be fetched. Unreachable or malformed
// robots.txt files allow everything.
func (r *Robots) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}
	data := r.data(ctx, u)
	if data == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, r.userAgent)
}

// Sitemaps returns the Sitemap directives declared by the host of rawURL.
func (r *Robots) Sitemaps(ctx context.Context, rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil
	}
	data := r.data(ctx, u)
	if data == nil {
		return nil
	}
	return data.Sitemaps
}

// data returns the parsed robots.txt of u's host, or nil when it could
// not be fetched. Failures are not cached when ctx was cancelled.
func (r *Robots) data(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := u.Scheme + "://" + u.Host

	r.mu.Lock()
	data, ok := r.hosts[key]
	r.mu.Unlock()
	if ok {
		return data
	}

	data, err := r.fetch(ctx, key+"/robots.txt")
	if err != nil && ctx.Err() != nil {
		return nil
	}

	r.mu.Lock()
	r.hosts[key] = data
	r.mu.Unlock()
	return data
}

func (r *Robots) fetch(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, robotsURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		return nil, err
	}
	return robotstxt.FromStatusAndBytes(resp.StatusCode, body)
}
