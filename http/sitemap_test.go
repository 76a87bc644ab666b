package http_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/fwojciec/siteclone"
	sitehttp "github.com/fwojciec/siteclone/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const urlset = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">%s</urlset>`

func urlsetOf(paths ...string) string {
	var b strings.Builder
	for _, p := range paths {
		b.WriteString("<url><loc>{{BASE}}" + p + "</loc></url>")
	}
	return strings.Replace(urlset, "%s", b.String(), 1)
}

func TestSitemapService_DiscoverURLs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content map[string]string
		base    string
		filter  func(t *testing.T) *siteclone.URLFilter
		want    []string
	}{
		{
			name: "robots.txt directive",
			content: map[string]string{
				"/robots.txt":  "User-agent: *\nDisallow: /admin/\nSitemap: {{BASE}}/sitemap.xml\n",
				"/sitemap.xml": urlsetOf("/company/about", "/products/a"),
			},
			want: []string{"/company/about", "/products/a"},
		},
		{
			name: "fallback to sitemap.xml",
			content: map[string]string{
				"/sitemap.xml": urlsetOf("/company/about"),
			},
			want: []string{"/company/about"},
		},
		{
			name: "sitemap index",
			content: map[string]string{
				"/robots.txt": "Sitemap: {{BASE}}/index.xml\n",
				"/index.xml": `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>{{BASE}}/pages.xml</loc></sitemap>
  <sitemap><loc>{{BASE}}/news.xml</loc></sitemap>
  <sitemap><loc>{{BASE}}/pages.xml</loc></sitemap>
</sitemapindex>`,
				"/pages.xml": urlsetOf("/company/about", "/company/history"),
				"/news.xml":  urlsetOf("/news/1", "/company/about"),
			},
			want: []string{"/company/about", "/company/history", "/news/1"},
		},
		{
			name: "multiple directives",
			content: map[string]string{
				"/robots.txt": "User-agent: *\nSitemap: {{BASE}}/a.xml\nSitemap: {{BASE}}/b.xml\n",
				"/a.xml":      urlsetOf("/a"),
				"/b.xml":      urlsetOf("/b"),
			},
			want: []string{"/a", "/b"},
		},
		{
			name: "path prefix of base",
			content: map[string]string{
				"/sitemap.xml": urlsetOf("/company/about", "/companyinfo", "/products/a"),
			},
			base: "/company",
			want: []string{"/company/about"},
		},
		{
			name: "exclude globs",
			content: map[string]string{
				"/sitemap.xml": urlsetOf("/company/about", "/board/1", "/board/2", "/search?q=x"),
			},
			filter: func(t *testing.T) *siteclone.URLFilter {
				f, err := siteclone.NewExcludeFilter([]string{"/board/*", "/search*"})
				require.NoError(t, err)
				return f
			},
			want: []string{"/company/about"},
		},
		{
			name: "include patterns",
			content: map[string]string{
				"/sitemap.xml": urlsetOf("/company/about", "/products/a", "/products/b"),
			},
			filter: func(*testing.T) *siteclone.URLFilter {
				return &siteclone.URLFilter{Include: []*regexp.Regexp{regexp.MustCompile(`/products/`)}}
			},
			want: []string{"/products/a", "/products/b"},
		},
		{
			name: "sitemap_index.xml fallback",
			content: map[string]string{
				"/sitemap_index.xml": `<sitemapindex><sitemap><loc>{{BASE}}/pages.xml</loc></sitemap></sitemapindex>`,
				"/pages.xml":         urlsetOf("/a"),
			},
			want: []string{"/a"},
		},
		{
			name: "other hosts are dropped",
			content: map[string]string{
				"/sitemap.xml": strings.Replace(urlset, "%s",
					"<url><loc>{{BASE}}/a</loc></url><url><loc>https://cdn.example.net/b</loc></url>", 1),
			},
			want: []string{"/a"},
		},
		{
			name: "broken child sitemap is skipped",
			content: map[string]string{
				"/robots.txt": "Sitemap: {{BASE}}/index.xml\n",
				"/index.xml": `<sitemapindex>
  <sitemap><loc>{{BASE}}/missing.xml</loc></sitemap>
  <sitemap><loc>{{BASE}}/broken.xml</loc></sitemap>
  <sitemap><loc>{{BASE}}/pages.xml</loc></sitemap>
</sitemapindex>`,
				"/broken.xml": "<html>not a sitemap</html>",
				"/pages.xml":  urlsetOf("/a"),
			},
			want: []string{"/a"},
		},
		{
			name:    "no sitemap",
			content: map[string]string{},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newTestServer(t, tt.content)
			defer srv.Close()

			var filter *siteclone.URLFilter
			if tt.filter != nil {
				filter = tt.filter(t)
			}

			svc := sitehttp.NewSitemapService(srv.Client(), nil)
			urls, err := svc.DiscoverURLs(context.Background(), srv.URL+tt.base, filter)
			require.NoError(t, err)

			want := make([]string, 0, len(tt.want))
			for _, p := range tt.want {
				want = append(want, srv.URL+p)
			}
			if len(want) == 0 {
				assert.Empty(t, urls)
				return
			}
			assert.ElementsMatch(t, want, urls)
		})
	}
}

func TestSitemapService_DiscoverURLs_ContextCancellation(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, map[string]string{"/sitemap.xml": urlsetOf("/a")})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := sitehttp.NewSitemapService(srv.Client(), nil)
	_, err := svc.DiscoverURLs(ctx, srv.URL, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSitemapService_DiscoverURLs_MalformedXML(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, map[string]string{"/sitemap.xml": "this is not a sitemap"})
	defer srv.Close()

	svc := sitehttp.NewSitemapService(srv.Client(), nil)
	_, err := svc.DiscoverURLs(context.Background(), srv.URL, nil)
	require.Error(t, err)
}

func TestSitemapService_SharesRobotsCache(t *testing.T) {
	t.Parallel()

	var robotsHits atomic.Int32
	srv := newCountingServer(t, map[string]string{
		"/robots.txt":  "User-agent: *\nDisallow: /admin/\nSitemap: {{BASE}}/sitemap.xml\n",
		"/sitemap.xml": urlsetOf("/a"),
	}, &robotsHits)
	defer srv.Close()

	robots := sitehttp.NewRobots(srv.Client(), "")
	svc := sitehttp.NewSitemapService(srv.Client(), robots)

	_, err := svc.DiscoverURLs(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.False(t, robots.Allowed(context.Background(), srv.URL+"/admin/users"))
	assert.Equal(t, int32(1), robotsHits.Load())
}

func TestSitemapService_OrdersByPriority(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, map[string]string{
		"/sitemap.xml": `<urlset>
  <url><loc>{{BASE}}/news/1</loc><priority>0.3</priority></url>
  <url><loc>{{BASE}}/plain</loc></url>
  <url><loc>{{BASE}}/company</loc><priority>1.0</priority></url>
  <url><loc>{{BASE}}/odd</loc><priority>high</priority></url>
  <url><loc>{{BASE}}/products</loc><priority>0.8</priority></url>
</urlset>`,
	})
	defer srv.Close()

	urls, err := sitehttp.NewSitemapService(srv.Client(), nil).DiscoverURLs(context.Background(), srv.URL, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{
		srv.URL + "/company",
		srv.URL + "/products",
		srv.URL + "/plain",
		srv.URL + "/odd",
		srv.URL + "/news/1",
	}, urls)
}

func TestSitemapService_CapsURLs(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, map[string]string{
		"/robots.txt": "Sitemap: {{BASE}}/a.xml\nSitemap: {{BASE}}/b.xml\n",
		"/a.xml":      urlsetOf("/a1", "/a2"),
		"/b.xml":      urlsetOf("/b1", "/b2"),
	})
	defer srv.Close()

	svc := sitehttp.NewSitemapService(srv.Client(), nil, sitehttp.WithMaxSitemapURLs(3))
	urls, err := svc.DiscoverURLs(context.Background(), srv.URL, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/a1", srv.URL + "/a2", srv.URL + "/b1"}, urls)
}

func TestSitemapService_ReadsGzipSitemaps(t *testing.T) {
	t.Parallel()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			_, _ = w.Write([]byte("Sitemap: " + srv.URL + "/sitemap.xml.gz\n"))
		case "/sitemap.xml.gz":
			var buf bytes.Buffer
			gz := gzip.NewWriter(&buf)
			_, _ = gz.Write([]byte(strings.ReplaceAll(urlsetOf("/a", "/b"), "{{BASE}}", srv.URL)))
			_ = gz.Close()
			w.Header().Set("Content-Type", "application/x-gzip")
			_, _ = w.Write(buf.Bytes())
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	urls, err := sitehttp.NewSitemapService(srv.Client(), nil).DiscoverURLs(context.Background(), srv.URL, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/a", srv.URL + "/b"}, urls)
}

func TestSitemapService_BoundsIndexNesting(t *testing.T) {
	t.Parallel()

	index := func(next string) string {
		return `<sitemapindex><sitemap><loc>{{BASE}}/` + next + `</loc></sitemap></sitemapindex>`
	}
	srv := newTestServer(t, map[string]string{
		"/sitemap.xml": strings.Replace(index("i1.xml"), "</sitemapindex>",
			`<sitemap><loc>{{BASE}}/top.xml</loc></sitemap></sitemapindex>`, 1),
		"/i1.xml":   index("i2.xml"),
		"/i2.xml":   index("i3.xml"),
		"/i3.xml":   index("deep.xml"),
		"/deep.xml": urlsetOf("/deep"),
		"/top.xml":  urlsetOf("/top"),
	})
	defer srv.Close()

	urls, err := sitehttp.NewSitemapService(srv.Client(), nil).DiscoverURLs(context.Background(), srv.URL, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/top"}, urls)
}

func TestSitemapService_RejectsInvalidBase(t *testing.T) {
	t.Parallel()

	_, err := sitehttp.NewSitemapService(nil, nil).DiscoverURLs(context.Background(), "not a url", nil)

	assert.Equal(t, siteclone.EINVALID, siteclone.ErrorCode(err))
}

// newTestServer creates a test HTTP server with the given path->content mapping.
// Content strings may contain {{BASE}} which is replaced with the server URL.
func newTestServer(t *testing.T, content map[string]string) *httptest.Server {
	t.Helper()
	return newCountingServer(t, content, nil)
}

func newCountingServer(t *testing.T, content map[string]string, robotsHits *atomic.Int32) *httptest.Server {
	t.Helper()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" && robotsHits != nil {
			robotsHits.Add(1)
		}
		body, ok := content[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		body = strings.ReplaceAll(body, "{{BASE}}", srv.URL)

		if r.URL.Path == "/robots.txt" {
			w.Header().Set("Content-Type", "text/plain")
		} else {
			w.Header().Set("Content-Type", "application/xml")
		}
		_, _ = w.Write([]byte(body))
	}))

	return srv
}
