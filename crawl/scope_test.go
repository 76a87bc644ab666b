package crawl_test

import (
	"context"
	"testing"

	"github.com/fwojciec/siteclone"
	"github.com/fwojciec/siteclone/crawl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRobots map[string]bool

func (r stubRobots) Allowed(_ context.Context, rawURL string) bool {
	allowed, ok := r[rawURL]
	return !ok || allowed
}

func TestCanonicalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		base string
		href string
		want string
		ok   bool
	}{
		{"absolute", "", "https://Example.COM/About", "https://example.com/About", true},
		{"relative", "https://x.com/company/", "history", "https://x.com/company/history", true},
		{"root relative", "https://x.com/a/b", "/c", "https://x.com/c", true},
		{"strips fragment", "", "https://x.com/a#top", "https://x.com/a", true},
		{"adds root path", "", "https://x.com", "https://x.com/", true},
		{"drops default port", "", "https://x.com:443/a", "https://x.com/a", true},
		{"keeps other ports", "", "http://127.0.0.1:8080/a", "http://127.0.0.1:8080/a", true},
		{"keeps query", "", "https://x.com/a?id=1", "https://x.com/a?id=1", true},
		{"rejects javascript", "https://x.com/", "javascript:void(0)", "", false},
		{"rejects mailto", "https://x.com/", "mailto:a@x.com", "", false},
		{"rejects empty", "https://x.com/", "  ", "", false},
		{"rejects ftp", "", "ftp://x.com/file", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := crawl.Canonicalize(tt.base, tt.href)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newScope(t *testing.T, mutate func(p *siteclone.CrawlPolicy), robots siteclone.RobotsChecker) *crawl.Scope {
	t.Helper()
	policy := siteclone.DefaultPolicy()
	if mutate != nil {
		mutate(&policy)
	}
	scope, err := crawl.NewScope("https://www.example.co.uk", &policy, robots)
	require.NoError(t, err)
	return scope
}

func TestScope_Classify(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("same host links are internal", func(t *testing.T) {
		t.Parallel()
		scope := newScope(t, nil, nil)

		task, ok := scope.Classify(ctx, siteclone.DiscoveredLink{URL: "/about", Text: " About "}, 0)
		require.True(t, ok)
		assert.Equal(t, "https://www.example.co.uk/about", task.URL)
		assert.Equal(t, siteclone.PriorityInternal, task.Priority)
		assert.Equal(t, 1, task.Depth)
		assert.Equal(t, "About", task.Label)
	})

	t.Run("sibling subdomains are external", func(t *testing.T) {
		t.Parallel()
		scope := newScope(t, nil, nil)

		task, ok := scope.Classify(ctx, siteclone.DiscoveredLink{URL: "https://shop.example.co.uk/"}, 0)
		require.True(t, ok)
		assert.Equal(t, siteclone.PriorityExternal, task.Priority)
	})

	t.Run("other sites are out of scope", func(t *testing.T) {
		t.Parallel()
		scope := newScope(t, nil, nil)

		_, ok := scope.Classify(ctx, siteclone.DiscoveredLink{URL: "https://other.co.uk/"}, 0)
		assert.False(t, ok)
	})

	t.Run("links on deep pages are deep", func(t *testing.T) {
		t.Parallel()
		scope := newScope(t, nil, nil)

		task, ok := scope.Classify(ctx, siteclone.DiscoveredLink{URL: "/a/b/c"}, 2)
		require.True(t, ok)
		assert.Equal(t, siteclone.PriorityDeep, task.Priority)
		assert.Equal(t, 3, task.Depth)
	})

	t.Run("priority paths are promoted to internal", func(t *testing.T) {
		t.Parallel()
		scope := newScope(t, func(p *siteclone.CrawlPolicy) {
			p.PriorityPaths = []string{"/product"}
		}, nil)

		task, ok := scope.Classify(ctx, siteclone.DiscoveredLink{URL: "/product/42"}, 2)
		require.True(t, ok)
		assert.Equal(t, siteclone.PriorityInternal, task.Priority)
	})

	t.Run("excluded extensions are dropped", func(t *testing.T) {
		t.Parallel()
		scope := newScope(t, nil, nil)

		_, ok := scope.Classify(ctx, siteclone.DiscoveredLink{URL: "/brochure.PDF"}, 0)
		assert.False(t, ok)
	})

	t.Run("exclude patterns are dropped", func(t *testing.T) {
		t.Parallel()
		scope := newScope(t, func(p *siteclone.CrawlPolicy) {
			p.ExcludePatterns = []string{"/board/*"}
		}, nil)

		_, ok := scope.Classify(ctx, siteclone.DiscoveredLink{URL: "/board/list?page=2"}, 0)
		assert.False(t, ok)
		_, ok = scope.Classify(ctx, siteclone.DiscoveredLink{URL: "/boards"}, 0)
		assert.True(t, ok)
	})

	t.Run("robots disallowed links are dropped", func(t *testing.T) {
		t.Parallel()
		scope := newScope(t, nil, stubRobots{"https://www.example.co.uk/private": false})

		_, ok := scope.Classify(ctx, siteclone.DiscoveredLink{URL: "/private"}, 0)
		assert.False(t, ok)
		_, ok = scope.Classify(ctx, siteclone.DiscoveredLink{URL: "/public"}, 0)
		assert.True(t, ok)
	})
}

func TestScope_MenuTasks(t *testing.T) {
	t.Parallel()

	scope := newScope(t, nil, nil)
	menus := []siteclone.MenuGroup{
		{Trigger: "Company", Items: []siteclone.MenuItem{
			{Name: "About", URL: "https://www.example.co.uk/company/about"},
			{Name: "No link"},
			{Name: "Elsewhere", URL: "https://elsewhere.com/"},
		}},
		{Trigger: "Contact", URL: "/contact"},
		{Trigger: "Empty"},
	}

	tasks := scope.MenuTasks(context.Background(), menus)

	require.Len(t, tasks, 2)
	assert.Equal(t, siteclone.CrawlTask{
		URL:        "https://www.example.co.uk/company/about",
		Priority:   siteclone.PriorityMenu,
		Depth:      1,
		SourceMenu: "Company",
		Label:      "About",
	}, tasks[0])
	assert.Equal(t, "https://www.example.co.uk/contact", tasks[1].URL)
	assert.Equal(t, "Contact", tasks[1].SourceMenu)
	assert.Empty(t, tasks[1].Label)
}

func TestNewScope(t *testing.T) {
	t.Parallel()

	t.Run("rejects invalid root", func(t *testing.T) {
		t.Parallel()
		policy := siteclone.DefaultPolicy()
		_, err := crawl.NewScope("not a url", &policy, nil)
		assert.Equal(t, siteclone.EINVALID, siteclone.ErrorCode(err))
	})

	t.Run("rejects invalid exclude glob", func(t *testing.T) {
		t.Parallel()
		policy := siteclone.DefaultPolicy()
		policy.ExcludePatterns = []string{""}
		_, err := crawl.NewScope("https://x.com", &policy, nil)
		assert.Equal(t, siteclone.EINVALID, siteclone.ErrorCode(err))
	})

	t.Run("exposes canonical root", func(t *testing.T) {
		t.Parallel()
		policy := siteclone.DefaultPolicy()
		scope, err := crawl.NewScope("https://X.com", &policy, nil)
		require.NoError(t, err)
		assert.Equal(t, "https://x.com/", scope.RootURL())
	})
}
