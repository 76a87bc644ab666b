package crawl_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/siteclone"
	"github.com/fwojciec/siteclone/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Clone_Concurrency(t *testing.T) {
	t.Parallel()

	t.Run("captures pages in parallel up to the concurrency limit", func(t *testing.T) {
		t.Parallel()

		// Track concurrent navigations using atomics to avoid data races
		var maxConcurrent atomic.Int32
		var currentConcurrent atomic.Int32
		track := func(int) error {
			current := currentConcurrent.Add(1)
			for {
				peak := maxConcurrent.Load()
				if current <= peak || maxConcurrent.CompareAndSwap(peak, current) {
					break
				}
			}
			// Simulate work to allow concurrency to build up
			time.Sleep(50 * time.Millisecond)
			currentConcurrent.Add(-1)
			return nil
		}

		const numPages = 10
		const concurrency = 3

		f := newFixture(t)
		f.engine.Policy.Concurrency = concurrency
		var links []string
		for i := 1; i <= numPages; i++ {
			u := fmt.Sprintf("https://x.com/docs/page%d", i)
			links = append(links, u)
			f.page(u).FailNavigate = track
		}
		f.page(rootURL, links...)

		result, _, err := f.clone(t, siteclone.CloneRequest{URL: rootURL})

		require.NoError(t, err)
		assert.Len(t, result.Pages, numPages)
		assert.Greater(t, maxConcurrent.Load(), int32(1), "expected parallel captures")
		assert.LessOrEqual(t, maxConcurrent.Load(), int32(concurrency), "concurrency limit exceeded")
	})

	t.Run("rate limits every capture by host", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		var hosts []string
		f := newFixture(t)
		f.engine.RateLimiter = &mock.DomainLimiter{
			WaitFn: func(_ context.Context, domain string) error {
				mu.Lock()
				defer mu.Unlock()
				hosts = append(hosts, domain)
				return nil
			},
		}
		f.page(rootURL, "https://x.com/a", "https://blog.x.com/b")
		f.page("https://x.com/a")
		f.page("https://blog.x.com/b")

		result, _, err := f.clone(t, siteclone.CloneRequest{URL: rootURL})

		require.NoError(t, err)
		assert.Len(t, result.Pages, 2)
		assert.ElementsMatch(t, []string{"x.com", "x.com", "blog.x.com"}, hosts)
	})

	t.Run("crawls internal pages before external ones", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.page(rootURL, "https://blog.x.com/b", "https://x.com/a")
		f.page("https://x.com/a")
		f.page("https://blog.x.com/b")

		result, _, err := f.clone(t, siteclone.CloneRequest{URL: rootURL})

		require.NoError(t, err)
		require.Len(t, result.Pages, 2)
		assert.Equal(t, "https://x.com/a", result.Pages[0].URL)
		assert.Equal(t, siteclone.PriorityExternal, result.Pages[1].Priority)
	})

	t.Run("follows links of skipped duplicates", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.page(rootURL, "https://x.com/a", "https://x.com/b")
		f.site.Add("https://x.com/a", &mock.Page{HTML: "<main>Listing shell body</main>"})
		f.site.Add("https://x.com/b", &mock.Page{HTML: "<main>Listing  shell body</main>"})
		f.setLinks("https://x.com/b", "https://x.com/c")
		f.page("https://x.com/c")

		result, _, err := f.clone(t, siteclone.CloneRequest{URL: rootURL})

		require.NoError(t, err)
		assert.Equal(t, []string{"https://x.com/a", "https://x.com/c"}, pageURLs(result.Pages))
	})

	t.Run("names pages uniquely", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.page(rootURL, "https://x.com/a/guide", "https://x.com/b/guide")
		f.page("https://x.com/a/guide")
		f.page("https://x.com/b/guide")

		result, _, err := f.clone(t, siteclone.CloneRequest{URL: rootURL})

		require.NoError(t, err)
		require.Len(t, result.Pages, 2)
		assert.Equal(t, "Page_guide_1", result.Pages[0].Name)
		assert.Equal(t, "Page_guide_2", result.Pages[1].Name)
		assert.NotEqual(t, result.Pages[0].Hash, result.Pages[1].Hash)
	})
}
