package crawl_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fwojciec/siteclone"
	"github.com/fwojciec/siteclone/crawl"
	"github.com/fwojciec/siteclone/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rootURL = "https://x.com/"

func navLink(sel, text, href string, x, y float64) siteclone.Element {
	return siteclone.Element{
		Selector: sel,
		Tag:      "a",
		Text:     text,
		Href:     href,
		Rect:     siteclone.Rect{X: x, Y: y, Width: 80, Height: 30},
		Visible:  true,
		InNav:    true,
	}
}

func hidden(e siteclone.Element) siteclone.Element {
	e.Visible = false
	return e
}

func fastPolicy() *siteclone.CrawlPolicy {
	p := siteclone.DefaultPolicy()
	p.HoverWait = 0
	p.MenuOpenWait = 0
	p.ActionDelay = 0
	return &p
}

// companySite has a "Company" hover menu with three items, a direct
// "Contact" link and a boilerplate "Login" link.
func companySite() *mock.Site {
	return mock.NewSite().Add(rootURL, &mock.Page{
		HTML: "<html><body>home</body></html>",
		Elements: []siteclone.Element{
			navLink("#company", "Company ▼", "", 100, 20),
			navLink("#contact", "Contact", "https://x.com/contact", 300, 20),
			navLink("#login", "Login", "https://x.com/login", 500, 20),
			hidden(navLink("#vision", "Vision", "https://x.com/company/vision", 100, 120)),
			hidden(navLink("#about", "About", "https://x.com/company/about", 100, 60)),
			hidden(navLink("#history", "History", "https://x.com/company/history", 100, 90)),
		},
		Reveals: map[string][]string{
			"#company": {"#about", "#history", "#vision"},
		},
	})
}

func detect(t *testing.T, site *mock.Site, policy *siteclone.CrawlPolicy) ([]siteclone.MenuGroup, error) {
	t.Helper()
	r := site.NewRenderer()
	require.NoError(t, r.Navigate(context.Background(), rootURL, siteclone.WaitDOMContentLoaded, 0))
	return crawl.NewMenuDetector(policy, nil).Detect(context.Background(), r, rootURL)
}

func TestMenuDetector_Detect(t *testing.T) {
	t.Parallel()

	t.Run("detects hover menus and direct links", func(t *testing.T) {
		t.Parallel()

		groups, err := detect(t, companySite(), fastPolicy())

		require.NoError(t, err)
		assert.Equal(t, []siteclone.MenuGroup{
			{Trigger: "Company", Items: []siteclone.MenuItem{
				{Name: "About", URL: "https://x.com/company/about"},
				{Name: "History", URL: "https://x.com/company/history"},
				{Name: "Vision", URL: "https://x.com/company/vision"},
			}},
			{Trigger: "Contact", URL: "https://x.com/contact"},
		}, groups)
	})

	t.Run("returns an empty result for pages without navigation", func(t *testing.T) {
		t.Parallel()
		site := mock.NewSite().Add(rootURL, &mock.Page{HTML: "<p>plain</p>"})

		groups, err := detect(t, site, fastPolicy())

		require.NoError(t, err)
		assert.NotNil(t, groups)
		assert.Empty(t, groups)
	})

	t.Run("strict validation rejects triggers revealing too few items", func(t *testing.T) {
		t.Parallel()
		site := mock.NewSite().Add(rootURL, &mock.Page{
			Elements: []siteclone.Element{
				navLink("#tabs", "Overview", "", 100, 20),
				hidden(navLink("#only", "Only child", "https://x.com/only", 100, 60)),
			},
			Reveals: map[string][]string{"#tabs": {"#only"}},
		})

		groups, err := detect(t, site, fastPolicy())

		require.NoError(t, err)
		assert.Empty(t, groups)
	})

	t.Run("loose validation accepts static submenu structure", func(t *testing.T) {
		t.Parallel()
		policy := fastPolicy()
		policy.StrictHoverValidation = false
		site := mock.NewSite().Add(rootURL, &mock.Page{
			Elements: []siteclone.Element{
				navLink("#service", "Service", "", 100, 20),
			},
			Queries: map[string][]siteclone.Element{
				crawl.StaticSubmenuSelector("#service"): {
					hidden(navLink("#s1", "Consulting", "https://x.com/service/consulting", 100, 60)),
				},
			},
		})

		groups, err := detect(t, site, policy)

		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, "Service", groups[0].Trigger)
		assert.Equal(t, []siteclone.MenuItem{{Name: "Consulting", URL: "https://x.com/service/consulting"}}, groups[0].Items)
	})

	t.Run("excludes carousels, tabs, footers and oversized elements", func(t *testing.T) {
		t.Parallel()
		banner := navLink("#banner", "Big Banner", "https://x.com/banner", 0, 20)
		banner.Rect.Width, banner.Rect.Height = 1700, 100
		square := navLink("#square", "Square", "https://x.com/square", 0, 20)
		square.Rect.Width, square.Rect.Height = 300, 300
		slide := navLink("#slide", "Slide One", "https://x.com/slide", 0, 20)
		slide.Class = "swiper-slide active"
		tab := navLink("#tab", "Tab One", "https://x.com/tab", 0, 20)
		tab.Role = "tab"
		inTabs := navLink("#intabs", "Features", "https://x.com/features", 0, 20)
		inTabs.InTabList = true
		footer := navLink("#footer", "Privacy", "https://x.com/privacy", 0, 20)
		footer.InFooter = true
		low := navLink("#low", "Far Below", "https://x.com/below", 0, 3500)
		kept := navLink("#kept", "Products", "https://x.com/products", 0, 20)
		kept.Class = "gnb-item depth1"

		site := mock.NewSite().Add(rootURL, &mock.Page{
			Elements: []siteclone.Element{banner, square, slide, tab, inTabs, footer, low, kept},
		})

		groups, err := detect(t, site, fastPolicy())

		require.NoError(t, err)
		assert.Equal(t, []siteclone.MenuGroup{{Trigger: "Products", URL: "https://x.com/products"}}, groups)
	})

	t.Run("excludes classes containing a pattern anywhere", func(t *testing.T) {
		t.Parallel()
		banner := navLink("#sale", "Spring Sale", "https://x.com/sale", 0, 20)
		banner.Class = "mainBanner"
		slider := navLink("#slide2", "Slide Two", "https://x.com/slide2", 100, 20)
		slider.Class = "heroSlider is-active"
		tabs := navLink("#overview", "Overview", "https://x.com/overview", 200, 20)
		tabs.Class = "tabMenu"
		kept := navLink("#products", "Products", "https://x.com/products", 300, 20)
		kept.Class = "gnbMenu"

		site := mock.NewSite().Add(rootURL, &mock.Page{
			Elements: []siteclone.Element{banner, slider, tabs, kept},
		})

		groups, err := detect(t, site, fastPolicy())

		require.NoError(t, err)
		assert.Equal(t, []siteclone.MenuGroup{{Trigger: "Products", URL: "https://x.com/products"}}, groups)
	})

	t.Run("prefers triggers in the menu band", func(t *testing.T) {
		t.Parallel()
		site := mock.NewSite().Add(rootURL, &mock.Page{
			Elements: []siteclone.Element{
				navLink("#mid", "Mid Page", "https://x.com/mid", 0, 900),
				navLink("#top", "Top", "https://x.com/top", 0, 30),
			},
		})

		groups, err := detect(t, site, fastPolicy())

		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, "Top", groups[0].Trigger)
	})

	t.Run("filters revealed items by distance and text", func(t *testing.T) {
		t.Parallel()
		site := mock.NewSite().Add(rootURL, &mock.Page{
			Elements: []siteclone.Element{
				navLink("#menu", "Menu", "", 100, 20),
				hidden(navLink("#a", "Alpha", "https://x.com/a", 100, 60)),
				hidden(navLink("#b", "Beta", "https://x.com/b", 150, 60)),
				hidden(navLink("#far", "Faraway", "https://x.com/far", 1000, 60)),
				hidden(navLink("#num", "2024", "https://x.com/2024", 100, 80)),
				hidden(navLink("#words", "one two three four five", "https://x.com/w", 100, 90)),
				hidden(navLink("#search", "Search", "https://x.com/search", 100, 100)),
				hidden(navLink("#above", "Above", "https://x.com/above", 100, 0)),
			},
			Reveals: map[string][]string{
				"#menu": {"#a", "#b", "#far", "#num", "#words", "#search", "#above"},
			},
		})

		groups, err := detect(t, site, fastPolicy())

		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, []siteclone.MenuItem{
			{Name: "Alpha", URL: "https://x.com/a"},
			{Name: "Beta", URL: "https://x.com/b"},
		}, groups[0].Items)
	})

	t.Run("click fallback records navigating triggers as direct links", func(t *testing.T) {
		t.Parallel()
		site := mock.NewSite().
			Add(rootURL, &mock.Page{
				Elements: []siteclone.Element{
					navLink("#shop", "Shop", "", 100, 20),
				},
				Navigates: map[string]string{"#shop": "https://x.com/shop"},
			}).
			Add("https://x.com/shop", &mock.Page{HTML: "shop"})

		groups, err := detect(t, site, fastPolicy())

		require.NoError(t, err)
		assert.Equal(t, []siteclone.MenuGroup{{Trigger: "Shop", URL: "https://x.com/shop"}}, groups)
		assert.Equal(t, 2, site.Visits(rootURL), "returns to the root after the click")
	})

	t.Run("click fallback validates click revealed items", func(t *testing.T) {
		t.Parallel()
		site := mock.NewSite().Add(rootURL, &mock.Page{
			Elements: []siteclone.Element{
				navLink("#more", "Resources", "", 100, 20),
				hidden(navLink("#docs", "Docs", "https://x.com/docs", 100, 60)),
				hidden(navLink("#blog", "Blog", "https://x.com/blog", 100, 90)),
			},
			ClickReveals: map[string][]string{"#more": {"#docs", "#blog"}},
		})

		groups, err := detect(t, site, fastPolicy())

		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, "Resources", groups[0].Trigger)
		assert.Len(t, groups[0].Items, 2)
	})

	t.Run("deduplicates repeated trigger text", func(t *testing.T) {
		t.Parallel()
		site := mock.NewSite().Add(rootURL, &mock.Page{
			Elements: []siteclone.Element{
				navLink("#desktop", "About", "https://x.com/about", 100, 20),
				navLink("#mobile", "About", "https://x.com/about", 100, 60),
			},
		})

		groups, err := detect(t, site, fastPolicy())

		require.NoError(t, err)
		assert.Len(t, groups, 1)
	})

	t.Run("caps the number of candidates", func(t *testing.T) {
		t.Parallel()
		policy := fastPolicy()
		policy.MaxCandidates = 2
		site := mock.NewSite().Add(rootURL, &mock.Page{
			Elements: []siteclone.Element{
				navLink("#a", "Alpha", "https://x.com/a", 0, 20),
				navLink("#b", "Beta", "https://x.com/b", 100, 20),
				navLink("#c", "Gamma", "https://x.com/c", 200, 20),
			},
		})

		groups, err := detect(t, site, policy)

		require.NoError(t, err)
		assert.Len(t, groups, 2)
	})

	t.Run("propagates renderer failures", func(t *testing.T) {
		t.Parallel()
		r := &mock.Renderer{
			ElementsFn: func(ctx context.Context, selector string) ([]siteclone.Element, error) {
				return nil, errors.New("target closed")
			},
		}

		_, err := crawl.NewMenuDetector(fastPolicy(), nil).Detect(context.Background(), r, rootURL)

		assert.Error(t, err)
	})

	t.Run("stops when the context is canceled", func(t *testing.T) {
		t.Parallel()
		r := companySite().NewRenderer()
		require.NoError(t, r.Navigate(context.Background(), rootURL, siteclone.WaitLoad, 0))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := crawl.NewMenuDetector(fastPolicy(), nil).Detect(ctx, r, rootURL)

		assert.ErrorIs(t, err, context.Canceled)
	})
}
