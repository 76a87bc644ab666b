package siteclone

import (
	"sort"
	"time"
)

// WaitStrategy selects the navigation lifecycle event a renderer waits for.
type WaitStrategy string

// Supported wait strategies.
const (
	WaitDOMContentLoaded WaitStrategy = "domcontentloaded"
	WaitLoad             WaitStrategy = "load"
	WaitNetworkIdle      WaitStrategy = "networkidle"
)

// Valid reports whether s is a known wait strategy.
func (s WaitStrategy) Valid() bool {
	switch s {
	case WaitDOMContentLoaded, WaitLoad, WaitNetworkIdle:
		return true
	}
	return false
}

// Default crawl bounds.
const (
	DefaultMaxPages = 50
	DefaultMaxDepth = 3
)

// DefaultUserAgent is sent by renderers that support overriding it.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// CrawlPolicy holds every tunable heuristic of a clone operation.
// A policy is built once and shared read-only by all components of a session.
type CrawlPolicy struct {
	// Crawl bounds.
	MaxPages int `yaml:"max_pages"`
	MaxDepth int `yaml:"max_depth"`
	// Links found on pages at this depth or deeper are scheduled as DEEP.
	DeepDepth int `yaml:"deep_depth"`

	// Menu detection.
	HeaderHeightLimit     float64  `yaml:"header_height_limit"`
	MenuAreaHeight        float64  `yaml:"menu_area_height"`
	MinTextLength         int      `yaml:"min_text_length"`
	MaxTextLength         int      `yaml:"max_text_length"`
	MaxDistanceX          float64  `yaml:"max_distance_x"`
	MaxDistanceY          float64  `yaml:"max_distance_y"`
	MaxItemWidth          float64  `yaml:"max_item_width"`
	MaxItemHeight         float64  `yaml:"max_item_height"`
	MaxMenuItemSize       float64  `yaml:"max_menu_item_size"`
	MinSubmenuCount       int      `yaml:"min_submenu_count"`
	MaxCandidates         int      `yaml:"max_candidates"`
	MaxItemWords          int      `yaml:"max_item_words"`
	StrictHoverValidation bool     `yaml:"strict_hover_validation"`
	ClickFallback         bool     `yaml:"click_fallback"`
	ExcludeClasses        []string `yaml:"exclude_classes"`
	ExcludeRoles          []string `yaml:"exclude_roles"`
	ExcludeText           []string `yaml:"exclude_text"`

	// Navigation and settling.
	WaitStrategy         WaitStrategy  `yaml:"wait_strategy"`
	PageLoadTimeout      time.Duration `yaml:"page_load_timeout"`
	CrawlPageLoadTimeout time.Duration `yaml:"crawl_page_load_timeout"`
	SettleTimeout        time.Duration `yaml:"settle_timeout"`
	HoverWait            time.Duration `yaml:"hover_wait"`
	MenuOpenWait         time.Duration `yaml:"menu_open_wait"`
	ActionDelay          time.Duration `yaml:"action_delay"`
	ScrollDistance       int           `yaml:"scroll_distance"`
	ScrollInterval       time.Duration `yaml:"scroll_interval"`
	MaxScrollSteps       int           `yaml:"max_scroll_steps"`
	WaitForLoading       bool          `yaml:"wait_for_loading"`
	LoadingTimeout       time.Duration `yaml:"loading_timeout"`
	LoadingCheckInterval time.Duration `yaml:"loading_check_interval"`
	LoadingSelectors     []string      `yaml:"loading_selectors"`
	StabilizeInterval    time.Duration `yaml:"stabilize_interval"`
	StableDuration       time.Duration `yaml:"stable_duration"`
	StabilizeMaxWait     time.Duration `yaml:"stabilize_max_wait"`
	HoverOnCapture       bool          `yaml:"hover_on_capture"`
	BlockFonts           bool          `yaml:"block_fonts"`
	UserAgent            string        `yaml:"user_agent"`
	ViewportWidth        int           `yaml:"viewport_width"`
	ViewportHeight       int           `yaml:"viewport_height"`

	// Reliability.
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`

	// Dedup and quality gate.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MinContentLength    int     `yaml:"min_content_length"`

	// Resource governance.
	GCInterval  int `yaml:"gc_interval"`
	MaxMemoryMB int `yaml:"max_memory_mb"`

	// Scheduling.
	Concurrency       int      `yaml:"concurrency"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	ExcludeExtensions []string `yaml:"exclude_extensions"`
	ExcludePatterns   []string `yaml:"exclude_patterns"`
	PriorityPaths     []string `yaml:"priority_paths"`

	// Output.
	CaptureRoot  bool          `yaml:"capture_root"`
	SanitizeHTML bool          `yaml:"sanitize_html"`
	Retention    time.Duration `yaml:"retention"`
}

// DefaultPolicy returns the policy used when no profile or file is given.
func DefaultPolicy() CrawlPolicy {
	return CrawlPolicy{
		MaxPages:  DefaultMaxPages,
		MaxDepth:  DefaultMaxDepth,
		DeepDepth: 2,

		HeaderHeightLimit:     3000,
		MenuAreaHeight:        400,
		MinTextLength:         1,
		MaxTextLength:         40,
		MaxDistanceX:          800,
		MaxDistanceY:          3500,
		MaxItemWidth:          1600,
		MaxItemHeight:         800,
		MaxMenuItemSize:       200,
		MinSubmenuCount:       2,
		MaxCandidates:         40,
		MaxItemWords:          4,
		StrictHoverValidation: true,
		ClickFallback:         true,
		ExcludeClasses:        []string{"banner", "slide", "swiper", "carousel", "slider", "rolling", "tab", "footer", "bottom"},
		ExcludeRoles:          []string{"tab", "tabpanel", "tablist"},
		ExcludeText: []string{
			"login", "log in", "logout", "log out", "sign in", "sign up", "signup", "register",
			"join", "language", "lang", "search", "close", "more", "cart", "mypage", "my page",
			"로그인", "로그아웃", "회원가입", "검색", "닫기", "더보기", "장바구니", "마이페이지",
			"english", "한국어", "kor", "eng",
		},

		WaitStrategy:         WaitDOMContentLoaded,
		PageLoadTimeout:      30 * time.Second,
		CrawlPageLoadTimeout: 15 * time.Second,
		SettleTimeout:        10 * time.Second,
		HoverWait:            1500 * time.Millisecond,
		MenuOpenWait:         600 * time.Millisecond,
		ActionDelay:          300 * time.Millisecond,
		ScrollDistance:       150,
		ScrollInterval:       30 * time.Millisecond,
		MaxScrollSteps:       200,
		WaitForLoading:       true,
		LoadingTimeout:       5 * time.Second,
		LoadingCheckInterval: 300 * time.Millisecond,
		LoadingSelectors: []string{
			".loading", ".spinner", ".loader", `[class*="loading"]`,
			".overlay", ".skeleton", `[class*="skeleton"]`,
		},
		StabilizeInterval: 300 * time.Millisecond,
		StableDuration:    800 * time.Millisecond,
		StabilizeMaxWait:  5 * time.Second,
		BlockFonts:        true,
		UserAgent:         DefaultUserAgent,
		ViewportWidth:     1920,
		ViewportHeight:    1080,

		MaxRetries: 3,
		RetryDelay: time.Second,

		SimilarityThreshold: 0.85,
		MinContentLength:    500,

		GCInterval:  10,
		MaxMemoryMB: 512,

		Concurrency:       3,
		RequestsPerSecond: 3,
		ExcludeExtensions: []string{
			"pdf", "zip", "exe", "dmg", "jpg", "jpeg", "png", "gif",
			"mp4", "avi", "mov", "mp3", "wav", "xml", "json",
		},

		CaptureRoot:  true,
		SanitizeHTML: true,
		Retention:    5 * time.Minute,
	}
}

// Validate returns EINVALID if the policy cannot drive a crawl.
func (p CrawlPolicy) Validate() error {
	switch {
	case p.MaxPages < 1:
		return Errorf(EINVALID, "max pages must be at least 1")
	case p.MaxDepth < 0:
		return Errorf(EINVALID, "max depth must not be negative")
	case p.MinTextLength < 0 || p.MaxTextLength < p.MinTextLength:
		return Errorf(EINVALID, "text length bounds [%d, %d] are invalid", p.MinTextLength, p.MaxTextLength)
	case p.SimilarityThreshold <= 0 || p.SimilarityThreshold > 1:
		return Errorf(EINVALID, "similarity threshold must be in (0, 1]")
	case p.MaxRetries < 0:
		return Errorf(EINVALID, "max retries must not be negative")
	case p.Concurrency < 1:
		return Errorf(EINVALID, "concurrency must be at least 1")
	case !p.WaitStrategy.Valid():
		return Errorf(EINVALID, "unknown wait strategy %q", p.WaitStrategy)
	case p.ScrollDistance < 0:
		return Errorf(EINVALID, "scroll distance must not be negative")
	}
	return nil
}

// RetryDelays returns the backoff before each retry: RetryDelay multiplied
// by the attempt number, MaxRetries entries in total.
func (p CrawlPolicy) RetryDelays() []time.Duration {
	delays := make([]time.Duration, p.MaxRetries)
	for i := range delays {
		delays[i] = p.RetryDelay * time.Duration(i+1)
	}
	return delays
}

// Profile tweaks the default policy for a family of sites.
type Profile struct {
	Name            string
	Description     string
	MaxDepth        int
	MaxPages        int
	WaitStrategy    WaitStrategy
	ExcludePatterns []string
	PriorityPaths   []string
}

// Profiles lists the built-in crawl profiles by name.
var Profiles = map[string]Profile{
	"default": {
		Name:         "default",
		Description:  "General purpose websites",
		MaxDepth:     3,
		MaxPages:     50,
		WaitStrategy: WaitDOMContentLoaded,
	},
	"corporate": {
		Name:            "corporate",
		Description:     "Company, service and product introduction pages",
		MaxDepth:        3,
		MaxPages:        40,
		WaitStrategy:    WaitDOMContentLoaded,
		ExcludePatterns: []string{"/board/*", "/bbs/*", "/news/*", "/notice/*", "/recruit/*", "/career/*", "/contact/*"},
		PriorityPaths:   []string{"/about", "/service", "/product", "/company"},
	},
	"ecommerce": {
		Name:            "ecommerce",
		Description:     "Shops with categories and product listings",
		MaxDepth:        4,
		MaxPages:        100,
		WaitStrategy:    WaitNetworkIdle,
		ExcludePatterns: []string{"/cart/*", "/checkout/*", "/order/*", "/member/*", "/login", "/register", "/mypage/*", "/search*"},
		PriorityPaths:   []string{"/category", "/product", "/shop"},
	},
	"blog": {
		Name:            "blog",
		Description:     "Blogs and news sites with post listings",
		MaxDepth:        2,
		MaxPages:        30,
		WaitStrategy:    WaitDOMContentLoaded,
		ExcludePatterns: []string{"/tag/*", "/category/*", "/author/*", "/archive/*", "/page/*", "/search*", "/comment*"},
	},
	"portfolio": {
		Name:            "portfolio",
		Description:     "Portfolios and personal sites",
		MaxDepth:        2,
		MaxPages:        20,
		WaitStrategy:    WaitNetworkIdle,
		ExcludePatterns: []string{"/contact", "/hire*"},
		PriorityPaths:   []string{"/work", "/project", "/portfolio", "/gallery"},
	},
	"spa": {
		Name:         "spa",
		Description:  "Single page applications (React, Vue, Angular)",
		MaxDepth:     4,
		MaxPages:     60,
		WaitStrategy: WaitNetworkIdle,
	},
	"landing": {
		Name:         "landing",
		Description:  "Single scrolling landing pages",
		MaxDepth:     1,
		MaxPages:     5,
		WaitStrategy: WaitNetworkIdle,
	},
}

// ProfileNames returns the built-in profile names in sorted order.
func ProfileNames() []string {
	names := make([]string, 0, len(Profiles))
	for name := range Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PolicyForProfile returns the default policy with the named profile applied.
// Returns ENOTFOUND for unknown profiles.
func PolicyForProfile(name string) (CrawlPolicy, error) {
	return DefaultPolicy().WithProfile(name)
}

// WithProfile returns a copy of p with the named profile applied. An empty
// name returns p unchanged. Returns ENOTFOUND for unknown profiles.
func (p CrawlPolicy) WithProfile(name string) (CrawlPolicy, error) {
	if name == "" {
		return p, nil
	}
	profile, ok := Profiles[name]
	if !ok {
		return CrawlPolicy{}, Errorf(ENOTFOUND, "unknown crawl profile %q", name)
	}
	p.MaxDepth = profile.MaxDepth
	p.MaxPages = profile.MaxPages
	p.WaitStrategy = profile.WaitStrategy
	p.ExcludePatterns = append([]string(nil), profile.ExcludePatterns...)
	p.PriorityPaths = append([]string(nil), profile.PriorityPaths...)
	return p, nil
}
