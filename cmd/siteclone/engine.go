package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/fwojciec/siteclone"
	"github.com/fwojciec/siteclone/crawl"
	"github.com/fwojciec/siteclone/fs"
	"github.com/fwojciec/siteclone/goquery"
	"github.com/fwojciec/siteclone/htmltomarkdown"
	schttp "github.com/fwojciec/siteclone/http"
	"github.com/fwojciec/siteclone/readability"
	"github.com/fwojciec/siteclone/rod"
	siteslog "github.com/fwojciec/siteclone/slog"
	"github.com/fwojciec/siteclone/trafilatura"
	"github.com/fwojciec/siteclone/yaml"
)

// EngineFactory builds a crawl engine from flags. The returned func
// releases the engine's renderers.
type EngineFactory interface {
	NewEngine(flags *EngineFlags) (*crawl.Engine, func(), error)
}

// StoreOptions configure the page store of the clone and serve commands.
type StoreOptions struct {
	Dir      string
	Markdown bool
}

// ResolvePolicy resolves the crawl policy: the policy file (or the default
// policy), then the profile, then individual overrides.
func (f *EngineFlags) ResolvePolicy() (siteclone.CrawlPolicy, error) {
	policy := siteclone.DefaultPolicy()
	if f.Policy != "" {
		var err error
		if policy, err = yaml.LoadPolicy(f.Policy); err != nil {
			return siteclone.CrawlPolicy{}, fmt.Errorf("load policy: %w", err)
		}
	}
	if f.Profile != "" {
		var err error
		if policy, err = policy.WithProfile(f.Profile); err != nil {
			return siteclone.CrawlPolicy{}, err
		}
	}
	if f.MaxPages > 0 {
		policy.MaxPages = f.MaxPages
	}
	if f.MaxDepth > 0 {
		policy.MaxDepth = f.MaxDepth
	}
	if f.Concurrency > 0 {
		policy.Concurrency = f.Concurrency
	}
	if f.RPS > 0 {
		policy.RequestsPerSecond = f.RPS
	}
	if err := policy.Validate(); err != nil {
		return siteclone.CrawlPolicy{}, err
	}
	return policy, nil
}

type engineFactory struct {
	pool   siteclone.RendererPool
	logger *slog.Logger
	stderr io.Writer
}

func (f *engineFactory) NewEngine(flags *EngineFlags) (*crawl.Engine, func(), error) {
	policy, err := flags.ResolvePolicy()
	if err != nil {
		return nil, nil, err
	}
	logger := f.logger

	pool, closePool, err := f.newPool(flags, &policy)
	if err != nil {
		return nil, nil, err
	}

	engine := &crawl.Engine{
		Pool:       siteslog.NewLoggingPool(pool, logger),
		Detector:   siteslog.NewLoggingMenuDetector(crawl.NewMenuDetector(&policy, logger), logger),
		Links:      goquery.NewLinkExtractor(),
		Extractor:  newExtractor(flags.Extractor),
		Normalizer: goquery.NewNormalizer(),
		Frameworks: siteslog.NewLoggingFrameworkDetector(goquery.NewDetector(), logger),
		Policy:     policy,
		Logger:     logger,
	}
	if policy.SanitizeHTML {
		engine.Sanitizer = goquery.NewSanitizer()
	}
	if policy.RequestsPerSecond > 0 {
		engine.RateLimiter = crawl.NewDomainLimiter(policy.RequestsPerSecond)
	}

	var robots *schttp.Robots
	if flags.Robots || flags.Sitemap {
		robots = schttp.NewRobots(nil, policy.UserAgent)
	}
	if flags.Robots {
		engine.Robots = robots
	}
	if flags.Sitemap {
		engine.Sitemaps = siteslog.NewLoggingSitemapService(schttp.NewSitemapService(nil, robots), logger)
	}
	return engine, closePool, nil
}

func (f *engineFactory) newPool(flags *EngineFlags, policy *siteclone.CrawlPolicy) (siteclone.RendererPool, func(), error) {
	if f.pool != nil {
		return f.pool, func() {}, nil
	}
	if flags.Static {
		pool := schttp.NewPool(schttp.WithUserAgent(policy.UserAgent))
		return pool, func() { _ = pool.Close() }, nil
	}
	pool, err := rod.NewPool(rod.ConfigFromPolicy(policy),
		rod.WithRecycleAfter(flags.RecycleAfter),
		rod.WithHeadless(!flags.Headful),
	)
	if err != nil {
		fmt.Fprintln(f.stderr, "Hint: Chrome or Chromium must be installed, or use --static")
		return nil, nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return pool, func() { _ = pool.Close() }, nil
}

func newExtractor(name string) siteclone.Extractor {
	switch name {
	case "trafilatura":
		return trafilatura.NewExtractor()
	case "readability":
		return readability.NewExtractor()
	default:
		return goquery.NewExtractor()
	}
}

// pageStores returns an Engine.NewPageStore func writing each session to
// its own directory under opts.Dir.
func pageStores(opts StoreOptions, logger *slog.Logger) func(sessionID, rootURL string) (siteclone.PageStore, error) {
	return func(sessionID, rootURL string) (siteclone.PageStore, error) {
		store := fs.NewFileStore(opts.Dir, fs.DirName(rootURL, sessionID))
		store.Logger = logger
		if opts.Markdown {
			store.Converter = htmltomarkdown.NewConverter()
		}
		return siteslog.NewLoggingPageStore(store, logger), nil
	}
}
