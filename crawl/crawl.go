// Package crawl discovers a site's navigation and captures it with a
// bounded, priority-ordered crawl. It coordinates menu detection, the
// frontier, the capture pipeline, retries and progress reporting.
package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fwojciec/siteclone"
)

// Engine runs clone sessions and standalone menu detection.
type Engine struct {
	Pool       siteclone.RendererPool
	Detector   siteclone.MenuDetector
	Links      siteclone.LinkExtractor
	Extractor  siteclone.Extractor
	Normalizer siteclone.ContentNormalizer

	// Optional collaborators.
	Frameworks  siteclone.FrameworkDetector
	Sanitizer   siteclone.Sanitizer
	RateLimiter siteclone.DomainLimiter
	Robots      siteclone.RobotsChecker
	Sitemaps    siteclone.SitemapService

	// NewPageStore opens the store a session writes to. A nil func keeps
	// pages in the session status only.
	NewPageStore func(sessionID, rootURL string) (siteclone.PageStore, error)

	// Policy is the base policy; request profiles are applied on top.
	Policy siteclone.CrawlPolicy

	Screenshots bool
	Logger      *slog.Logger
}

// Result is the outcome of a completed clone.
type Result struct {
	Menus []siteclone.MenuGroup
	Pages []siteclone.CapturedPage
}

// Compile-time interface verification.
var _ siteclone.MenuService = (*Engine)(nil)

// DetectMenus loads rawURL and returns its menu structure for review.
// Returns EROOTLOAD when the page cannot be loaded.
func (e *Engine) DetectMenus(ctx context.Context, rawURL string) ([]siteclone.MenuGroup, error) {
	policy := e.Policy
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	root, ok := Canonicalize("", rawURL)
	if !ok {
		return nil, siteclone.Errorf(siteclone.EINVALID, "invalid URL %q", rawURL)
	}

	r, err := e.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire renderer: %w", err)
	}
	defer e.Pool.Release(r)

	capturer := e.capturer(&policy, nil)
	if _, err := e.loadRoot(ctx, capturer, r, root, &policy); err != nil {
		return nil, err
	}
	return e.Detector.Detect(ctx, r, root)
}

// Clone runs a full session: root load and menu detection, then the
// prioritized crawl, then the manifest. Progress is reported through
// tracker, which must be in the init phase. Per-page failures are recorded
// on the tracker; the returned error is only set when the session aborts.
func (e *Engine) Clone(ctx context.Context, tracker *Tracker, req siteclone.CloneRequest) (*Result, error) {
	policy, err := e.Policy.WithProfile(req.Profile)
	if err != nil {
		return nil, e.abort(tracker, siteclone.PhaseError, err)
	}
	if err := policy.Validate(); err != nil {
		return nil, e.abort(tracker, siteclone.PhaseError, err)
	}
	scope, err := NewScope(req.URL, &policy, e.Robots)
	if err != nil {
		return nil, e.abort(tracker, siteclone.PhaseError, err)
	}
	root := scope.RootURL()
	logger := e.logger().With("session", tracker.ID(), "root", root)

	if err := tracker.Transition(siteclone.PhaseMenu, "loading "+root); err != nil {
		return nil, err
	}

	store, err := e.openStore(tracker.ID(), root)
	if err != nil {
		return nil, e.abort(tracker, siteclone.PhaseError, err)
	}

	r, err := e.Pool.Acquire(ctx)
	if err != nil {
		_ = store.Abort()
		return nil, e.abortCtx(ctx, tracker, fmt.Errorf("acquire renderer: %w", err))
	}

	capturer := e.capturer(&policy, logger)
	snap, err := e.loadRoot(ctx, capturer, r, root, &policy)
	if err != nil {
		e.Pool.Release(r)
		_ = store.Abort()
		return nil, e.abortCtx(ctx, tracker, err)
	}

	menus := req.Menus
	if menus == nil {
		menus, err = e.Detector.Detect(ctx, r, root)
		if err != nil {
			e.Pool.Release(r)
			_ = store.Abort()
			return nil, e.abortCtx(ctx, tracker, fmt.Errorf("detect menus: %w", err))
		}
	}
	e.Pool.Release(r)
	if menus == nil {
		menus = []siteclone.MenuGroup{}
	}
	tracker.SetMenus(menus)
	logger.Info("menus ready", "groups", len(menus), "preapproved", req.Menus != nil)

	w := &walk{
		engine:   e,
		policy:   &policy,
		scope:    scope,
		tracker:  tracker,
		store:    store,
		capturer: e.capturer(&policy, logger),
		frontier: NewFrontier(policy.MaxPages, policy.MaxDepth, uint(policy.MaxPages)*50),
		hashes:   NewHashSet(policy.SimilarityThreshold),
		names:    NewNameRegistry(),
		governor: NewMemoryGovernor(policy.GCInterval, policy.MaxMemoryMB, memoryReleaser(e.Pool), logger),
		logger:   logger,
	}
	for _, m := range menus {
		if len(m.Items) > 0 {
			w.capturer.HoverTriggers = append(w.capturer.HoverTriggers, m.Trigger)
		}
	}
	w.seed(ctx, snap, menus)

	w.run(ctx)

	manifest := &siteclone.Manifest{
		RootURL: root,
		Menus:   menus,
		Pages:   w.pages,
		Errors:  tracker.Status().Errors,
	}

	if ctx.Err() != nil {
		// Partial results stay valid: commit what was captured.
		if err := store.Commit(context.WithoutCancel(ctx), manifest); err != nil {
			logger.Error("commit partial session", "err", err)
		}
		_ = tracker.Abort(siteclone.PhaseCancelled, siteclone.CrawlError{
			Code:    siteclone.ECANCELED,
			Message: "session cancelled",
			Time:    time.Now(),
		})
		return &Result{Menus: menus, Pages: w.pages}, ctx.Err()
	}

	if err := tracker.Transition(siteclone.PhasePostprocess, "writing manifest"); err != nil {
		return nil, err
	}
	if err := store.Commit(ctx, manifest); err != nil {
		_ = store.Abort()
		return nil, e.abort(tracker, siteclone.PhaseError, fmt.Errorf("commit: %w", err))
	}
	if err := tracker.Transition(siteclone.PhaseDone, fmt.Sprintf("captured %d pages", len(w.pages))); err != nil {
		return nil, err
	}
	logger.Info("session done", "pages", len(w.pages), "skipped", len(tracker.Status().Skipped), "errors", len(manifest.Errors))
	return &Result{Menus: menus, Pages: w.pages}, nil
}

// loadRoot loads the root page with retries. Failure is EROOTLOAD.
func (e *Engine) loadRoot(ctx context.Context, c *Capturer, r siteclone.Renderer, root string, policy *siteclone.CrawlPolicy) (*Snapshot, error) {
	load := func(ctx context.Context) (*Snapshot, error) {
		return c.Load(ctx, r, root, policy.PageLoadTimeout)
	}
	snap, _, err := WithRetry(ctx, root, load, e.retryLogger(), policy.RetryDelays())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, siteclone.Errorf(siteclone.EROOTLOAD, "root page %s could not be loaded: %s", root, siteclone.ErrorMessage(err))
	}
	return snap, nil
}

func (e *Engine) capturer(policy *siteclone.CrawlPolicy, logger *slog.Logger) *Capturer {
	if logger == nil {
		logger = e.logger()
	}
	return &Capturer{
		Policy:      policy,
		Links:       e.Links,
		Extractor:   e.Extractor,
		Normalizer:  e.Normalizer,
		Frameworks:  e.Frameworks,
		Sanitizer:   e.Sanitizer,
		RateLimiter: e.RateLimiter,
		Logger:      logger,
		Screenshots: e.Screenshots,
	}
}

func (e *Engine) openStore(sessionID, root string) (siteclone.PageStore, error) {
	if e.NewPageStore == nil {
		return nopStore{}, nil
	}
	store, err := e.NewPageStore(sessionID, root)
	if err != nil {
		return nil, fmt.Errorf("open page store: %w", err)
	}
	return store, nil
}

// abortCtx aborts as cancelled when ctx was canceled, as error otherwise.
func (e *Engine) abortCtx(ctx context.Context, tracker *Tracker, err error) error {
	if ctx.Err() != nil {
		return e.abort(tracker, siteclone.PhaseCancelled, siteclone.Errorf(siteclone.ECANCELED, "session cancelled"))
	}
	return e.abort(tracker, siteclone.PhaseError, err)
}

func (e *Engine) abort(tracker *Tracker, phase siteclone.Phase, err error) error {
	crawlErr := siteclone.CrawlError{
		Code:    siteclone.ErrorCode(err),
		Message: siteclone.ErrorMessage(err),
		Time:    time.Now(),
	}
	if crawlErr.Code == siteclone.EINTERNAL {
		crawlErr.Message = err.Error()
	}
	if abortErr := tracker.Abort(phase, crawlErr); abortErr != nil {
		e.logger().Error("abort session", "phase", phase, "err", abortErr)
	}
	e.logger().Error("session aborted", "session", tracker.ID(), "phase", phase, "err", err)
	return err
}

func (e *Engine) retryLogger() LogFunc {
	logger := e.logger()
	return func(format string, args ...any) {
		logger.Info(fmt.Sprintf(format, args...))
	}
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

func memoryReleaser(pool siteclone.RendererPool) siteclone.MemoryReleaser {
	if m, ok := pool.(siteclone.MemoryReleaser); ok {
		return m
	}
	return nil
}

// nopStore discards pages; the session status still records them.
type nopStore struct{}

func (nopStore) Save(context.Context, *siteclone.PageContent) error { return nil }
func (nopStore) Commit(context.Context, *siteclone.Manifest) error  { return nil }
func (nopStore) Abort() error                                        { return nil }
