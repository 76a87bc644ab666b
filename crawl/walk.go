package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/fwojciec/siteclone"
)

// drainSlack is added to the single-attempt time bound when waiting for
// in-flight captures after the crawl stops.
const drainSlack = 5 * time.Second

// walk is the state of one session's crawl. Only the coordinator
// goroutine running walk.run touches it; workers communicate through
// channels.
type walk struct {
	engine   *Engine
	policy   *siteclone.CrawlPolicy
	scope    *Scope
	tracker  *Tracker
	store    siteclone.PageStore
	capturer *Capturer
	frontier siteclone.Frontier
	hashes   *HashSet
	names    *NameRegistry
	governor *MemoryGovernor
	logger   *slog.Logger

	pages   []siteclone.CapturedPage
	pending int
}

// taskResult is what a worker reports for one task.
type taskResult struct {
	task     siteclone.CrawlTask
	capture  *Capture
	attempts int
	err      error
}

// seed fills the frontier from the root snapshot: menu tasks first so a
// URL linked both from a menu and the page body keeps MENU priority, then
// the root page itself, then its body links and any sitemap URLs.
func (w *walk) seed(ctx context.Context, snap *Snapshot, menus []siteclone.MenuGroup) {
	root := w.scope.RootURL()
	w.frontier.MarkSeen(root)
	if final, ok := Canonicalize("", snap.URL); ok {
		w.frontier.MarkSeen(final)
	}

	for _, task := range w.scope.MenuTasks(ctx, menus) {
		w.frontier.Enqueue(task)
	}

	_ = w.tracker.Transition(siteclone.PhaseCapture, "capturing "+root)
	rootTask := siteclone.CrawlTask{URL: root, Priority: siteclone.PriorityMenu, Depth: 0}
	if w.policy.CaptureRoot {
		capture, err := w.capturer.Process(snap)
		w.record(ctx, taskResult{task: rootTask, capture: capture, attempts: 1, err: err})
	}
	w.enqueueLinks(ctx, snap.Links, 0)

	if w.engine.Sitemaps != nil {
		urls, err := w.engine.Sitemaps.DiscoverURLs(ctx, root, nil)
		if err != nil {
			w.logger.Info("sitemap discovery failed", "err", err)
		}
		added := 0
		for _, u := range urls {
			task, ok := w.scope.Classify(ctx, siteclone.DiscoveredLink{URL: u}, 0)
			if !ok {
				continue
			}
			task.Priority = siteclone.PriorityDeep
			if w.frontier.Enqueue(task) {
				added++
			}
		}
		w.logger.Debug("sitemap seeded", "urls", len(urls), "added", added)
	}
	w.updateTotal()
}

// run drains the frontier with a bounded worker pool. Dispatch stops when
// the frontier is empty, when accepted plus in-flight pages reach the
// budget, or when ctx is canceled. In-flight captures are always allowed
// to finish and are recorded.
func (w *walk) run(ctx context.Context) {
	concurrency := w.policy.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	workCh := make(chan siteclone.CrawlTask, concurrency)
	resultCh := make(chan taskResult)
	stop := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.worker(ctx, workCh, resultCh, stop)
		}()
	}

	// Close result channel when all workers are done
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var next *siteclone.CrawlTask

coordinatorLoop:
	for {
		if next == nil && w.canDispatch() {
			if task, ok := w.frontier.Dequeue(); ok {
				next = &task
			}
		}

		// Check termination conditions
		if next == nil && w.pending == 0 {
			break coordinatorLoop
		}
		if ctx.Err() != nil {
			break coordinatorLoop
		}

		if next != nil {
			select {
			case <-ctx.Done():
				break coordinatorLoop
			case workCh <- *next:
				w.dispatched(*next)
				next = nil
			case res := <-resultCh:
				w.pending--
				w.record(ctx, res)
			}
		} else {
			// No more work to dispatch, just receive results
			select {
			case <-ctx.Done():
				break coordinatorLoop
			case res, ok := <-resultCh:
				if !ok {
					break coordinatorLoop
				}
				w.pending--
				w.record(ctx, res)
			}
		}
	}

	// Signal workers to stop and collect in-flight captures
	close(workCh)
	drain := time.NewTimer(w.policy.CrawlPageLoadTimeout + w.policy.SettleTimeout + drainSlack)
	defer drain.Stop()
drainLoop:
	for w.pending > 0 {
		select {
		case res, ok := <-resultCh:
			if !ok {
				break drainLoop
			}
			w.pending--
			w.record(ctx, res)
		case <-drain.C:
			w.logger.Warn("abandoning in-flight captures", "pending", w.pending)
			break drainLoop
		}
	}
	close(stop)
}

// worker captures tasks with retry on a renderer it holds for its lifetime.
// Captures run detached from ctx so cancellation never interrupts a page
// mid-load; ctx only stops retries and queued tasks.
func (w *walk) worker(ctx context.Context, workCh <-chan siteclone.CrawlTask, resultCh chan<- taskResult, stop <-chan struct{}) {
	var r siteclone.Renderer
	defer func() {
		if r != nil {
			w.engine.Pool.Release(r)
		}
	}()

	for task := range workCh {
		res := taskResult{task: task}
		switch {
		case ctx.Err() != nil:
			res.err = ctx.Err()
		case r == nil:
			acquired, err := w.engine.Pool.Acquire(context.WithoutCancel(ctx))
			if err != nil {
				res.err = fmt.Errorf("acquire renderer: %w", err)
				break
			}
			r = acquired
			fallthrough
		default:
			attempt := func(actx context.Context) (*Capture, error) {
				return w.capturer.Capture(context.WithoutCancel(actx), r, task.URL, w.policy.CrawlPageLoadTimeout)
			}
			res.capture, res.attempts, res.err = WithRetry(ctx, task.URL, attempt, w.engine.retryLogger(), w.policy.RetryDelays())
		}

		select {
		case resultCh <- res:
		case <-stop:
			return
		}
	}
}

func (w *walk) canDispatch() bool {
	return w.frontier.Accepted()+w.pending < w.policy.MaxPages
}

// dispatched accounts for a task handed to a worker and moves the session
// between the capture (menu pages) and crawl (discovered pages) phases.
func (w *walk) dispatched(task siteclone.CrawlTask) {
	w.pending++
	phase, message := siteclone.PhaseCrawl, "crawling discovered pages"
	if task.Priority == siteclone.PriorityMenu {
		phase, message = siteclone.PhaseCapture, "capturing menu pages"
	}
	if w.tracker.Phase() != phase {
		_ = w.tracker.Transition(phase, message)
	}
	w.updateTotal()
}

// record applies one task outcome to the session. It is the only place
// pages are accepted.
func (w *walk) record(ctx context.Context, res taskResult) {
	task := res.task
	if res.err != nil {
		if errors.Is(res.err, context.Canceled) {
			w.logger.Debug("capture cancelled", "url", task.URL)
			return
		}
		w.logger.Warn("capture failed", "url", task.URL, "attempts", res.attempts, "code", siteclone.ErrorCode(res.err), "err", res.err)
		w.tracker.Failed(siteclone.CrawlError{
			URL:     task.URL,
			Code:    siteclone.ErrorCode(res.err),
			Message: errorText(res.err),
			Time:    time.Now(),
		})
		w.updateTotal()
		return
	}

	c := res.capture
	defer w.enqueueLinks(ctx, c.Links, task.Depth)

	if dup, similarity, ok := w.hashes.Match(c.Fingerprint); ok {
		w.logger.Info("duplicate skipped", "url", task.URL, "duplicate_of", dup, "similarity", similarity)
		w.tracker.Skipped(siteclone.Skip{URL: task.URL, DuplicateOf: dup, Similarity: similarity})
		w.updateTotal()
		return
	}
	if w.frontier.Exhausted() {
		w.logger.Info("page budget exhausted", "url", task.URL)
		return
	}

	name := w.names.Claim(w.pageName(task))
	page := siteclone.CapturedPage{
		Name:       name,
		File:       name + ".html",
		Hash:       c.Fingerprint.Hash(),
		URL:        task.URL,
		Title:      c.Title,
		Priority:   task.Priority,
		Depth:      task.Depth,
		CapturedAt: time.Now(),
	}
	content := &siteclone.PageContent{Page: page, HTML: c.HTML, Screenshot: c.Screenshot}
	if err := w.store.Save(context.WithoutCancel(ctx), content); err != nil {
		w.logger.Error("save page", "url", task.URL, "err", err)
		w.tracker.Failed(siteclone.CrawlError{
			URL:     task.URL,
			Code:    siteclone.EINTERNAL,
			Message: "save: " + err.Error(),
			Time:    time.Now(),
		})
		return
	}

	w.hashes.Add(c.Fingerprint, task.URL)
	w.frontier.Accept()
	w.pages = append(w.pages, page)
	w.tracker.Captured(page, "captured "+name)
	w.updateTotal()
	w.governor.PageAccepted(ctx)
}

func (w *walk) enqueueLinks(ctx context.Context, links []siteclone.DiscoveredLink, parentDepth int) {
	for _, link := range links {
		if task, ok := w.scope.Classify(ctx, link, parentDepth); ok {
			w.frontier.Enqueue(task)
		}
	}
}

// pageName is "index" for the root, "<trigger>_<item>" for menu pages and
// "Page_<segment>_<n>" for everything else.
func (w *walk) pageName(task siteclone.CrawlTask) string {
	switch {
	case task.Depth == 0:
		return "index"
	case task.SourceMenu != "" && task.Label != "":
		return task.SourceMenu + "_" + task.Label
	case task.SourceMenu != "":
		return task.SourceMenu
	}
	return "Page_" + PageNameFromURL(task.URL) + "_" + strconv.Itoa(len(w.pages)+1)
}

// updateTotal estimates the final page count from what is captured,
// in flight and queued, capped by the budget.
func (w *walk) updateTotal() {
	total := w.frontier.Accepted() + w.pending + w.frontier.Len()
	if total > w.policy.MaxPages {
		total = w.policy.MaxPages
	}
	w.tracker.SetTotal(total)
}

// errorText is the user-facing message of err.
func errorText(err error) string {
	if siteclone.ErrorCode(err) == siteclone.EINTERNAL {
		return err.Error()
	}
	return siteclone.ErrorMessage(err)
}
