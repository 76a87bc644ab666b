package siteclone

import "context"

// Frontier is a bounded, priority-ordered, deduplicated crawl queue.
type Frontier interface {
	// Enqueue adds a task. Returns false if the URL was already seen, the
	// task is deeper than the depth bound, or the page budget is exhausted.
	Enqueue(task CrawlTask) bool

	// Dequeue returns the highest-priority task, FIFO within a tier.
	// Returns false if no task is pending.
	Dequeue() (CrawlTask, bool)

	// MarkSeen records a URL as processed without queueing it.
	MarkSeen(url string)

	// Accept records a captured page against the page budget.
	Accept()

	// Accepted returns the number of pages recorded by Accept.
	Accepted() int

	// Exhausted reports whether the page budget has been reached.
	Exhausted() bool

	// Len returns the number of pending tasks.
	Len() int

	// Seen reports whether the URL has been queued or processed.
	Seen(url string) bool
}

// DomainLimiter provides per-domain rate limiting.
type DomainLimiter interface {
	// Wait blocks until the rate limit allows a request to the domain.
	// Returns an error if the context is canceled.
	Wait(ctx context.Context, domain string) error
}
