package crawl

import (
	"container/heap"
	"strings"
	"sync"

	"github.com/fwojciec/siteclone"
	"github.com/fwojciec/siteclone/bloom"
)

// Compile-time interface verification.
var _ siteclone.Frontier = (*Frontier)(nil)

// Frontier is an in-memory crawl queue ordered by priority tier, FIFO within
// a tier, with exact URL deduplication and page/depth budgets.
//
// A Bloom filter sits in front of the exact seen set: misses skip the map
// lookup, hits are confirmed against the map so no URL is ever dropped by a
// false positive.
//
// Frontier is safe for concurrent use, although a session only touches it
// from its coordinator goroutine.
type Frontier struct {
	mu       sync.Mutex
	filter   *bloom.Filter
	seen     map[string]struct{}
	queue    *taskHeap
	seq      uint64
	accepted int
	maxPages int
	maxDepth int
}

// NewFrontier creates a Frontier that accepts at most maxPages captures and
// tasks no deeper than maxDepth. expected sizes the Bloom filter.
func NewFrontier(maxPages, maxDepth int, expected uint) *Frontier {
	h := &taskHeap{}
	heap.Init(h)
	return &Frontier{
		filter:   bloom.NewFilter(expected, frontierFalsePositiveRate),
		seen:     make(map[string]struct{}),
		queue:    h,
		maxPages: maxPages,
		maxDepth: maxDepth,
	}
}

// frontierFalsePositiveRate is the Bloom filter's target false positive rate.
const frontierFalsePositiveRate = 0.01

// Enqueue adds a task to the frontier.
// Returns false if the URL was already seen, the task exceeds the depth
// bound, or the page budget is exhausted.
// URL fragments are stripped before deduplication.
func (f *Frontier) Enqueue(task siteclone.CrawlTask) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.accepted >= f.maxPages {
		return false
	}
	if task.Depth > f.maxDepth || task.Depth < 0 {
		return false
	}

	url := stripFragment(task.URL)
	if url == "" || f.seenLocked(url) {
		return false
	}
	f.filter.Add(url)
	f.seen[url] = struct{}{}

	task.URL = url
	f.seq++
	heap.Push(f.queue, queuedTask{task: task, seq: f.seq})
	return true
}

// MarkSeen records a URL as processed without queueing it, e.g. the root
// page or the target of a redirect.
func (f *Frontier) MarkSeen(rawURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	url := stripFragment(rawURL)
	f.filter.Add(url)
	f.seen[url] = struct{}{}
}

// Dequeue returns the next task by priority.
// The bool result is false if the frontier is empty.
func (f *Frontier) Dequeue() (siteclone.CrawlTask, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.queue.Len() == 0 {
		return siteclone.CrawlTask{}, false
	}
	qt, _ := heap.Pop(f.queue).(queuedTask)
	return qt.task, true
}

// Accept records one captured page against the budget.
func (f *Frontier) Accept() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepted++
}

// Accepted returns the number of captured pages recorded so far.
func (f *Frontier) Accepted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accepted
}

// Remaining returns how many more pages fit in the budget.
func (f *Frontier) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return max(f.maxPages-f.accepted, 0)
}

// Exhausted reports whether the page budget has been reached.
func (f *Frontier) Exhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accepted >= f.maxPages
}

// Len returns the number of pending tasks.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue.Len()
}

// Seen returns true if the URL has been queued or processed.
// URL fragments are stripped before checking.
func (f *Frontier) Seen(rawURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seenLocked(stripFragment(rawURL))
}

// SeenCount returns the approximate number of distinct URLs seen.
func (f *Frontier) SeenCount() uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter.EstimatedCount()
}

func (f *Frontier) seenLocked(url string) bool {
	if !f.filter.Test(url) {
		return false
	}
	_, ok := f.seen[url]
	return ok
}

func stripFragment(url string) string {
	if idx := strings.Index(url, "#"); idx != -1 {
		return url[:idx]
	}
	return url
}

// queuedTask carries the insertion sequence used for FIFO tie-breaking.
type queuedTask struct {
	task siteclone.CrawlTask
	seq  uint64
}

// taskHeap implements heap.Interface ordered by priority, then insertion.
type taskHeap []queuedTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	qt, _ := x.(queuedTask)
	*h = append(*h, qt)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}
