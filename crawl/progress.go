package crawl

import (
	"sync"
	"time"

	"github.com/fwojciec/siteclone"
)

// DefaultSubscriberBuffer is the per-subscriber event buffer.
const DefaultSubscriberBuffer = 64

// Broadcaster fans session events out to any number of subscribers.
// Publish never blocks: a subscriber that falls behind loses its oldest
// buffered events, so the most recent state is always delivered.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan siteclone.Event
	nextID int
	last   *siteclone.Event
	closed bool
	buffer int
}

// NewBroadcaster creates a Broadcaster with the given per-subscriber buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = DefaultSubscriberBuffer
	}
	return &Broadcaster{
		subs:   make(map[int]chan siteclone.Event),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber. The latest published event, if any,
// is delivered first. The channel is closed by Close or by the returned
// cancel function.
func (b *Broadcaster) Subscribe() (<-chan siteclone.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan siteclone.Event, b.buffer)
	if b.last != nil {
		ch <- *b.last
	}
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Publish delivers e to every subscriber.
func (b *Broadcaster) Publish(e siteclone.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.last = &e
	for _, ch := range b.subs {
		select {
		case ch <- e:
			continue
		default:
		}
		// Full: drop the oldest event and retry once.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- e:
		default:
		}
	}
}

// Last returns the most recently published event.
func (b *Broadcaster) Last() (siteclone.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last == nil {
		return siteclone.Event{}, false
	}
	return *b.last, true
}

// Close closes every subscriber channel. Later subscribers receive the
// last event and a closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Tracker owns a session's Status. Every mutation is projected onto an
// Event and published. Only the session's coordinator writes to a
// Tracker; Status may be read from any goroutine.
type Tracker struct {
	mu       sync.RWMutex
	id       string
	status   siteclone.Status
	menus    []siteclone.MenuGroup
	captured []siteclone.CapturedPage
	out      *Broadcaster
	now      func() time.Time
}

// NewTracker creates a Tracker in the init phase publishing to out.
func NewTracker(sessionID string, out *Broadcaster) *Tracker {
	return &Tracker{
		id:  sessionID,
		out: out,
		now: time.Now,
		status: siteclone.Status{
			Phase:   siteclone.PhaseInit,
			Pages:   []string{},
			Skipped: []siteclone.Skip{},
			Errors:  []siteclone.CrawlError{},
		},
	}
}

// Status returns a copy of the current status.
func (t *Tracker) Status() siteclone.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status.Clone()
}

// ID returns the session ID stamped on events.
func (t *Tracker) ID() string {
	return t.id
}

// Menus returns the session's menu structure.
func (t *Tracker) Menus() []siteclone.MenuGroup {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]siteclone.MenuGroup(nil), t.menus...)
}

// SetMenus records the menu structure the crawl is seeded with.
func (t *Tracker) SetMenus(menus []siteclone.MenuGroup) {
	t.mu.Lock()
	t.menus = append([]siteclone.MenuGroup(nil), menus...)
	t.mu.Unlock()
}

// CapturedPages returns the pages captured so far.
func (t *Tracker) CapturedPages() []siteclone.CapturedPage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]siteclone.CapturedPage(nil), t.captured...)
}

// Phase returns the current phase.
func (t *Tracker) Phase() siteclone.Phase {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status.Phase
}

// Transition moves the session to phase and publishes the change.
// Returns EINVALID for transitions outside the phase sequence.
func (t *Tracker) Transition(phase siteclone.Phase, message string) error {
	t.mu.Lock()
	if !t.status.Phase.CanTransition(phase) {
		from := t.status.Phase
		t.mu.Unlock()
		return siteclone.Errorf(siteclone.EINVALID, "invalid phase transition %s -> %s", from, phase)
	}
	t.status.Phase = phase
	t.status.Message = message
	e := t.eventLocked()
	t.mu.Unlock()

	t.publish(e)
	return nil
}

// SetTotal updates the expected number of pages.
func (t *Tracker) SetTotal(total int) {
	t.mu.Lock()
	t.status.Total = total
	t.mu.Unlock()
}

// Captured records a persisted page.
func (t *Tracker) Captured(page siteclone.CapturedPage, message string) {
	t.mu.Lock()
	t.status.Current++
	if t.status.Total < t.status.Current {
		t.status.Total = t.status.Current
	}
	t.status.CurrentURL = page.URL
	t.status.Message = message
	t.status.Pages = append(t.status.Pages, page.URL)
	t.captured = append(t.captured, page)
	e := t.eventLocked()
	e.Outcome = siteclone.OutcomeCaptured
	t.mu.Unlock()

	t.publish(e)
}

// Skipped records a near-duplicate that was not persisted.
func (t *Tracker) Skipped(skip siteclone.Skip) {
	t.mu.Lock()
	t.status.CurrentURL = skip.URL
	t.status.Message = "duplicate of " + skip.DuplicateOf
	t.status.Skipped = append(t.status.Skipped, skip)
	e := t.eventLocked()
	e.Outcome = siteclone.OutcomeSkipped
	t.mu.Unlock()

	t.publish(e)
}

// Failed records a per-page error. The session phase is unchanged.
func (t *Tracker) Failed(crawlErr siteclone.CrawlError) {
	t.mu.Lock()
	t.status.CurrentURL = crawlErr.URL
	t.status.Message = crawlErr.Message
	t.status.Errors = append(t.status.Errors, crawlErr)
	e := t.eventLocked()
	e.Outcome = siteclone.OutcomeFailed
	e.Error = &crawlErr
	t.mu.Unlock()

	t.publish(e)
}

// Abort moves the session to a terminal error or cancelled phase with the
// triggering error attached.
func (t *Tracker) Abort(phase siteclone.Phase, crawlErr siteclone.CrawlError) error {
	t.mu.Lock()
	if !t.status.Phase.CanTransition(phase) || (phase != siteclone.PhaseError && phase != siteclone.PhaseCancelled) {
		from := t.status.Phase
		t.mu.Unlock()
		return siteclone.Errorf(siteclone.EINVALID, "invalid phase transition %s -> %s", from, phase)
	}
	t.status.Phase = phase
	t.status.Message = crawlErr.Message
	t.status.Errors = append(t.status.Errors, crawlErr)
	e := t.eventLocked()
	e.Error = &crawlErr
	t.mu.Unlock()

	t.publish(e)
	return nil
}

func (t *Tracker) eventLocked() siteclone.Event {
	return siteclone.Event{
		SessionID:  t.id,
		Phase:      t.status.Phase,
		Current:    t.status.Current,
		Total:      t.status.Total,
		Message:    t.status.Message,
		CurrentURL: t.status.CurrentURL,
		Time:       t.now(),
	}
}

func (t *Tracker) publish(e siteclone.Event) {
	if t.out != nil {
		t.out.Publish(e)
	}
}
