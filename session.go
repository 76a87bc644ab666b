package siteclone

import (
	"context"
	"time"
)

// Phase is a stage of a clone session.
type Phase string

// Session phases. The normal sequence is
// init → menu → (capture|crawl)* → postprocess → done; error and cancelled
// are reachable from every non-terminal phase.
const (
	PhaseInit        Phase = "init"
	PhaseMenu        Phase = "menu"
	PhaseCapture     Phase = "capture"
	PhaseCrawl       Phase = "crawl"
	PhasePostprocess Phase = "postprocess"
	PhaseDone        Phase = "done"
	PhaseError       Phase = "error"
	PhaseCancelled   Phase = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseError || p == PhaseCancelled
}

// CanTransition reports whether a session in phase p may move to next.
func (p Phase) CanTransition(next Phase) bool {
	if p.Terminal() {
		return false
	}
	if next == PhaseError || next == PhaseCancelled {
		return true
	}
	switch p {
	case PhaseInit:
		return next == PhaseMenu
	case PhaseMenu:
		return next == PhaseCapture || next == PhaseCrawl || next == PhasePostprocess
	case PhaseCapture, PhaseCrawl:
		return next == PhaseCapture || next == PhaseCrawl || next == PhasePostprocess
	case PhasePostprocess:
		return next == PhaseDone
	}
	return false
}

// CrawlError is a per-page (or fatal) failure recorded on a session.
type CrawlError struct {
	URL     string    `json:"url,omitempty"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Skip records a page dropped as a near-duplicate of an earlier capture.
type Skip struct {
	URL         string  `json:"url"`
	DuplicateOf string  `json:"duplicateOf"`
	Similarity  float64 `json:"similarity"`
}

// Status is the observable state of a session.
type Status struct {
	Phase      Phase        `json:"phase"`
	Current    int          `json:"current"`
	Total      int          `json:"total"`
	Message    string       `json:"message"`
	CurrentURL string       `json:"currentUrl,omitempty"`
	Pages      []string     `json:"pages"`
	Skipped    []Skip       `json:"skipped"`
	Errors     []CrawlError `json:"errors"`
}

// Clone returns a deep copy of the status.
func (s Status) Clone() Status {
	s.Pages = append([]string{}, s.Pages...)
	s.Skipped = append([]Skip{}, s.Skipped...)
	s.Errors = append([]CrawlError{}, s.Errors...)
	return s
}

// Outcome is the terminal result of one URL.
type Outcome string

// Per-URL outcomes.
const (
	OutcomeCaptured Outcome = "captured"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// Event is a projection of a session's status at one transition.
// Consumers should treat the latest event as authoritative.
type Event struct {
	SessionID  string      `json:"sessionId"`
	Phase      Phase       `json:"phase"`
	Current    int         `json:"current"`
	Total      int         `json:"total"`
	Message    string      `json:"message"`
	CurrentURL string      `json:"currentUrl,omitempty"`
	Outcome    Outcome     `json:"outcome,omitempty"`
	Error      *CrawlError `json:"error,omitempty"`
	Time       time.Time   `json:"time"`
}

// SessionSnapshot is a read-only view of a session.
type SessionSnapshot struct {
	ID        string         `json:"id"`
	RootURL   string         `json:"rootUrl"`
	Status    Status         `json:"status"`
	Menus     []MenuGroup    `json:"menus"`
	Captured  []CapturedPage `json:"captured"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// CloneRequest starts a session.
type CloneRequest struct {
	URL string `json:"url"`
	// Menus, when non-nil, replaces menu detection with a pre-approved structure.
	Menus   []MenuGroup `json:"menus,omitempty"`
	Profile string      `json:"profile,omitempty"`
}

// SessionStore owns running sessions. Each session has a single writer;
// callers only ever see snapshots.
type SessionStore interface {
	// StartSession begins a clone in the background and returns its initial snapshot.
	StartSession(ctx context.Context, req CloneRequest) (*SessionSnapshot, error)

	// FindSessionByID returns a snapshot, or ENOTFOUND.
	FindSessionByID(ctx context.Context, id string) (*SessionSnapshot, error)

	// FindSessions returns snapshots of all retained sessions.
	FindSessions(ctx context.Context) ([]*SessionSnapshot, error)

	// Subscribe streams the session's events until it reaches a terminal
	// phase or ctx is done. The latest state is delivered first.
	Subscribe(ctx context.Context, id string) (<-chan Event, error)

	// CancelSession requests cancellation. Already finished sessions are left untouched.
	CancelSession(ctx context.Context, id string) error
}

// MenuService detects the navigation of a site for review before a full crawl.
type MenuService interface {
	DetectMenus(ctx context.Context, url string) ([]MenuGroup, error)
}

// SessionFilter selects archived sessions.
type SessionFilter struct {
	ID      *string
	RootURL *string
	Phase   *Phase

	Limit  int
	Offset int
}

// SessionArchive persists finished sessions.
type SessionArchive interface {
	ArchiveSession(ctx context.Context, snapshot *SessionSnapshot) error
	FindArchivedSessionByID(ctx context.Context, id string) (*SessionSnapshot, error)
	FindArchivedSessions(ctx context.Context, filter SessionFilter) ([]*SessionSnapshot, error)
	DeleteArchivedSession(ctx context.Context, id string) error
}
