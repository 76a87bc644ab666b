package crawl

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fwojciec/siteclone"
	"github.com/google/uuid"
)

// archiveTimeout bounds persisting a finished session.
const archiveTimeout = 10 * time.Second

// Compile-time interface verification.
var _ siteclone.SessionStore = (*Sessions)(nil)

// Sessions runs clone sessions in the background and owns their state.
// Each session is written only by its own goroutine; callers get
// snapshots and event streams. Finished sessions stay readable for the
// retention window, then are removed (and are still found in the archive
// when one is configured).
type Sessions struct {
	engine  *Engine
	archive siteclone.SessionArchive
	logger  *slog.Logger

	// Retention overrides Engine.Policy.Retention when positive.
	Retention time.Duration

	base   context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*session
	closed   bool
	wg       sync.WaitGroup

	newID func() string
	now   func() time.Time
}

type session struct {
	id        string
	rootURL   string
	tracker   *Tracker
	out       *Broadcaster
	cancel    context.CancelFunc
	done      chan struct{}
	createdAt time.Time
	expiry    *time.Timer
}

// NewSessions creates a session store running clones on engine.
// archive and logger may be nil.
func NewSessions(engine *Engine, archive siteclone.SessionArchive, logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	base, cancel := context.WithCancel(context.Background())
	return &Sessions{
		engine:   engine,
		archive:  archive,
		logger:   logger,
		base:     base,
		cancel:   cancel,
		sessions: make(map[string]*session),
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// StartSession validates req and starts its clone in the background.
// The session outlives ctx; use CancelSession to stop it.
func (s *Sessions) StartSession(ctx context.Context, req siteclone.CloneRequest) (*siteclone.SessionSnapshot, error) {
	root, ok := Canonicalize("", req.URL)
	if !ok {
		return nil, siteclone.Errorf(siteclone.EINVALID, "invalid URL %q", req.URL)
	}
	if req.Profile != "" {
		if _, err := siteclone.PolicyForProfile(req.Profile); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, siteclone.Errorf(siteclone.EINVALID, "session store is closed")
	}
	out := NewBroadcaster(DefaultSubscriberBuffer)
	runCtx, cancel := context.WithCancel(s.base)
	sess := &session{
		id:        s.newID(),
		rootURL:   root,
		out:       out,
		cancel:    cancel,
		done:      make(chan struct{}),
		createdAt: s.now(),
	}
	sess.tracker = NewTracker(sess.id, out)
	s.sessions[sess.id] = sess
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("session started", "session", sess.id, "root", root, "profile", req.Profile)
	go s.run(runCtx, sess, req)

	return s.snapshot(sess), nil
}

// run is the session's single writer.
func (s *Sessions) run(ctx context.Context, sess *session, req siteclone.CloneRequest) {
	defer s.wg.Done()
	defer close(sess.done)
	defer sess.cancel()

	if _, err := s.engine.Clone(ctx, sess.tracker, req); err != nil {
		s.logger.Info("session ended", "session", sess.id, "phase", sess.tracker.Phase(), "err", err)
	}

	if s.archive != nil {
		actx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		if err := s.archive.ArchiveSession(actx, s.snapshot(sess)); err != nil {
			s.logger.Error("archive session", "session", sess.id, "err", err)
		}
		cancel()
	}
	sess.out.Close()

	s.mu.Lock()
	if !s.closed {
		sess.expiry = time.AfterFunc(s.retention(), func() { s.remove(sess.id) })
	}
	s.mu.Unlock()
}

func (s *Sessions) retention() time.Duration {
	if s.Retention > 0 {
		return s.Retention
	}
	if s.engine.Policy.Retention > 0 {
		return s.engine.Policy.Retention
	}
	return siteclone.DefaultPolicy().Retention
}

func (s *Sessions) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	s.logger.Debug("session expired", "session", id)
}

func (s *Sessions) find(id string) (*session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// FindSessionByID returns a live or retained session, falling back to
// the archive. Returns ENOTFOUND otherwise.
func (s *Sessions) FindSessionByID(ctx context.Context, id string) (*siteclone.SessionSnapshot, error) {
	if sess, ok := s.find(id); ok {
		return s.snapshot(sess), nil
	}
	if s.archive != nil {
		return s.archive.FindArchivedSessionByID(ctx, id)
	}
	return nil, siteclone.Errorf(siteclone.ENOTFOUND, "session %s not found", id)
}

// FindSessions returns the sessions held in memory, oldest first.
func (s *Sessions) FindSessions(ctx context.Context) ([]*siteclone.SessionSnapshot, error) {
	s.mu.RLock()
	list := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].createdAt.Equal(list[j].createdAt) {
			return list[i].id < list[j].id
		}
		return list[i].createdAt.Before(list[j].createdAt)
	})
	out := make([]*siteclone.SessionSnapshot, 0, len(list))
	for _, sess := range list {
		out = append(out, s.snapshot(sess))
	}
	return out, nil
}

// Subscribe streams a session's events, latest state first. The channel
// closes when the session reaches a terminal phase or ctx is done.
func (s *Sessions) Subscribe(ctx context.Context, id string) (<-chan siteclone.Event, error) {
	sess, ok := s.find(id)
	if !ok {
		return nil, siteclone.Errorf(siteclone.ENOTFOUND, "session %s not found", id)
	}

	events, unsubscribe := sess.out.Subscribe()
	out := make(chan siteclone.Event)
	go func() {
		defer close(out)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// CancelSession stops a running session. Finished sessions are left as is.
func (s *Sessions) CancelSession(ctx context.Context, id string) error {
	sess, ok := s.find(id)
	if !ok {
		if s.archive != nil {
			if _, err := s.archive.FindArchivedSessionByID(ctx, id); err == nil {
				return nil
			}
		}
		return siteclone.Errorf(siteclone.ENOTFOUND, "session %s not found", id)
	}
	if sess.tracker.Phase().Terminal() {
		return nil
	}
	s.logger.Info("session cancel requested", "session", id)
	sess.cancel()
	return nil
}

// Wait blocks until the session has finished, or ctx is done.
func (s *Sessions) Wait(ctx context.Context, id string) (*siteclone.SessionSnapshot, error) {
	sess, ok := s.find(id)
	if !ok {
		return s.FindSessionByID(ctx, id)
	}
	select {
	case <-sess.done:
		return s.snapshot(sess), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close cancels every running session and waits for them to finish.
func (s *Sessions) Close() error {
	s.mu.Lock()
	s.closed = true
	for _, sess := range s.sessions {
		if sess.expiry != nil {
			sess.expiry.Stop()
		}
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return nil
}

func (s *Sessions) snapshot(sess *session) *siteclone.SessionSnapshot {
	updated := sess.createdAt
	if e, ok := sess.out.Last(); ok {
		updated = e.Time
	}
	return &siteclone.SessionSnapshot{
		ID:        sess.id,
		RootURL:   sess.rootURL,
		Status:    sess.tracker.Status(),
		Menus:     nonNilMenus(sess.tracker.Menus()),
		Captured:  nonNilPages(sess.tracker.CapturedPages()),
		CreatedAt: sess.createdAt,
		UpdatedAt: updated,
	}
}

func nonNilMenus(m []siteclone.MenuGroup) []siteclone.MenuGroup {
	if m == nil {
		return []siteclone.MenuGroup{}
	}
	return m
}

func nonNilPages(p []siteclone.CapturedPage) []siteclone.CapturedPage {
	if p == nil {
		return []siteclone.CapturedPage{}
	}
	return p
}
