package mock

import (
	"context"

	"github.com/fwojciec/siteclone"
)

var _ siteclone.PageStore = (*PageStore)(nil)

// PageStore is a mock implementation of siteclone.PageStore.
type PageStore struct {
	SaveFn   func(ctx context.Context, content *siteclone.PageContent) error
	CommitFn func(ctx context.Context, manifest *siteclone.Manifest) error
	AbortFn  func() error
}

func (s *PageStore) Save(ctx context.Context, content *siteclone.PageContent) error {
	return s.SaveFn(ctx, content)
}

func (s *PageStore) Commit(ctx context.Context, manifest *siteclone.Manifest) error {
	return s.CommitFn(ctx, manifest)
}

func (s *PageStore) Abort() error {
	return s.AbortFn()
}

var _ siteclone.SessionArchive = (*SessionArchive)(nil)

// SessionArchive is a mock implementation of siteclone.SessionArchive.
type SessionArchive struct {
	ArchiveSessionFn          func(ctx context.Context, snapshot *siteclone.SessionSnapshot) error
	FindArchivedSessionByIDFn func(ctx context.Context, id string) (*siteclone.SessionSnapshot, error)
	FindArchivedSessionsFn    func(ctx context.Context, filter siteclone.SessionFilter) ([]*siteclone.SessionSnapshot, error)
	DeleteArchivedSessionFn   func(ctx context.Context, id string) error
}

func (a *SessionArchive) ArchiveSession(ctx context.Context, snapshot *siteclone.SessionSnapshot) error {
	return a.ArchiveSessionFn(ctx, snapshot)
}

func (a *SessionArchive) FindArchivedSessionByID(ctx context.Context, id string) (*siteclone.SessionSnapshot, error) {
	return a.FindArchivedSessionByIDFn(ctx, id)
}

func (a *SessionArchive) FindArchivedSessions(ctx context.Context, filter siteclone.SessionFilter) ([]*siteclone.SessionSnapshot, error) {
	return a.FindArchivedSessionsFn(ctx, filter)
}

func (a *SessionArchive) DeleteArchivedSession(ctx context.Context, id string) error {
	return a.DeleteArchivedSessionFn(ctx, id)
}

var _ siteclone.SessionStore = (*SessionStore)(nil)

// SessionStore is a mock implementation of siteclone.SessionStore.
type SessionStore struct {
	StartSessionFn    func(ctx context.Context, req siteclone.CloneRequest) (*siteclone.SessionSnapshot, error)
	FindSessionByIDFn func(ctx context.Context, id string) (*siteclone.SessionSnapshot, error)
	FindSessionsFn    func(ctx context.Context) ([]*siteclone.SessionSnapshot, error)
	SubscribeFn       func(ctx context.Context, id string) (<-chan siteclone.Event, error)
	CancelSessionFn   func(ctx context.Context, id string) error
}

func (s *SessionStore) StartSession(ctx context.Context, req siteclone.CloneRequest) (*siteclone.SessionSnapshot, error) {
	return s.StartSessionFn(ctx, req)
}

func (s *SessionStore) FindSessionByID(ctx context.Context, id string) (*siteclone.SessionSnapshot, error) {
	return s.FindSessionByIDFn(ctx, id)
}

func (s *SessionStore) FindSessions(ctx context.Context) ([]*siteclone.SessionSnapshot, error) {
	return s.FindSessionsFn(ctx)
}

func (s *SessionStore) Subscribe(ctx context.Context, id string) (<-chan siteclone.Event, error) {
	return s.SubscribeFn(ctx, id)
}

func (s *SessionStore) CancelSession(ctx context.Context, id string) error {
	return s.CancelSessionFn(ctx, id)
}

var _ siteclone.MenuService = (*MenuService)(nil)

// MenuService is a mock implementation of siteclone.MenuService.
type MenuService struct {
	DetectMenusFn func(ctx context.Context, url string) ([]siteclone.MenuGroup, error)
}

func (s *MenuService) DetectMenus(ctx context.Context, url string) ([]siteclone.MenuGroup, error) {
	return s.DetectMenusFn(ctx, url)
}
