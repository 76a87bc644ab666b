package siteclone

import (
	"context"
	"time"
)

// CapturedPage is a page persisted by a session.
type CapturedPage struct {
	Name       string    `json:"name"`
	File       string    `json:"file"`
	Hash       string    `json:"hash"`
	URL        string    `json:"url"`
	Title      string    `json:"title,omitempty"`
	Priority   Priority  `json:"priority"`
	Depth      int       `json:"depth"`
	CapturedAt time.Time `json:"capturedAt"`
}

// PageContent is what a PageStore receives for a captured page.
type PageContent struct {
	Page       CapturedPage
	HTML       string
	Screenshot []byte
}

// Manifest summarises a finished clone for the packaging collaborator.
type Manifest struct {
	RootURL string         `json:"rootUrl"`
	Menus   []MenuGroup    `json:"menus"`
	Pages   []CapturedPage `json:"pages"`
	Errors  []CrawlError   `json:"errors"`
}

// PageStore persists captured pages with atomic semantics.
// Save writes to a temporary location; Commit makes changes permanent;
// Abort discards pending changes.
type PageStore interface {
	Save(ctx context.Context, content *PageContent) error
	Commit(ctx context.Context, manifest *Manifest) error
	Abort() error
}
