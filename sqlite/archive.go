package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fwojciec/siteclone"
)

// Compile-time interface verification.
var _ siteclone.SessionArchive = (*SessionArchive)(nil)

// SessionArchive implements siteclone.SessionArchive using SQLite.
type SessionArchive struct {
	db *DB
}

// NewSessionArchive creates a new SessionArchive.
func NewSessionArchive(db *DB) *SessionArchive {
	return &SessionArchive{db: db}
}

// ArchiveSession stores a snapshot, replacing any earlier snapshot of the
// same session.
func (s *SessionArchive) ArchiveSession(ctx context.Context, snap *siteclone.SessionSnapshot) error {
	if snap == nil || snap.ID == "" {
		return siteclone.Errorf(siteclone.EINVALID, "session ID required")
	}
	if snap.RootURL == "" {
		return siteclone.Errorf(siteclone.EINVALID, "root URL required")
	}

	names, err := json.Marshal(nonNil(snap.Status.Pages))
	if err != nil {
		return fmt.Errorf("encode page names: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, snap.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, root_url, phase, current_count, total_count, message, page_names, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.RootURL, string(snap.Status.Phase), snap.Status.Current, snap.Status.Total,
		snap.Status.Message, string(names), formatTime(snap.CreatedAt), formatTime(snap.UpdatedAt)); err != nil {
		return err
	}

	for i, p := range snap.Captured {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pages (session_id, position, name, file, hash, url, title, priority, depth, captured_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, snap.ID, i, p.Name, p.File, p.Hash, p.URL, p.Title, int(p.Priority), p.Depth, formatTime(p.CapturedAt)); err != nil {
			return err
		}
	}
	for i, e := range snap.Status.Errors {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO crawl_errors (session_id, position, url, code, message, occurred_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, snap.ID, i, e.URL, e.Code, e.Message, formatTime(e.Time)); err != nil {
			return err
		}
	}
	for i, sk := range snap.Status.Skipped {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO skips (session_id, position, url, duplicate_of, similarity)
			VALUES (?, ?, ?, ?, ?)
		`, snap.ID, i, sk.URL, sk.DuplicateOf, sk.Similarity); err != nil {
			return err
		}
	}
	for i, m := range snap.Menus {
		items, err := json.Marshal(nonNilItems(m.Items))
		if err != nil {
			return fmt.Errorf("encode menu items: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO menus (session_id, position, trigger_text, url, items)
			VALUES (?, ?, ?, ?, ?)
		`, snap.ID, i, m.Trigger, m.URL, string(items)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// FindArchivedSessionByID retrieves a session by ID.
func (s *SessionArchive) FindArchivedSessionByID(ctx context.Context, id string) (*siteclone.SessionSnapshot, error) {
	list, err := s.FindArchivedSessions(ctx, siteclone.SessionFilter{ID: &id, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, siteclone.Errorf(siteclone.ENOTFOUND, "session %s not found", id)
	}
	return list[0], nil
}

// FindArchivedSessions retrieves sessions matching the filter, newest first.
func (s *SessionArchive) FindArchivedSessions(ctx context.Context, filter siteclone.SessionFilter) ([]*siteclone.SessionSnapshot, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT id, root_url, phase, current_count, total_count, message, page_names, created_at, updated_at FROM sessions WHERE 1=1")

	if filter.ID != nil {
		query.WriteString(" AND id = ?")
		args = append(args, *filter.ID)
	}
	if filter.RootURL != nil {
		query.WriteString(" AND root_url = ?")
		args = append(args, *filter.RootURL)
	}
	if filter.Phase != nil {
		query.WriteString(" AND phase = ?")
		args = append(args, string(*filter.Phase))
	}

	query.WriteString(" ORDER BY created_at DESC, id")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []*siteclone.SessionSnapshot
	for rows.Next() {
		snap, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// SQLite allows one connection; children are loaded after the rows close.
	rows.Close()

	for _, snap := range snaps {
		if err := s.loadChildren(ctx, snap); err != nil {
			return nil, err
		}
	}
	return snaps, nil
}

func scanSession(rows *sql.Rows) (*siteclone.SessionSnapshot, error) {
	var snap siteclone.SessionSnapshot
	var phase, names, createdAt, updatedAt string
	if err := rows.Scan(&snap.ID, &snap.RootURL, &phase, &snap.Status.Current, &snap.Status.Total,
		&snap.Status.Message, &names, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	snap.Status.Phase = siteclone.Phase(phase)
	if err := json.Unmarshal([]byte(names), &snap.Status.Pages); err != nil {
		return nil, fmt.Errorf("decode page names: %w", err)
	}

	var err error
	if snap.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if snap.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *SessionArchive) loadChildren(ctx context.Context, snap *siteclone.SessionSnapshot) error {
	var err error
	if snap.Captured, err = s.findPages(ctx, snap.ID); err != nil {
		return err
	}
	if snap.Status.Errors, err = s.findErrors(ctx, snap.ID); err != nil {
		return err
	}
	if snap.Status.Skipped, err = s.findSkips(ctx, snap.ID); err != nil {
		return err
	}
	if snap.Menus, err = s.findMenus(ctx, snap.ID); err != nil {
		return err
	}
	return nil
}

func (s *SessionArchive) findPages(ctx context.Context, sessionID string) ([]siteclone.CapturedPage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, file, hash, url, title, priority, depth, captured_at
		FROM pages WHERE session_id = ? ORDER BY position
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pages := []siteclone.CapturedPage{}
	for rows.Next() {
		var p siteclone.CapturedPage
		var priority int
		var capturedAt string
		if err := rows.Scan(&p.Name, &p.File, &p.Hash, &p.URL, &p.Title, &priority, &p.Depth, &capturedAt); err != nil {
			return nil, err
		}
		p.Priority = siteclone.Priority(priority)
		if p.CapturedAt, err = parseTime(capturedAt, "captured_at"); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (s *SessionArchive) findErrors(ctx context.Context, sessionID string) ([]siteclone.CrawlError, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, code, message, occurred_at
		FROM crawl_errors WHERE session_id = ? ORDER BY position
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	errs := []siteclone.CrawlError{}
	for rows.Next() {
		var e siteclone.CrawlError
		var occurredAt string
		if err := rows.Scan(&e.URL, &e.Code, &e.Message, &occurredAt); err != nil {
			return nil, err
		}
		if e.Time, err = parseTime(occurredAt, "occurred_at"); err != nil {
			return nil, err
		}
		errs = append(errs, e)
	}
	return errs, rows.Err()
}

func (s *SessionArchive) findSkips(ctx context.Context, sessionID string) ([]siteclone.Skip, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, duplicate_of, similarity
		FROM skips WHERE session_id = ? ORDER BY position
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	skips := []siteclone.Skip{}
	for rows.Next() {
		var sk siteclone.Skip
		if err := rows.Scan(&sk.URL, &sk.DuplicateOf, &sk.Similarity); err != nil {
			return nil, err
		}
		skips = append(skips, sk)
	}
	return skips, rows.Err()
}

func (s *SessionArchive) findMenus(ctx context.Context, sessionID string) ([]siteclone.MenuGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trigger_text, url, items
		FROM menus WHERE session_id = ? ORDER BY position
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	menus := []siteclone.MenuGroup{}
	for rows.Next() {
		var m siteclone.MenuGroup
		var items string
		if err := rows.Scan(&m.Trigger, &m.URL, &items); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(items), &m.Items); err != nil {
			return nil, fmt.Errorf("decode menu items: %w", err)
		}
		if len(m.Items) == 0 {
			m.Items = nil
		}
		menus = append(menus, m)
	}
	return menus, rows.Err()
}

// DeleteArchivedSession permanently removes a session and its pages,
// errors and menus.
func (s *SessionArchive) DeleteArchivedSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return siteclone.Errorf(siteclone.ENOTFOUND, "session %s not found", id)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilItems(items []siteclone.MenuItem) []siteclone.MenuItem {
	if items == nil {
		return []siteclone.MenuItem{}
	}
	return items
}

