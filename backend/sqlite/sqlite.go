// Package sqlite persists fetched note pages in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
	"notehub/backend"
)

// schemaVersion is bumped whenever the snapshot tables change shape.
// Older snapshot databases are dropped and rebuilt, since every row can be fetched again.
const schemaVersion = 1

// Store implements backend.PageStore using SQLite
type Store struct {
	db *sql.DB
}

// New opens (or creates) the snapshot database at path and initializes the schema.
// Use ":memory:" for an in-process store.
func New(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create snapshot directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Every connection to ":memory:" is a separate database
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// initSchema creates the database tables if they don't exist
func (s *Store) initSchema() error {
	// Enable foreign keys
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	if _, err := s.db.Exec("CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)"); err != nil {
		return err
	}

	var current int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		current = 0
	case err != nil:
		return err
	}

	if current != 0 && current != schemaVersion {
		if _, err := s.db.Exec("DROP TABLE IF EXISTS page_notes; DROP TABLE IF EXISTS pages"); err != nil {
			return err
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS pages (
			search TEXT NOT NULL,
			page INTEGER NOT NULL,
			total_pages INTEGER NOT NULL,
			fetched_at TEXT NOT NULL,
			PRIMARY KEY (search, page)
		);

		CREATE TABLE IF NOT EXISTS page_notes (
			search TEXT NOT NULL,
			page INTEGER NOT NULL,
			position INTEGER NOT NULL,
			id TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			tag TEXT NOT NULL DEFAULT '',
			completed INTEGER NOT NULL DEFAULT 0,
			created_at TEXT,
			updated_at TEXT,
			PRIMARY KEY (search, page, position),
			FOREIGN KEY (search, page) REFERENCES pages(search, page) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_pages_fetched_at ON pages(fetched_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	if current != schemaVersion {
		if _, err := s.db.Exec("DELETE FROM schema_version"); err != nil {
			return err
		}
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return err
		}
	}
	return nil
}

// SavePage replaces the stored copy of one page
func (s *Store) SavePage(ctx context.Context, snap backend.PageSnapshot) error {
	if snap.Data == nil {
		return errors.New("snapshot has no page data")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM page_notes WHERE search = ? AND page = ?", snap.Search, snap.Page); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM pages WHERE search = ? AND page = ?", snap.Search, snap.Page); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO pages (search, page, total_pages, fetched_at) VALUES (?, ?, ?, ?)",
		snap.Search, snap.Page, snap.Data.TotalPages, snap.FetchedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}

	for i, n := range snap.Data.Notes {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO page_notes (search, page, position, id, title, content, tag, completed, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.Search, snap.Page, i, n.ID, n.Title, n.Content, string(n.Tag), n.Completed,
			timeToNullString(n.CreatedAt), timeToNullString(n.UpdatedAt),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadPage returns the stored copy of one page, or nil if none exists
func (s *Store) LoadPage(ctx context.Context, search string, page int) (*backend.PageSnapshot, error) {
	var totalPages int
	var fetchedStr string
	err := s.db.QueryRowContext(ctx,
		"SELECT total_pages, fetched_at FROM pages WHERE search = ? AND page = ?",
		search, page,
	).Scan(&totalPages, &fetchedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	notes, err := s.loadNotes(ctx, search, page)
	if err != nil {
		return nil, err
	}

	fetchedAt, _ := time.Parse(time.RFC3339Nano, fetchedStr)
	return &backend.PageSnapshot{
		Search:    search,
		Page:      page,
		Data:      &backend.NotePage{Notes: notes, TotalPages: totalPages, Page: page},
		FetchedAt: fetchedAt,
	}, nil
}

// LoadPages returns every stored page, most recently fetched first
func (s *Store) LoadPages(ctx context.Context) ([]backend.PageSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT search, page FROM pages ORDER BY fetched_at DESC, search, page")
	if err != nil {
		return nil, err
	}

	type pageKey struct {
		search string
		page   int
	}
	var keys []pageKey
	for rows.Next() {
		var k pageKey
		if err := rows.Scan(&k.search, &k.page); err != nil {
			_ = rows.Close()
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	snaps := make([]backend.PageSnapshot, 0, len(keys))
	for _, k := range keys {
		snap, err := s.LoadPage(ctx, k.search, k.page)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			snaps = append(snaps, *snap)
		}
	}
	return snaps, nil
}

// Prune keeps the keep most recently fetched pages and deletes the rest.
// It returns the number of pages removed.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM pages WHERE rowid NOT IN (
			SELECT rowid FROM pages ORDER BY fetched_at DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := s.deleteOrphanNotes(ctx); err != nil {
		return 0, err
	}
	return int(n), nil
}

// Clear removes every stored page
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM pages"); err != nil {
		return err
	}
	return s.deleteOrphanNotes(ctx)
}

// deleteOrphanNotes removes note rows whose page is gone, for connections
// where the foreign key cascade is not active.
func (s *Store) deleteOrphanNotes(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM page_notes WHERE NOT EXISTS (
			SELECT 1 FROM pages p WHERE p.search = page_notes.search AND p.page = page_notes.page
		)`)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) loadNotes(ctx context.Context, search string, page int) ([]backend.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, tag, completed, created_at, updated_at
		 FROM page_notes WHERE search = ? AND page = ? ORDER BY position`,
		search, page,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	notes := []backend.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

// scanner is an interface satisfied by both *sql.Rows and *sql.Row
type scanner interface {
	Scan(dest ...any) error
}

// scanNote scans a note from any scanner (Rows or Row)
func scanNote(s scanner) (*backend.Note, error) {
	var n backend.Note
	var tag string
	var createdStr, updatedStr sql.NullString
	if err := s.Scan(&n.ID, &n.Title, &n.Content, &tag, &n.Completed, &createdStr, &updatedStr); err != nil {
		return nil, err
	}
	n.Tag = backend.Tag(tag)
	n.CreatedAt = parseOptionalDate(createdStr)
	n.UpdatedAt = parseOptionalDate(updatedStr)
	return &n, nil
}

// timeToNullString converts a *time.Time to sql.NullString for database storage.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

// parseOptionalDate parses a nullable date string and returns a pointer to time.Time.
func parseOptionalDate(str sql.NullString) *time.Time {
	if str.Valid && str.String != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, str.String); err == nil {
			return &parsed
		}
	}
	return nil
}

// Verify interface compliance at compile time
var _ backend.PageStore = (*Store)(nil)
