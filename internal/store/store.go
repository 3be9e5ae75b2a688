// Package store persists the configuration documents and the mode event log
// in an embedded SQLite database.
//
// Schema changes are appended to [migrations]; each entry is applied once
// and its version recorded in schema_migrations. Never edit or reorder
// existing entries.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Document names.
const (
	DocTracks  = "tracks"
	DocPattern = "pattern"
	DocMorse   = "morse"
)

// ErrNotFound is returned when no document exists under a name.
var ErrNotFound = errors.New("document not found")

var migrations = []string{
	// v1 documents
	`CREATE TABLE IF NOT EXISTS documents (
		name               TEXT PRIMARY KEY,
		revision           TEXT NOT NULL,
		body               BLOB NOT NULL,
		updated_at_unix_ms INTEGER NOT NULL
	)`,
	// v2 mode events
	`CREATE TABLE IF NOT EXISTS events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		from_mode  TEXT NOT NULL,
		to_mode    TEXT NOT NULL,
		ts_unix_ms INTEGER NOT NULL
	)`,
	// v3
	`CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts_unix_ms)`,
}

// Document is one persisted configuration blob. The body is opaque to the
// store.
type Document struct {
	Name      string    `json:"name"`
	Revision  string    `json:"revision"`
	Body      []byte    `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event is one logged mode transition.
type Event struct {
	ID   int64     `json:"id"`
	From string    `json:"from"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
}

// Store persists documents and events in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database and runs migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		slog.Warn("sqlite busy_timeout", "err", err)
	}

	st := &Store{db: db}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("sqlite store opened", "path", path)
	return st, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i, stmt := range migrations {
		v := i + 1
		if v <= current {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations(version) VALUES(?)`, v); err != nil {
			return fmt.Errorf("record migration %d: %w", v, err)
		}
		slog.Debug("applied migration", "version", v)
	}
	return nil
}

// SaveDocument stores body under name with a fresh revision.
func (s *Store) SaveDocument(ctx context.Context, name string, body []byte) (Document, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Document{}, fmt.Errorf("document name is required")
	}
	if body == nil {
		body = []byte{}
	}
	doc := Document{
		Name:      name,
		Revision:  uuid.NewString(),
		Body:      body,
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	const q = `
INSERT INTO documents (name, revision, body, updated_at_unix_ms) VALUES (?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	revision = excluded.revision,
	body = excluded.body,
	updated_at_unix_ms = excluded.updated_at_unix_ms
`
	if _, err := s.db.ExecContext(ctx, q, doc.Name, doc.Revision, doc.Body, doc.UpdatedAt.UnixMilli()); err != nil {
		return Document{}, fmt.Errorf("save document %s: %w", name, err)
	}
	slog.Debug("document saved", "name", name, "revision", doc.Revision, "size", len(body))
	return doc, nil
}

// Document returns the document stored under name or ErrNotFound.
func (s *Store) Document(ctx context.Context, name string) (Document, error) {
	const q = `SELECT name, revision, body, updated_at_unix_ms FROM documents WHERE name = ?`
	var (
		doc Document
		ms  int64
	)
	err := s.db.QueryRowContext(ctx, q, name).Scan(&doc.Name, &doc.Revision, &doc.Body, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("query document %s: %w", name, err)
	}
	doc.UpdatedAt = time.UnixMilli(ms).UTC()
	return doc, nil
}

// Documents lists every stored document ordered by name, without bodies.
func (s *Store) Documents(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, revision, updated_at_unix_ms FROM documents ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			doc Document
			ms  int64
		)
		if err := rows.Scan(&doc.Name, &doc.Revision, &ms); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.UpdatedAt = time.UnixMilli(ms).UTC()
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// InsertEvent logs one mode transition and returns its ID.
func (s *Store) InsertEvent(ctx context.Context, from, to string, at time.Time) (int64, error) {
	const q = `INSERT INTO events (from_mode, to_mode, ts_unix_ms) VALUES (?, ?, ?)`
	result, err := s.db.ExecContext(ctx, q, from, to, at.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	id, _ := result.LastInsertId()
	return id, nil
}

// RecentEvents returns the most recent events, ordered oldest first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, from_mode, to_mode, ts_unix_ms
FROM events
ORDER BY ts_unix_ms DESC, id DESC
LIMIT ?
`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev Event
			ms int64
		)
		if err := rows.Scan(&ev.ID, &ev.From, &ev.To, &ms); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.At = time.UnixMilli(ms).UTC()
		events = append(events, ev)
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, rows.Err()
}

// PruneEvents deletes all but the newest keep events and returns how many
// were removed.
func (s *Store) PruneEvents(ctx context.Context, keep int) (int64, error) {
	const q = `DELETE FROM events WHERE id NOT IN (SELECT id FROM events ORDER BY ts_unix_ms DESC, id DESC LIMIT ?)`
	result, err := s.db.ExecContext(ctx, q, keep)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	n, _ := result.RowsAffected()
	if n > 0 {
		slog.Debug("events pruned", "removed", n, "kept", keep)
	}
	return n, nil
}
