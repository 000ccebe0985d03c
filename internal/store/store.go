// Package store persists reader state — highlights, cached translations
// and per-document sessions — in a single SQLite database under the
// cache directory.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lectern-app/lectern/internal/highlight"
)

const schema = `
CREATE TABLE IF NOT EXISTS highlights (
    doc_id  TEXT NOT NULL,
    id      TEXT NOT NULL,
    payload TEXT NOT NULL,
    PRIMARY KEY (doc_id, id)
);

CREATE TABLE IF NOT EXISTS translations (
    doc_id       TEXT NOT NULL,
    paragraph_id TEXT NOT NULL,
    body         TEXT NOT NULL,
    updated_at   INTEGER NOT NULL,
    PRIMARY KEY (doc_id, paragraph_id)
);

CREATE TABLE IF NOT EXISTS sessions (
    doc_id     TEXT PRIMARY KEY,
    payload    TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// Session is the restorable view state for one document.
type Session struct {
	DocID      string    `json:"docId"`
	ScrollTop  float64   `json:"scrollTop"`
	Scale      float64   `json:"scale"`
	OpenPanels []string  `json:"openPanels,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Store wraps the SQLite database. Safe for concurrent use; database/sql
// serializes access.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path, creating parent
// directories as needed. Pass ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveHighlights replaces the stored highlight set for a document.
func (s *Store) SaveHighlights(ctx context.Context, docID string, hs []highlight.Highlight) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM highlights WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("store: clear highlights: %w", err)
	}
	for _, h := range hs {
		payload, err := json.Marshal(h)
		if err != nil {
			return fmt.Errorf("store: encode highlight %s: %w", h.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO highlights (doc_id, id, payload) VALUES (?, ?, ?)`,
			docID, h.ID, string(payload)); err != nil {
			return fmt.Errorf("store: insert highlight %s: %w", h.ID, err)
		}
	}
	return tx.Commit()
}

// LoadHighlights returns the stored highlights for a document, empty when
// none were saved. Rowid order is insertion order, which is the creation
// order overlap cycling depends on; the text ids sort wrong past h9.
func (s *Store) LoadHighlights(ctx context.Context, docID string) ([]highlight.Highlight, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM highlights WHERE doc_id = ? ORDER BY rowid`, docID)
	if err != nil {
		return nil, fmt.Errorf("store: query highlights: %w", err)
	}
	defer rows.Close()
	var out []highlight.Highlight
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("store: scan highlight: %w", err)
		}
		var h highlight.Highlight
		if err := json.Unmarshal([]byte(payload), &h); err != nil {
			return nil, fmt.Errorf("store: decode highlight: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// SaveTranslation caches a paragraph translation.
func (s *Store) SaveTranslation(ctx context.Context, docID, paragraphID, body string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO translations (doc_id, paragraph_id, body, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (doc_id, paragraph_id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		docID, paragraphID, body, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("store: save translation: %w", err)
	}
	return nil
}

// LoadTranslation returns a cached paragraph translation; ok is false on
// a cache miss.
func (s *Store) LoadTranslation(ctx context.Context, docID, paragraphID string) (body string, ok bool, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT body FROM translations WHERE doc_id = ? AND paragraph_id = ?`, docID, paragraphID)
	switch err := row.Scan(&body); err {
	case nil:
		return body, true, nil
	case sql.ErrNoRows:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("store: load translation: %w", err)
	}
}

// DeleteTranslation drops a cached translation, used by force refresh.
func (s *Store) DeleteTranslation(ctx context.Context, docID, paragraphID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM translations WHERE doc_id = ? AND paragraph_id = ?`, docID, paragraphID); err != nil {
		return fmt.Errorf("store: delete translation: %w", err)
	}
	return nil
}

// SaveSession stores the restorable view state for a document.
func (s *Store) SaveSession(ctx context.Context, sess Session) error {
	sess.UpdatedAt = time.Now()
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("store: encode session: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (doc_id, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (doc_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		sess.DocID, string(payload), sess.UpdatedAt.UnixNano()); err != nil {
		return fmt.Errorf("store: save session: %w", err)
	}
	return nil
}

// LoadSession returns the stored session for a document; ok is false when
// the document was never opened before.
func (s *Store) LoadSession(ctx context.Context, docID string) (Session, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM sessions WHERE doc_id = ?`, docID)
	var payload string
	switch err := row.Scan(&payload); err {
	case nil:
	case sql.ErrNoRows:
		return Session{}, false, nil
	default:
		return Session{}, false, fmt.Errorf("store: load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(payload), &sess); err != nil {
		return Session{}, false, fmt.Errorf("store: decode session: %w", err)
	}
	return sess, true, nil
}

// DefaultPath returns the database location under the user cache
// directory, honoring LECTERN_CACHE_DIR.
func DefaultPath() (string, error) {
	if dir := os.Getenv("LECTERN_CACHE_DIR"); dir != "" {
		return filepath.Join(dir, "lectern", "state.db"), nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("store: resolve cache dir: %w", err)
	}
	return filepath.Join(dir, "lectern", "state.db"), nil
}
