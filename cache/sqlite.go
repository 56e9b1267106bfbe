package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists entries in a SQLite database so the cache survives
// restarts. It holds at most maxEntries rows; the oldest writes go first.
type SQLiteStore struct {
	db         *sql.DB
	maxEntries int
}

// NewSQLiteStore opens (or creates) the database at path, ensures the data
// directory exists, and creates the schema. maxEntries <= 0 means
// DefaultMaxEntries.
func NewSQLiteStore(path string, maxEntries int) (*SQLiteStore, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets page renders read while a webhook deletes; busy_timeout makes
	// writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &SQLiteStore{db: db, maxEntries: maxEntries}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS entries (
    key TEXT PRIMARY KEY,
    body BLOB NOT NULL,
    header TEXT NOT NULL,
    stored_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS entry_tags (
    key TEXT NOT NULL,
    tag TEXT NOT NULL,
    PRIMARY KEY (key, tag)
);
CREATE INDEX IF NOT EXISTS entry_tags_tag ON entry_tags (tag);
CREATE INDEX IF NOT EXISTS entries_stored_at ON entries (stored_at);
CREATE INDEX IF NOT EXISTS entries_expires_at ON entries (expires_at);
`)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var body []byte
	var header string
	var storedAt, expiresAt int64
	err := s.db.QueryRowContext(ctx, `SELECT body, header, stored_at, expires_at FROM entries WHERE key = ?`, key).
		Scan(&body, &header, &storedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	e := Entry{
		Key:      key,
		Body:     body,
		StoredAt: time.UnixMilli(storedAt),
	}
	if expiresAt > 0 {
		e.ExpiresAt = time.UnixMilli(expiresAt)
	}
	if err := json.Unmarshal([]byte(header), &e.Header); err != nil {
		return Entry{}, false, fmt.Errorf("decode header for %s: %w", key, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT tag FROM entry_tags WHERE key = ? ORDER BY rowid`, key)
	if err != nil {
		return Entry{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return Entry{}, false, err
		}
		e.Tags = append(e.Tags, tag)
	}
	return e, true, rows.Err()
}

func (s *SQLiteStore) Set(ctx context.Context, e Entry) error {
	header := e.Header
	if header == nil {
		header = http.Header{}
	}
	hb, err := json.Marshal(header)
	if err != nil {
		return err
	}
	body := e.Body
	if body == nil {
		body = []byte{}
	}
	var expiresAt int64
	if !e.ExpiresAt.IsZero() {
		expiresAt = e.ExpiresAt.UnixMilli()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO entries (key, body, header, stored_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		e.Key, body, string(hb), e.StoredAt.UnixMilli(), expiresAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entry_tags WHERE key = ?`, e.Key); err != nil {
		return err
	}
	for _, tag := range e.Tags {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO entry_tags (key, tag) VALUES (?, ?)`, e.Key, tag); err != nil {
			return err
		}
	}
	if _, err := s.trim(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// trim deletes the oldest rows beyond maxEntries.
func (s *SQLiteStore) trim(ctx context.Context, tx *sql.Tx) (int, error) {
	const victims = `SELECT key FROM entries ORDER BY stored_at DESC, rowid DESC LIMIT -1 OFFSET ?`
	if _, err := tx.ExecContext(ctx, `DELETE FROM entry_tags WHERE key IN (`+victims+`)`, s.maxEntries); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE key IN (`+victims+`)`, s.maxEntries)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Sweep deletes entries that expired at or before now and trims the table to
// its size limit. It returns how many entries went.
func (s *SQLiteStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	const expired = `SELECT key FROM entries WHERE expires_at > 0 AND expires_at <= ?`
	cutoff := now.UnixMilli()
	if _, err := tx.ExecContext(ctx, `DELETE FROM entry_tags WHERE key IN (`+expired+`)`, cutoff); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE expires_at > 0 AND expires_at <= ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	trimmed, err := s.trim(ctx, tx)
	if err != nil {
		return 0, err
	}
	return int(n) + trimmed, tx.Commit()
}

// StartSweeper runs Sweep every interval until the returned stop function is
// called.
func (s *SQLiteStore) StartSweeper(interval time.Duration, logger *slog.Logger) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				n, err := s.Sweep(context.Background(), time.Now())
				if err != nil {
					logger.Warn("cache sweep failed", "error", err)
					continue
				}
				if n > 0 {
					logger.Debug("cache sweep", "entries", n)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// Len returns the number of stored entries.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key)
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entry_tags WHERE key = ?`, key); err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, tx.Commit()
}

func (s *SQLiteStore) DeleteTag(ctx context.Context, tag string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE key IN (SELECT key FROM entry_tags WHERE tag = ?)`, tag)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entry_tags WHERE key IN (SELECT key FROM entry_tags WHERE tag = ?)`, tag); err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), tx.Commit()
}

func (s *SQLiteStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	// substr avoids LIKE wildcard escaping for keys containing % or _.
	n := utf8.RuneCountInString(prefix)
	res, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE substr(key, 1, ?) = ?`, n, prefix)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entry_tags WHERE substr(key, 1, ?) = ?`, n, prefix); err != nil {
		return 0, err
	}
	deleted, _ := res.RowsAffected()
	return int(deleted), tx.Commit()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
