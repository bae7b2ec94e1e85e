package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on an embedded SQLite database. Preference
// writes are single-row upserts and a history append with its truncation
// runs in one transaction.
type SQLiteStore struct {
	db *sql.DB

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &StorageError{Op: "open", Entity: "store", Err: fmt.Errorf("create db dir: %w", err)}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &StorageError{Op: "open", Entity: "store", Err: err}
	}
	// One writer keeps SQLITE_BUSY out of concurrent appends.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, &StorageError{Op: "migrate", Entity: "store", Err: err}
	}
	return s, nil
}

// newID returns a ULID; ids sort in insertion order.
func (s *SQLiteStore) newID(t time.Time) string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS preferences (
		user_id    INTEGER NOT NULL,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, key)
	);

	CREATE TABLE IF NOT EXISTS history (
		id         TEXT PRIMARY KEY,
		user_id    INTEGER NOT NULL,
		url        TEXT NOT NULL,
		format     TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_user ON history(user_id, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// GetPreference implements PreferenceStore.
func (s *SQLiteStore) GetPreference(ctx context.Context, userID int64, key, def string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE user_id = ? AND key = ?`, userID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return "", &StorageError{Op: "get", Entity: "preference", ID: strconv.FormatInt(userID, 10), Err: err}
	}
	return value, nil
}

// SetPreference implements PreferenceStore.
func (s *SQLiteStore) SetPreference(ctx context.Context, userID int64, key, value string) error {
	if key == "" {
		return &StorageError{Op: "set", Entity: "preference", ID: strconv.FormatInt(userID, 10), Err: ErrInvalidInput}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		userID, key, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return &StorageError{Op: "set", Entity: "preference", ID: strconv.FormatInt(userID, 10), Err: err}
	}
	return nil
}

// DeletePreference implements PreferenceStore.
func (s *SQLiteStore) DeletePreference(ctx context.Context, userID int64, key string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM preferences WHERE user_id = ? AND key = ?`, userID, key)
	if err != nil {
		return &StorageError{Op: "delete", Entity: "preference", ID: strconv.FormatInt(userID, 10), Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &StorageError{Op: "delete", Entity: "preference", ID: strconv.FormatInt(userID, 10), Err: ErrNotFound}
	}
	return nil
}

// AppendHistory implements HistoryStore.
func (s *SQLiteStore) AppendHistory(ctx context.Context, userID int64, entry HistoryEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	wrap := func(err error) error {
		return &StorageError{Op: "append", Entity: "history", ID: strconv.FormatInt(userID, 10), Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO history (id, user_id, url, format, created_at) VALUES (?, ?, ?, ?, ?)`,
		s.newID(time.Now()), userID, entry.URL, entry.Format,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return wrap(err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM history WHERE user_id = ? AND id NOT IN (
			SELECT id FROM history WHERE user_id = ? ORDER BY id DESC LIMIT ?
		)`, userID, userID, HistoryLimit)
	if err != nil {
		return wrap(err)
	}

	if err := tx.Commit(); err != nil {
		return wrap(err)
	}
	return nil
}

// ListHistory implements HistoryStore.
func (s *SQLiteStore) ListHistory(ctx context.Context, userID int64) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, format, created_at FROM history WHERE user_id = ? ORDER BY id ASC`, userID)
	if err != nil {
		return nil, &StorageError{Op: "list", Entity: "history", ID: strconv.FormatInt(userID, 10), Err: err}
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var createdAt string
		if err := rows.Scan(&e.URL, &e.Format, &createdAt); err != nil {
			return nil, &StorageError{Op: "list", Entity: "history", ID: strconv.FormatInt(userID, 10), Err: err}
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
