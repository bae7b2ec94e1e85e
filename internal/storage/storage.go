// Package storage persists per-user preferences and download history.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common storage conditions.
var (
	// ErrNotFound indicates the requested record was not found.
	ErrNotFound = errors.New("storage: not found")
	// ErrInvalidInput indicates invalid or malformed input was provided.
	ErrInvalidInput = errors.New("storage: invalid input")
	// ErrStorageCorrupt indicates an unreadable store file. Stores recover from
	// it by starting empty; it is only ever logged.
	ErrStorageCorrupt = errors.New("storage: data corruption detected")
	// ErrLockTimeout indicates a timeout acquiring a file lock.
	ErrLockTimeout = errors.New("storage: lock acquisition timeout")
	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("storage: unknown backend")
)

// StorageError wraps storage errors with operation and entity context.
// Use errors.As() to extract this error type and get operation details:
//
//	var storErr *storage.StorageError
//	if errors.As(err, &storErr) {
//		log.Printf("%s %s for user %s failed: %v", storErr.Op, storErr.Entity, storErr.ID, storErr.Err)
//	}
type StorageError struct {
	// Op is the operation that failed ("read", "write", "get", "set", "delete", "append", "list").
	Op string
	// Entity is the record type ("preference", "history").
	Entity string
	// ID is the user id if applicable.
	ID string
	// Err is the underlying error that occurred.
	Err error
}

func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage: %s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// HistoryLimit is the number of entries kept per user.
const HistoryLimit = 10

// KeyDefaultQuality is the preference key holding a user's default label.
const KeyDefaultQuality = "default_quality"

// legacyTimestampLayout is the zone-less format of older history files,
// read as local time. New entries are written as RFC 3339 with an offset.
const legacyTimestampLayout = "2006-01-02 15:04:05"

// HistoryEntry is one delivered link.
type HistoryEntry struct {
	URL       string    `json:"url"`
	Format    string    `json:"format"`
	Timestamp time.Time `json:"timestamp"`
}

type historyEntryJSON struct {
	URL       string `json:"url"`
	Format    string `json:"format"`
	Timestamp string `json:"timestamp"`
}

// MarshalJSON writes the timestamp as RFC 3339 in local time with its offset.
func (h HistoryEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(historyEntryJSON{
		URL:       h.URL,
		Format:    h.Format,
		Timestamp: h.Timestamp.Local().Format(time.RFC3339),
	})
}

// UnmarshalJSON accepts RFC 3339 or the legacy zone-less layout.
func (h *HistoryEntry) UnmarshalJSON(data []byte) error {
	var raw historyEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	h.URL = raw.URL
	h.Format = raw.Format
	h.Timestamp = time.Time{}
	if raw.Timestamp == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw.Timestamp); err == nil {
		h.Timestamp = t
		return nil
	}
	t, err := time.ParseInLocation(legacyTimestampLayout, raw.Timestamp, time.Local)
	if err != nil {
		return fmt.Errorf("parse history timestamp %q: %w", raw.Timestamp, err)
	}
	h.Timestamp = t
	return nil
}

// PreferenceStore holds flat key/value preferences per user.
// Implementations must be safe for concurrent use.
type PreferenceStore interface {
	// GetPreference returns the stored value, or def when none is set.
	GetPreference(ctx context.Context, userID int64, key, def string) (string, error)
	// SetPreference creates or overwrites a value.
	SetPreference(ctx context.Context, userID int64, key, value string) error
	// DeletePreference removes a value; ErrNotFound when none is set.
	DeletePreference(ctx context.Context, userID int64, key string) error
}

// HistoryStore keeps the most recent HistoryLimit entries per user.
// Implementations must be safe for concurrent use.
type HistoryStore interface {
	// AppendHistory adds an entry and drops the oldest beyond HistoryLimit.
	AppendHistory(ctx context.Context, userID int64, entry HistoryEntry) error
	// ListHistory returns the user's entries, oldest first.
	ListHistory(ctx context.Context, userID int64) ([]HistoryEntry, error)
}

// Store combines both record stores.
type Store interface {
	PreferenceStore
	HistoryStore

	// Close releases any resources held by the store.
	Close() error
}

// truncateHistory keeps the newest HistoryLimit entries.
func truncateHistory(entries []HistoryEntry) []HistoryEntry {
	if len(entries) <= HistoryLimit {
		return entries
	}
	return append([]HistoryEntry(nil), entries[len(entries)-HistoryLimit:]...)
}
