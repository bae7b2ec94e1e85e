package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// PreferencesFile and HistoryFile are the file names inside the data dir.
	PreferencesFile = "preferences.json"
	HistoryFile     = "history.json"

	lockTimeout = 5 * time.Second
)

// JSONStore keeps preferences and history in two JSON files.
//
// Each file is locked for the lifetime of the store, so one process owns
// it. Every mutation rewrites the whole file atomically while holding mu.
type JSONStore struct {
	mu sync.RWMutex

	prefs       map[string]map[string]string
	history     map[string][]HistoryEntry
	prefsFile   *jsonFile
	historyFile *jsonFile
	logger      *zap.Logger
}

// jsonFile is one locked store file.
type jsonFile struct {
	path   string
	lock   *lockFile
	entity string
}

// NewJSONStore opens (or creates) the store files under dir.
func NewJSONStore(dir string, logger *zap.Logger) (*JSONStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &StorageError{Op: "open", Entity: "store", Err: err}
	}

	s := &JSONStore{
		prefs:       make(map[string]map[string]string),
		history:     make(map[string][]HistoryEntry),
		prefsFile:   newJSONFile(filepath.Join(dir, PreferencesFile), "preference"),
		historyFile: newJSONFile(filepath.Join(dir, HistoryFile), "history"),
		logger:      logger,
	}

	var err error
	if s.prefsFile.lock, err = acquireLock(s.prefsFile.path, lockTimeout); err != nil {
		return nil, err
	}
	if s.historyFile.lock, err = acquireLock(s.historyFile.path, lockTimeout); err != nil {
		s.prefsFile.lock.release()
		return nil, err
	}

	if err := s.prefsFile.load(&s.prefs, logger); err != nil {
		s.unlock()
		return nil, err
	}
	if err := s.historyFile.load(&s.history, logger); err != nil {
		s.unlock()
		return nil, err
	}
	if s.prefs == nil {
		s.prefs = make(map[string]map[string]string)
	}
	if s.history == nil {
		s.history = make(map[string][]HistoryEntry)
	}

	return s, nil
}

func newJSONFile(path, entity string) *jsonFile {
	return &jsonFile{path: path, entity: entity}
}

// load decodes the file into v. A missing file leaves v untouched. An
// unparseable file is moved aside and v is left empty.
func (f *jsonFile) load(v any, logger *zap.Logger) error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return &StorageError{Op: "read", Entity: f.entity, Err: err}
	}
	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		backup := fmt.Sprintf("%s.corrupt-%d", f.path, time.Now().Unix())
		if renameErr := os.Rename(f.path, backup); renameErr != nil {
			backup = ""
		}
		logger.Warn("store file unreadable, starting empty",
			zap.String("path", f.path),
			zap.String("backup", backup),
			zap.Error(&StorageError{Op: "read", Entity: f.entity, Err: fmt.Errorf("%w: %v", ErrStorageCorrupt, err)}),
		)
		// Unmarshal may have partly filled v.
		switch m := v.(type) {
		case *map[string]map[string]string:
			*m = make(map[string]map[string]string)
		case *map[string][]HistoryEntry:
			*m = make(map[string][]HistoryEntry)
		}
	}
	return nil
}

func (f *jsonFile) save(v any) error {
	if err := writeJSONFile(f.path, v); err != nil {
		return &StorageError{Op: "write", Entity: f.entity, Err: err}
	}
	return nil
}

func userKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// GetPreference implements PreferenceStore.
func (s *JSONStore) GetPreference(ctx context.Context, userID int64, key, def string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.prefs[userKey(userID)][key]; ok {
		return v, nil
	}
	return def, nil
}

// SetPreference implements PreferenceStore.
func (s *JSONStore) SetPreference(ctx context.Context, userID int64, key, value string) error {
	if key == "" {
		return &StorageError{Op: "set", Entity: "preference", ID: userKey(userID), Err: ErrInvalidInput}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	uid := userKey(userID)
	user, ok := s.prefs[uid]
	prev, hadPrev := user[key]
	if !ok {
		user = make(map[string]string)
		s.prefs[uid] = user
	}
	user[key] = value

	if err := s.prefsFile.save(s.prefs); err != nil {
		// Roll back so memory matches disk.
		if hadPrev {
			user[key] = prev
		} else {
			delete(user, key)
			if len(user) == 0 {
				delete(s.prefs, uid)
			}
		}
		return err
	}
	return nil
}

// DeletePreference implements PreferenceStore.
func (s *JSONStore) DeletePreference(ctx context.Context, userID int64, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	uid := userKey(userID)
	user := s.prefs[uid]
	prev, ok := user[key]
	if !ok {
		return &StorageError{Op: "delete", Entity: "preference", ID: uid, Err: ErrNotFound}
	}

	delete(user, key)
	if len(user) == 0 {
		delete(s.prefs, uid)
	}

	if err := s.prefsFile.save(s.prefs); err != nil {
		if s.prefs[uid] == nil {
			s.prefs[uid] = user
		}
		user[key] = prev
		return err
	}
	return nil
}

// AppendHistory implements HistoryStore.
func (s *JSONStore) AppendHistory(ctx context.Context, userID int64, entry HistoryEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	uid := userKey(userID)
	prev := s.history[uid]

	next := make([]HistoryEntry, 0, len(prev)+1)
	next = append(next, prev...)
	next = append(next, entry)
	s.history[uid] = truncateHistory(next)

	if err := s.historyFile.save(s.history); err != nil {
		if prev == nil {
			delete(s.history, uid)
		} else {
			s.history[uid] = prev
		}
		return err
	}
	return nil
}

// ListHistory implements HistoryStore.
func (s *JSONStore) ListHistory(ctx context.Context, userID int64) ([]HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[userKey(userID)]
	return append([]HistoryEntry(nil), entries...), nil
}

// Close releases the file locks.
func (s *JSONStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlock()
	return nil
}

func (s *JSONStore) unlock() {
	s.historyFile.lock.release()
	s.prefsFile.lock.release()
}
