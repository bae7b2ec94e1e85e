package storage

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
)

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Options selects and configures a store backend.
type Options struct {
	// Backend is "json" (default) or "sqlite".
	Backend string
	// Dir holds the JSON files, and the database when SQLitePath is empty.
	Dir string
	// SQLitePath overrides the database location.
	SQLitePath string
	Logger     *zap.Logger
}

// Open returns the configured store.
func Open(opts Options) (Store, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}

	switch opts.Backend {
	case "", BackendJSON:
		return NewJSONStore(opts.Dir, opts.Logger)
	case BackendSQLite:
		path := opts.SQLitePath
		if path == "" {
			path = filepath.Join(opts.Dir, "vidlink.db")
		}
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
