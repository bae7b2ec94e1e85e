package storage

import (
	"os"
	"time"
)

// lockPoll is how often a held lock is retried.
const lockPoll = 10 * time.Millisecond

// lockFile is an exclusive advisory lock on a sidecar "<file>.lock". It
// guards a store file against a second process for as long as it is held.
type lockFile struct {
	path string
	f    *os.File
}

// acquireLock locks target+".lock", retrying until timeout elapses.
func acquireLock(target string, timeout time.Duration) (*lockFile, error) {
	path := target + ".lock"
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, &StorageError{Op: "lock", Entity: "file", ID: path, Err: err}
	}

	ticker := time.NewTicker(lockPoll)
	defer ticker.Stop()
	deadline := time.After(timeout)

	for {
		if err := tryLock(f); err == nil {
			return &lockFile{path: path, f: f}, nil
		}
		select {
		case <-deadline:
			f.Close()
			return nil, &StorageError{Op: "lock", Entity: "file", ID: path, Err: ErrLockTimeout}
		case <-ticker.C:
		}
	}
}

// release unlocks the sidecar. The file itself stays so every process
// locks the same inode. Safe on nil and repeated calls.
func (l *lockFile) release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unlock(l.f)
	l.f.Close()
	l.f = nil
	return err
}
