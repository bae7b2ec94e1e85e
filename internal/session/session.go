// Package session holds the short-lived state that binds a selection button
// back to the request that produced it.
//
// Entries are single-use: Take removes the entry it returns. Unconsumed
// entries expire after a TTL and the cache never holds more than MaxEntries,
// evicting the least recently used entry first.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"vidlink/internal/ladder"
)

// ErrNotFound is returned by Take for unknown, expired or consumed ids.
var ErrNotFound = errors.New("session: selection expired or invalid")

const (
	DefaultTTL           = 30 * time.Minute
	DefaultMaxEntries    = 1000
	DefaultSweepInterval = time.Minute
)

// Entry is the state needed to finish a request once the user picks a format.
type Entry struct {
	URL       string
	Ladder    *ladder.Ladder
	CreatedAt time.Time
}

// Options configures a Cache. Zero values select the defaults.
type Options struct {
	TTL           time.Duration
	MaxEntries    int
	SweepInterval time.Duration // negative disables the background sweeper
	Logger        *zap.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

type queued struct {
	id      string
	expires time.Time
}

// Cache is a bounded, mutex-guarded store of pending selections.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Cache
	expiry  []queued // insertion order, so expiry order as well

	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a cache and starts its sweeper. Call Close to stop it.
func New(opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.SweepInterval == 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Cache{
		entries: lru.New(opts.MaxEntries),
		ttl:     opts.TTL,
		now:     opts.Now,
		logger:  opts.Logger,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	if opts.SweepInterval > 0 {
		go c.sweepLoop(opts.SweepInterval)
	} else {
		close(c.done)
	}
	return c
}

// Put stores entry under a fresh random correlation id and returns the id.
func (c *Cache) Put(entry Entry) string {
	id := uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry.CreatedAt = c.now()
	if c.entries.MaxEntries > 0 && c.entries.Len() >= c.entries.MaxEntries {
		c.logger.Debug("session cache full, evicting oldest", zap.Int("capacity", c.entries.MaxEntries))
	}
	c.entries.Add(id, entry)
	c.expiry = append(c.expiry, queued{id: id, expires: entry.CreatedAt.Add(c.ttl)})
	return id
}

// Take returns and removes the entry for id.
func (c *Cache) Take(id string) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.entries.Get(id)
	if !ok {
		return Entry{}, ErrNotFound
	}
	c.entries.Remove(id)

	entry := v.(Entry)
	if !c.now().Before(entry.CreatedAt.Add(c.ttl)) {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

// Len returns the number of pending entries, expired ones included until
// the next sweep.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Sweep removes expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	before := c.entries.Len()
	n := 0
	for n < len(c.expiry) && !now.Before(c.expiry[n].expires) {
		c.entries.Remove(c.expiry[n].id)
		n++
	}
	c.expiry = c.expiry[n:]
	return before - c.entries.Len()
}

// Close stops the sweeper. It is safe to call more than once.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
	})
	<-c.done
	return nil
}

func (c *Cache) sweepLoop(interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Debug("expired sessions swept", zap.Int("count", n))
			}
		case <-c.stop:
			return
		}
	}
}
