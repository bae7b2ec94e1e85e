package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"vidlink/internal/ladder"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(t *testing.T, opts Options) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	opts.Now = clock.Now
	if opts.SweepInterval == 0 {
		opts.SweepInterval = -1
	}
	c := New(opts)
	t.Cleanup(func() { c.Close() })
	return c, clock
}

func sampleEntry() Entry {
	return Entry{
		URL: "https://youtube.com/watch?v=abc123",
		Ladder: ladder.Build([]ladder.FormatEntry{
			{FormatID: "137", Descriptor: "1920x1080 mp4"},
		}),
	}
}

func TestPutTake(t *testing.T) {
	c, clock := newTestCache(t, Options{})

	id := c.Put(sampleEntry())
	_, err := uuid.Parse(id)
	require.NoError(t, err, "correlation id should be a UUID")

	got, err := c.Take(id)
	require.NoError(t, err)
	assert.Equal(t, "https://youtube.com/watch?v=abc123", got.URL)
	assert.Equal(t, clock.Now(), got.CreatedAt)
	formatID, ok := got.Ladder.Get(ladder.Label1080p)
	assert.True(t, ok)
	assert.Equal(t, "137", formatID)
}

func TestTake_SingleUse(t *testing.T) {
	c, _ := newTestCache(t, Options{})

	id := c.Put(sampleEntry())
	_, err := c.Take(id)
	require.NoError(t, err)

	_, err = c.Take(id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, c.Len())
}

func TestTake_Unknown(t *testing.T) {
	c, _ := newTestCache(t, Options{})

	for _, id := range []string{"", "nope", uuid.NewString()} {
		_, err := c.Take(id)
		assert.ErrorIs(t, err, ErrNotFound, "id %q", id)
	}
}

func TestTake_Expired(t *testing.T) {
	c, clock := newTestCache(t, Options{TTL: time.Minute})

	id := c.Put(sampleEntry())
	clock.Advance(time.Minute)

	_, err := c.Take(id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, c.Len(), "expired entry should be dropped on take")
}

func TestPut_UniqueIDs(t *testing.T) {
	c, _ := newTestCache(t, Options{MaxEntries: 10000})

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := c.Put(sampleEntry())
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestPut_EvictsOldestAtCapacity(t *testing.T) {
	c, _ := newTestCache(t, Options{MaxEntries: 3})

	ids := make([]string, 4)
	for i := range ids {
		e := sampleEntry()
		e.URL = fmt.Sprintf("https://youtu.be/v%d", i)
		ids[i] = c.Put(e)
	}

	assert.Equal(t, 3, c.Len())
	_, err := c.Take(ids[0])
	assert.ErrorIs(t, err, ErrNotFound, "oldest entry should be evicted")
	for _, id := range ids[1:] {
		_, err := c.Take(id)
		assert.NoError(t, err)
	}
}

func TestSweep(t *testing.T) {
	c, clock := newTestCache(t, Options{TTL: time.Minute})

	c.Put(sampleEntry())
	clock.Advance(30 * time.Second)
	fresh := c.Put(sampleEntry())
	taken := c.Put(sampleEntry())
	_, err := c.Take(taken)
	require.NoError(t, err)

	clock.Advance(45 * time.Second)
	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())

	_, err = c.Take(fresh)
	assert.NoError(t, err)
}

func TestSweeper_RunsInBackground(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := New(Options{TTL: time.Minute, SweepInterval: 5 * time.Millisecond, Now: clock.Now})
	defer c.Close()

	c.Put(sampleEntry())
	clock.Advance(2 * time.Minute)

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestClose_Idempotent(t *testing.T) {
	c := New(Options{SweepInterval: time.Millisecond})
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestConcurrentPutTake(t *testing.T) {
	c, _ := newTestCache(t, Options{MaxEntries: 10000})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				id := c.Put(sampleEntry())
				if _, err := c.Take(id); err != nil {
					t.Errorf("Take(%s) error = %v", id, err)
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, c.Len())
}
