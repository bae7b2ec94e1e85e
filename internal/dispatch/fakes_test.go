package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"vidlink/internal/ladder"
	"vidlink/internal/session"
	"vidlink/internal/storage"
	"vidlink/internal/ytdlp"
)

type sent struct {
	ChatID int64
	Ref    MessageRef
	Msg    Message
}

type edited struct {
	Ref MessageRef
	Msg Message
}

type fakeTransport struct {
	mu       sync.Mutex
	nextID   int
	sent     []sent
	edited   []edited
	deleted  []MessageRef
	failEdit bool
}

func (f *fakeTransport) Send(_ context.Context, chatID int64, msg Message) (MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	ref := MessageRef{ChatID: chatID, MessageID: f.nextID}
	f.sent = append(f.sent, sent{ChatID: chatID, Ref: ref, Msg: msg})
	return ref, nil
}

func (f *fakeTransport) Edit(_ context.Context, ref MessageRef, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEdit {
		return errors.New("message can't be edited")
	}
	f.edited = append(f.edited, edited{Ref: ref, Msg: msg})
	return nil
}

func (f *fakeTransport) Delete(_ context.Context, ref MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *fakeTransport) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, s := range f.sent {
		out[i] = s.Msg.Text
	}
	return out
}

func (f *fakeTransport) last() sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

type resolveCall struct {
	URL, Selector string
}

type fakeExtractor struct {
	mu         sync.Mutex
	formats    []ladder.FormatEntry
	listErr    error
	listCalls  []string
	link       string
	resolveErr error
	resolves   []resolveCall
	gate       chan struct{}
}

func (f *fakeExtractor) ListFormats(_ context.Context, url string) ([]ladder.FormatEntry, error) {
	f.mu.Lock()
	f.listCalls = append(f.listCalls, url)
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return f.formats, f.listErr
}

func (f *fakeExtractor) ResolveDirectLink(_ context.Context, url, selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolves = append(f.resolves, resolveCall{URL: url, Selector: selector})
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	return f.link, nil
}

type fakeMetadata struct {
	meta *ytdlp.Metadata
	err  error
}

func (f *fakeMetadata) FetchMetadata(context.Context, string) (*ytdlp.Metadata, error) {
	return f.meta, f.err
}

const shortLink = "https://tinyurl.com/vidlink1"

// fakeShortener returns shortLink, or the input unchanged when down.
type fakeShortener struct {
	down bool
}

func (f *fakeShortener) Shorten(_ context.Context, longURL string) string {
	if f.down {
		return longURL
	}
	return shortLink
}

// brokenPrefs fails every preference read.
type brokenPrefs struct {
	storage.Store
}

func (brokenPrefs) GetPreference(context.Context, int64, string, string) (string, error) {
	return "", errors.New("disk on fire")
}

type harness struct {
	d         *Dispatcher
	transport *fakeTransport
	extractor *fakeExtractor
	metadata  *fakeMetadata
	shortener *fakeShortener
	sessions  *session.Cache
	store     storage.Store
	logs      *observer.ObservedLogs
}

var sampleListing = []ladder.FormatEntry{
	{FormatID: "137", Descriptor: "1920x1080 mp4"},
	{FormatID: "18", Descriptor: "640x360 mp4"},
	{FormatID: "249", Descriptor: "audio only DRC"},
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()

	store, err := storage.NewJSONStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sessions := session.New(session.Options{SweepInterval: -1})
	t.Cleanup(func() { _ = sessions.Close() })

	core, logs := observer.New(zap.DebugLevel)
	h := &harness{
		transport: &fakeTransport{},
		extractor: &fakeExtractor{
			formats: sampleListing,
			link:    "https://rr1.googlevideo.com/videoplayback?itag=18&sig=abc",
		},
		metadata:  &fakeMetadata{err: errors.New("no metadata")},
		shortener: &fakeShortener{},
		sessions:  sessions,
		store:     store,
		logs:      logs,
	}

	opts := Options{
		Transport:   h.transport,
		Extractor:   h.extractor,
		Metadata:    h.metadata,
		Shortener:   h.shortener,
		Sessions:    h.sessions,
		Preferences: store,
		History:     store,
		Logger:      zap.New(core),
	}
	for _, m := range mutate {
		m(&opts)
	}

	h.d, err = New(opts)
	require.NoError(t, err)
	return h
}
