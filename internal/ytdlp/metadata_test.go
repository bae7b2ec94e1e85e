package ytdlp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/option"

	"vidlink/internal/retry"
)

const sampleInfo = `{
  "id": "abc123",
  "title": "Test Video",
  "description": "A description",
  "duration": 212.5,
  "uploader": "",
  "channel": "Test Channel"
}`

func TestParseMetadata(t *testing.T) {
	meta, err := parseMetadata([]byte(sampleInfo))
	if err != nil {
		t.Fatalf("parseMetadata() error = %v", err)
	}
	if meta.Title != "Test Video" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.Duration != 212500*time.Millisecond {
		t.Errorf("Duration = %v", meta.Duration)
	}
	if meta.Uploader != "Test Channel" {
		t.Errorf("Uploader = %q, want channel fallback", meta.Uploader)
	}
}

func TestParseMetadata_Invalid(t *testing.T) {
	for _, in := range []string{"not json", `{"id":"x"}`} {
		if _, err := parseMetadata([]byte(in)); err == nil {
			t.Errorf("parseMetadata(%q) expected error", in)
		}
	}
}

func TestClient_FetchMetadata(t *testing.T) {
	path := writeScript(t, `cat <<'EOF'
`+sampleInfo+`
EOF
`)

	meta, err := testClient(path).FetchMetadata(context.Background(), "https://youtu.be/abc123")
	if err != nil {
		t.Fatalf("FetchMetadata() error = %v", err)
	}
	if meta.ID != "abc123" || meta.Description != "A description" {
		t.Errorf("FetchMetadata() = %+v", meta)
	}
}

type stubFetcher struct {
	meta  *Metadata
	err   error
	calls int
}

func (s *stubFetcher) FetchMetadata(ctx context.Context, url string) (*Metadata, error) {
	s.calls++
	return s.meta, s.err
}

func TestMetadataChain(t *testing.T) {
	failing := &stubFetcher{err: errors.New("quota exceeded")}
	working := &stubFetcher{meta: &Metadata{Title: "fallback"}}
	unused := &stubFetcher{meta: &Metadata{Title: "unused"}}

	chain := &MetadataChain{Sources: []MetadataFetcher{failing, working, unused}}
	meta, err := chain.FetchMetadata(context.Background(), "https://youtu.be/abc123")
	if err != nil {
		t.Fatalf("FetchMetadata() error = %v", err)
	}
	if meta.Title != "fallback" {
		t.Errorf("Title = %q, want fallback", meta.Title)
	}
	if unused.calls != 0 {
		t.Error("chain kept going after a success")
	}
}

func TestMetadataChain_AllFail(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	chain := &MetadataChain{Sources: []MetadataFetcher{&stubFetcher{err: errA}, &stubFetcher{err: errB}}}

	_, err := chain.FetchMetadata(context.Background(), "u")
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("error = %v, want both source errors", err)
	}

	if _, err := (&MetadataChain{}).FetchMetadata(context.Background(), "u"); err == nil {
		t.Error("empty chain should fail")
	}
}

func TestNewAPIMetadata(t *testing.T) {
	if _, err := NewAPIMetadata(context.Background(), ""); err == nil {
		t.Error("NewAPIMetadata() with empty key should fail")
	}
}

func TestAPIMetadata_FetchMetadata(t *testing.T) {
	var gotPath, gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotID = r.URL.Query().Get("id")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"id":"abc123","snippet":{"title":"API Title","description":"D","channelTitle":"Chan"},"contentDetails":{"duration":"PT3M5S"}}]}`))
	}))
	defer srv.Close()

	api, err := NewAPIMetadata(context.Background(), "test-key",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewAPIMetadata() error = %v", err)
	}

	meta, err := api.FetchMetadata(context.Background(), "https://www.youtube.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("FetchMetadata() error = %v", err)
	}
	if !strings.HasSuffix(gotPath, "/videos") || gotID != "abc123" {
		t.Errorf("request path=%q id=%q", gotPath, gotID)
	}
	if meta.Title != "API Title" || meta.Uploader != "Chan" || meta.Duration != 185*time.Second {
		t.Errorf("FetchMetadata() = %+v", meta)
	}
}

func TestAPIMetadata_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	api, err := NewAPIMetadata(context.Background(), "test-key",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatal(err)
	}
	api.RetryConfig = &retry.Config{MaxRetries: 0}

	if _, err := api.FetchMetadata(context.Background(), "https://youtu.be/abc123"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
	if _, err := api.FetchMetadata(context.Background(), "https://instagram.com/reel/x"); !errors.Is(err, ErrNotYouTube) {
		t.Errorf("error = %v, want ErrNotYouTube", err)
	}
}

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"PT4M13S", 4*time.Minute + 13*time.Second},
		{"PT1H", time.Hour},
		{"P1DT2S", 24*time.Hour + 2*time.Second},
		{"PT0S", 0},
		{"garbage", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseISODuration(tt.in); got != tt.want {
			t.Errorf("parseISODuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
