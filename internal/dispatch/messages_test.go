package dispatch

import (
	"strings"
	"testing"
	"time"

	"vidlink/internal/ytdlp"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{9 * time.Second, "0:09"},
		{212 * time.Second, "3:32"},
		{time.Hour + 2*time.Minute, "1:02:00"},
		{1500 * time.Millisecond, "0:02"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("ééééé", 3); got != "ééé…" {
		t.Errorf("truncate runes = %q", got)
	}
}

func TestDelivery(t *testing.T) {
	plain := delivery("https://tinyurl.com/a", nil)
	want := "🎉 Here is your direct download link:\n🔗 https://tinyurl.com/a\n\n📥 Open it in your browser or a download manager."
	if plain != want {
		t.Errorf("delivery(nil) = %q", plain)
	}

	withMeta := delivery("https://tinyurl.com/a", &ytdlp.Metadata{Title: "T", Description: strings.Repeat("x", 500)})
	if !strings.HasPrefix(withMeta, "🎬 T\n") || !strings.HasSuffix(withMeta, want) {
		t.Errorf("delivery(meta) = %q", withMeta)
	}
	if strings.Count(withMeta, "x") != descriptionLimit {
		t.Errorf("description not truncated to %d runes", descriptionLimit)
	}
}
