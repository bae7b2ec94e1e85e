package dispatch

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"vidlink/internal/ladder"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Payload
		wantErr bool
	}{
		{"selection with label", "137|c0ffee|1080p", Payload{Kind: PayloadSelection, FormatID: "137", CorrelationID: "c0ffee", Label: ladder.Label1080p}, false},
		{"selection without label", "18|c0ffee", Payload{Kind: PayloadSelection, FormatID: "18", CorrelationID: "c0ffee"}, false},
		{"audio label", "249|id|best_audio", Payload{Kind: PayloadSelection, FormatID: "249", CorrelationID: "id", Label: ladder.LabelBestAudio}, false},
		{"history", "history|3", Payload{Kind: PayloadHistory, Page: 3}, false},
		{"history negative page", "history|-1", Payload{}, true},
		{"history page overflowing int", "history|99999999999999999999", Payload{}, true},
		{"empty", "", Payload{}, true},
		{"single field", "137", Payload{}, true},
		{"too many fields", "137|id|720p|extra", Payload{}, true},
		{"empty correlation", "137||720p", Payload{}, true},
		{"unknown label", "137|id|4k", Payload{}, true},
		{"history without page", "history", Payload{}, true},
		{"history non-numeric", "history|next", Payload{}, true},
		{"history extra field", "history|1|2", Payload{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePayload(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrBadPayload) {
					t.Fatalf("ParsePayload(%q) error = %v, want ErrBadPayload", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePayload(%q) error = %v", tt.in, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParsePayload(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	sel := EncodeSelection("137", "abc", ladder.Label1080p)
	if sel != "137|abc|1080p" {
		t.Errorf("EncodeSelection = %q", sel)
	}
	if got := EncodeSelection("18", "abc", ""); got != "18|abc" {
		t.Errorf("EncodeSelection without label = %q", got)
	}

	p, err := ParsePayload(EncodeHistory(4))
	if err != nil || p.Kind != PayloadHistory || p.Page != 4 {
		t.Errorf("history round trip = %+v, %v", p, err)
	}
}

func TestPayloadFitsCallbackLimit(t *testing.T) {
	// Inline keyboard callback data is capped at 64 bytes.
	data := EncodeSelection("299-drc", "0b6e5f8c-6c1a-4f9e-9a43-3f2d1c0b9a87", ladder.LabelBestAudio)
	if len(data) > 64 {
		t.Errorf("payload is %d bytes: %q", len(data), data)
	}
}
