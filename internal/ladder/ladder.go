// Package ladder reduces a raw yt-dlp format listing to a fixed quality ladder.
package ladder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Label is one rung of the quality ladder.
type Label string

// The fixed label set, lowest to highest resolution, then audio.
const (
	Label144p      Label = "144p"
	Label240p      Label = "240p"
	Label360p      Label = "360p"
	Label480p      Label = "480p"
	Label720p      Label = "720p"
	Label1080p     Label = "1080p"
	LabelBestAudio Label = "best_audio"
)

var (
	videoLabels = []Label{Label144p, Label240p, Label360p, Label480p, Label720p, Label1080p}
	allLabels   = append(append([]Label(nil), videoLabels...), LabelBestAudio)
)

// Descriptor markers recognised by Build.
const (
	markerMP4       = "mp4"
	markerWebM      = "webm"
	markerAudioOnly = "audio only"
	markerDRC       = "DRC"
)

// dimensionRegex matches WIDTHxHEIGHT tokens such as 1920x1080.
var dimensionRegex = regexp.MustCompile(`\b\d{2,5}x(\d{2,5})\b`)

// AllLabels returns the fixed label set in ladder order.
func AllLabels() []Label {
	return append([]Label(nil), allLabels...)
}

// ParseLabel parses a user-supplied label, case-insensitively.
func ParseLabel(s string) (Label, error) {
	want := Label(strings.ToLower(strings.TrimSpace(s)))
	for _, l := range allLabels {
		if l == want {
			return l, nil
		}
	}
	return "", fmt.Errorf("ladder: unknown quality %q", s)
}

// Caption is the text shown on a selection button.
func (l Label) Caption() string {
	if l == LabelBestAudio {
		return "Best Quality Audio"
	}
	return string(l)
}

// height returns the line count of a video label, or 0 for audio.
func (l Label) height() int {
	n, err := strconv.Atoi(strings.TrimSuffix(string(l), "p"))
	if err != nil {
		return 0
	}
	return n
}

// FormatEntry is one row of a yt-dlp format listing.
type FormatEntry struct {
	FormatID   string `json:"format_id"`
	Descriptor string `json:"descriptor"`
}

// Ladder maps labels to at most one format id each.
// Labels iterate in the order they were first filled.
type Ladder struct {
	ids   map[Label]string
	order []Label
}

// New returns an empty ladder.
func New() *Ladder {
	return &Ladder{ids: make(map[Label]string)}
}

// Build selects one format per label from entries, in extractor order.
//
// For each resolution label an mp4 entry always replaces the current
// candidate, so the last matching mp4 wins; a webm entry is taken only while
// the label is still empty. Any "audio only" entry fills best_audio unless
// the slot is already filled and the entry is marked DRC. A DRC entry that
// arrives first therefore keeps the slot until a non-DRC entry follows.
func Build(entries []FormatEntry) *Ladder {
	l := New()
	for _, e := range entries {
		desc := e.Descriptor
		for _, label := range videoLabels {
			if !matchesLabel(desc, label) {
				continue
			}
			switch {
			case strings.Contains(desc, markerMP4):
				l.set(label, e.FormatID)
			case strings.Contains(desc, markerWebM) && !l.Has(label):
				l.set(label, e.FormatID)
			}
		}

		if strings.Contains(desc, markerAudioOnly) {
			if !l.Has(LabelBestAudio) || !strings.Contains(desc, markerDRC) {
				l.set(LabelBestAudio, e.FormatID)
			}
		}
	}
	return l
}

// matchesLabel reports whether a descriptor describes the given resolution,
// either by its label text or by a WIDTHxHEIGHT token of the same height.
func matchesLabel(desc string, label Label) bool {
	if strings.Contains(desc, string(label)) {
		return true
	}
	want := label.height()
	for _, m := range dimensionRegex.FindAllStringSubmatch(desc, -1) {
		if h, err := strconv.Atoi(m[1]); err == nil && h == want {
			return true
		}
	}
	return false
}

func (l *Ladder) set(label Label, formatID string) {
	if _, ok := l.ids[label]; !ok {
		l.order = append(l.order, label)
	}
	l.ids[label] = formatID
}

// Get returns the format id for a label.
func (l *Ladder) Get(label Label) (string, bool) {
	if l == nil {
		return "", false
	}
	id, ok := l.ids[label]
	return id, ok
}

// Has reports whether the label is present.
func (l *Ladder) Has(label Label) bool {
	_, ok := l.Get(label)
	return ok
}

// Len returns the number of present labels.
func (l *Ladder) Len() int {
	if l == nil {
		return 0
	}
	return len(l.order)
}

// Labels returns the present labels in fill order.
func (l *Ladder) Labels() []Label {
	if l == nil {
		return nil
	}
	return append([]Label(nil), l.order...)
}

// Map returns a copy of the label to format id mapping.
func (l *Ladder) Map() map[Label]string {
	out := make(map[Label]string, l.Len())
	if l == nil {
		return out
	}
	for k, v := range l.ids {
		out[k] = v
	}
	return out
}

// LabelFor returns the label currently mapped to formatID.
func (l *Ladder) LabelFor(formatID string) (Label, bool) {
	for _, label := range l.Labels() {
		if l.ids[label] == formatID {
			return label, true
		}
	}
	return "", false
}
