// Package link validates and normalizes inbound video links.
package link

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidLink indicates the input is not a supported video link.
var ErrInvalidLink = errors.New("link: invalid or unsupported link")

// Platform identifies which provider serves a link.
type Platform int

const (
	// PlatformYouTube is the default provider.
	PlatformYouTube Platform = iota
	// PlatformInstagram links skip format listing entirely.
	PlatformInstagram
)

// String returns the platform name.
func (p Platform) String() string {
	switch p {
	case PlatformInstagram:
		return "instagram"
	default:
		return "youtube"
	}
}

var (
	youtubeRegex   = regexp.MustCompile(`^(https?://)?(www\.|m\.)?(youtube\.com|youtu\.be)/.+`)
	instagramRegex = regexp.MustCompile(`^(https?://)?(www\.)?instagram\.com/.+`)

	// shortsRegex captures prefix, video id, query and fragment of a shorts link.
	shortsRegex = regexp.MustCompile(`^(.*youtube\.com)/shorts/([A-Za-z0-9_-]+)/?(?:\?([^#]*))?(#.*)?$`)

	videoIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{6,}$`)
)

const (
	shortsPath = "youtube.com/shorts/"
	watchPath  = "youtube.com/watch?v="
)

// Validate reports whether raw is a link the pipeline can serve.
// Only YouTube and Instagram hosts are accepted.
func Validate(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return false
	}
	return youtubeRegex.MatchString(s) || instagramRegex.MatchString(s)
}

// Normalize rewrites a YouTube Shorts link to the canonical watch link.
// Any other input is returned unchanged apart from surrounding whitespace.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.Contains(s, shortsPath) {
		return s
	}

	if m := shortsRegex.FindStringSubmatch(s); m != nil {
		out := m[1] + "/watch?v=" + m[2]
		if m[3] != "" {
			out += "&" + m[3]
		}
		return out + m[4]
	}

	// Unusual id characters: fall back to a plain path rewrite.
	return strings.Replace(s, shortsPath, watchPath, -1)
}

// DetectPlatform reports which provider serves a normalized link.
func DetectPlatform(normalized string) Platform {
	if strings.Contains(strings.ToLower(hostOf(normalized)), "instagram.com") {
		return PlatformInstagram
	}
	return PlatformYouTube
}

// VideoID extracts the YouTube video id from a watch or youtu.be link.
func VideoID(normalized string) (string, bool) {
	u, err := url.Parse(withScheme(normalized))
	if err != nil {
		return "", false
	}

	var id string
	switch host := strings.TrimPrefix(strings.ToLower(u.Host), "www."); host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "m.youtube.com":
		id = u.Query().Get("v")
	}

	if !videoIDRegex.MatchString(id) {
		return "", false
	}
	return id, true
}

func hostOf(s string) string {
	u, err := url.Parse(withScheme(s))
	if err != nil {
		return ""
	}
	return u.Host
}

func withScheme(s string) string {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	return "https://" + s
}
