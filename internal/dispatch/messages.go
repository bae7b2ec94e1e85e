package dispatch

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"vidlink/internal/ladder"
	"vidlink/internal/storage"
	"vidlink/internal/ytdlp"
)

// User-facing texts. None of them ever carries error details.
const (
	msgInvalidLink        = "🚫 Invalid link. Please send a valid YouTube or Instagram link."
	msgFetchingFormats    = "🔍 Fetching available formats, please wait..."
	msgFetchingLink       = "🔍 Fetching your download link, please wait..."
	msgFormatsUnavailable = "⚠️ Failed to fetch available formats. Please try again."
	msgSelectFormat       = "🎥 Select the desired format for your download:"
	msgGenerating         = "📥 Generating your download link, please wait..."
	msgInvalidSelection   = "⚠️ Error: Invalid selection. Please try again."
	msgResolveFailed      = "⚠️ Could not generate a download link for this video. Please try again later."
	msgGeneric            = "❗ An unexpected error occurred. Please try again later."
	msgNoHistory          = "📜 No download history found!"
	msgEmptyHistoryPage   = "Nothing on this page."
	msgSetDefaultUsage    = "❌ Usage: /setdefault <quality>\n\nExample: /setdefault 720p or /setdefault best_audio"
	msgDefaultDeleted     = "🗑 Default quality setting has been deleted."
	msgNoDefault          = "⚠️ No default quality setting found to delete."
	msgUnknownCommand     = "❓ Unknown command. Send /help to see what I can do."
	noDefaultSet          = "None set"

	captionPrev = "⬅️ Previous"
	captionNext = "➡️ Next"

	descriptionLimit = 200
)

func greeting(name string) string {
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("👋 Hi %s! Send me a YouTube or Instagram link, and I'll generate a direct download link for you!\n\n"+
		"/history shows your recent downloads\n"+
		"/setdefault <quality> skips the format prompt\n"+
		"/getdefault shows your default quality\n"+
		"/deletedefault removes it", name)
}

func usingDefault(label ladder.Label) string {
	return fmt.Sprintf("🎥 Using your default preference: %s. Generating download link...", label.Caption())
}

func invalidQuality() string {
	labels := ladder.AllLabels()
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = string(l)
	}
	return "⚠️ Invalid quality. Please choose one of the following: " + strings.Join(names, ", ")
}

func defaultSet(label ladder.Label) string {
	return fmt.Sprintf("✅ Default quality set to %s.", label)
}

func currentDefault(value string) string {
	return fmt.Sprintf("📋 Your default download quality is: %s.", value)
}

func delivery(short string, meta *ytdlp.Metadata) string {
	var b strings.Builder
	if meta != nil {
		fmt.Fprintf(&b, "🎬 %s\n", meta.Title)
		if meta.Uploader != "" {
			fmt.Fprintf(&b, "👤 %s\n", meta.Uploader)
		}
		if meta.Duration > 0 {
			fmt.Fprintf(&b, "⏱ %s\n", formatDuration(meta.Duration))
		}
		if d := truncate(strings.TrimSpace(meta.Description), descriptionLimit); d != "" {
			fmt.Fprintf(&b, "\n%s\n", d)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "🎉 Here is your direct download link:\n🔗 %s\n\n📥 Open it in your browser or a download manager.", short)
	return b.String()
}

func historyText(entries []storage.HistoryEntry, page, pages int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📜 Your Download History (Page %d/%d):\n\n", page+1, pages)
	if len(entries) == 0 {
		b.WriteString(msgEmptyHistoryPage)
		return b.String()
	}
	for _, e := range entries {
		fmt.Fprintf(&b, "🔗 URL: %s\n🎥 Format: %s\n📅 Time: %s\n\n",
			e.URL, e.Format, e.Timestamp.Local().Format("2006-01-02 15:04:05"))
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatDuration renders m:ss or h:mm:ss.
func formatDuration(d time.Duration) string {
	total := int(d.Round(time.Second) / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + "…"
}
