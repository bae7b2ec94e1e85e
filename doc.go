// Package vidlink turns YouTube and Instagram video links into short direct
// download links.
//
// Overview
//
// A user sends a link. vidlink validates and normalizes it, lists the
// formats yt-dlp offers, reduces them to a fixed quality ladder (144p to
// 1080p plus best audio) and asks the user to pick one. The chosen format is
// resolved to a direct media URL, shortened through TinyURL and recorded in
// the user's history. A user may store a default quality, in which case the
// prompt is skipped whenever the ladder offers that label.
//
// Instagram links have no ladder: they resolve straight to the best format.
//
// Packages
//
//   - internal/link: link validation, normalization and platform detection
//   - internal/ladder: the quality ladder built from a yt-dlp listing
//   - internal/ytdlp: the yt-dlp subprocess and metadata sources
//   - internal/session: pending selections with TTL and LRU eviction
//   - internal/storage: preferences and history on JSON files or SQLite
//   - internal/shortener: the TinyURL client
//   - internal/httpclient: outbound HTTP with retry and circuit breaking
//   - internal/dispatch: the conversation flow behind the bot
//   - internal/telegram: the Telegram transport
//   - internal/paginate: history paging
//   - internal/config, internal/logging: configuration and zap setup
//
// Configuration
//
// Settings load from, in increasing priority, defaults, a config file
// (./vidlink.yaml or ~/.config/vidlink/vidlink.yaml, JSON also accepted) and
// environment variables prefixed with VIDLINK_. The bot token is read from
// TELEGRAM_BOT_TOKEN or VIDLINK_TELEGRAM_TOKEN.
//
// Error Handling
//
// Sentinel errors and error types from the internal packages are re-exported
// here so callers can use errors.Is and errors.As without reaching into
// internal/:
//
//	var ee *vidlink.ExtractionError
//	if errors.As(err, &ee) {
//		log.Printf("yt-dlp %s failed: %s", ee.Op, ee.Stderr)
//	}
//
// Dependencies
//
// vidlink requires yt-dlp in PATH or at VIDLINK_YTDLP_PATH.
package vidlink
