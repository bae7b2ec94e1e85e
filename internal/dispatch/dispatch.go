// Package dispatch drives one chat event through the link pipeline:
// validation, format listing, the quality prompt, resolution and delivery.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"vidlink/internal/ladder"
	"vidlink/internal/paginate"
	"vidlink/internal/session"
	"vidlink/internal/storage"
	"vidlink/internal/ytdlp"
)

// DefaultMetadataTimeout bounds the optional metadata lookup so it never
// delays delivery for long.
const DefaultMetadataTimeout = 15 * time.Second

// DefaultMetadataGrace is how long a resolved link waits for a metadata
// lookup that is still running.
const DefaultMetadataGrace = 2 * time.Second

// MessageRef identifies a sent chat message.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Button is one inline keyboard button.
type Button struct {
	Text string
	Data string
}

// Message is an outbound chat message. A nil Keyboard sends or leaves none.
type Message struct {
	Text     string
	Keyboard [][]Button
}

// Transport delivers messages to the chat service.
type Transport interface {
	Send(ctx context.Context, chatID int64, msg Message) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, msg Message) error
	Delete(ctx context.Context, ref MessageRef) error
}

// Extractor lists formats and resolves direct media links.
type Extractor interface {
	ListFormats(ctx context.Context, url string) ([]ladder.FormatEntry, error)
	ResolveDirectLink(ctx context.Context, url, selector string) (string, error)
}

// Shortener shortens a link, returning the input on failure.
type Shortener interface {
	Shorten(ctx context.Context, longURL string) string
}

// Sessions holds pending format prompts.
type Sessions interface {
	Put(entry session.Entry) string
	Take(id string) (session.Entry, error)
}

// TextEvent is a plain text message from a user.
type TextEvent struct {
	UserID   int64
	ChatID   int64
	UserName string
	Text     string
}

// ButtonEvent is an inline keyboard press.
type ButtonEvent struct {
	UserID    int64
	ChatID    int64
	MessageID int
	Data      string
}

// CommandEvent is a slash command. Args is the text after the command.
type CommandEvent struct {
	UserID   int64
	ChatID   int64
	UserName string
	Command  string
	Args     string
}

// Options wires a Dispatcher. Metadata is optional; everything else is required.
type Options struct {
	Transport   Transport
	Extractor   Extractor
	Metadata    ytdlp.MetadataFetcher
	Shortener   Shortener
	Sessions    Sessions
	Preferences storage.PreferenceStore
	History     storage.HistoryStore
	Logger      *zap.Logger

	// HistoryPageSize defaults to paginate.DefaultSize.
	HistoryPageSize int
	// MetadataTimeout defaults to DefaultMetadataTimeout.
	MetadataTimeout time.Duration
	// MetadataGrace defaults to DefaultMetadataGrace.
	MetadataGrace time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Dispatcher handles chat events. It is safe for concurrent use; events of
// one user are processed one at a time.
type Dispatcher struct {
	transport   Transport
	extractor   Extractor
	metadata    ytdlp.MetadataFetcher
	shortener   Shortener
	sessions    Sessions
	preferences storage.PreferenceStore
	history     storage.HistoryStore
	logger      *zap.Logger

	pageSize        int
	metadataTimeout time.Duration
	metadataGrace   time.Duration
	now             func() time.Time

	users   keyedMutex
	formats singleflight.Group
}

// New validates opts and returns a Dispatcher.
func New(opts Options) (*Dispatcher, error) {
	var missing []error
	if opts.Transport == nil {
		missing = append(missing, errors.New("transport"))
	}
	if opts.Extractor == nil {
		missing = append(missing, errors.New("extractor"))
	}
	if opts.Shortener == nil {
		missing = append(missing, errors.New("shortener"))
	}
	if opts.Sessions == nil {
		missing = append(missing, errors.New("sessions"))
	}
	if opts.Preferences == nil {
		missing = append(missing, errors.New("preferences"))
	}
	if opts.History == nil {
		missing = append(missing, errors.New("history"))
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("dispatch: missing dependencies: %w", errors.Join(missing...))
	}

	d := &Dispatcher{
		transport:       opts.Transport,
		extractor:       opts.Extractor,
		metadata:        opts.Metadata,
		shortener:       opts.Shortener,
		sessions:        opts.Sessions,
		preferences:     opts.Preferences,
		history:         opts.History,
		logger:          opts.Logger,
		pageSize:        opts.HistoryPageSize,
		metadataTimeout: opts.MetadataTimeout,
		metadataGrace:   opts.MetadataGrace,
		now:             opts.Now,
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	if d.pageSize <= 0 {
		d.pageSize = paginate.DefaultSize
	}
	if d.metadataTimeout <= 0 {
		d.metadataTimeout = DefaultMetadataTimeout
	}
	if d.metadataGrace <= 0 {
		d.metadataGrace = DefaultMetadataGrace
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d, nil
}

// serve runs fn with the user's lock held. A panic in fn is logged and
// answered with the generic failure message.
func (d *Dispatcher) serve(ctx context.Context, kind string, userID, chatID int64, fn func(context.Context, *zap.Logger)) {
	logger := d.logger.With(
		zap.String("event", kind),
		zap.Int64("user_id", userID),
		zap.Int64("chat_id", chatID),
	)

	unlock := d.users.Lock(userID)
	defer unlock()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panicked", zap.Any("panic", r), zap.Stack("stack"))
			d.send(ctx, logger, chatID, Message{Text: msgGeneric})
		}
	}()

	fn(ctx, logger)
}

func (d *Dispatcher) send(ctx context.Context, logger *zap.Logger, chatID int64, msg Message) (MessageRef, bool) {
	ref, err := d.transport.Send(ctx, chatID, msg)
	if err != nil {
		logger.Warn("send message failed", zap.Error(err))
		return MessageRef{}, false
	}
	return ref, true
}

func (d *Dispatcher) edit(ctx context.Context, logger *zap.Logger, ref MessageRef, msg Message) bool {
	if err := d.transport.Edit(ctx, ref, msg); err != nil {
		logger.Warn("edit message failed", zap.Int("message_id", ref.MessageID), zap.Error(err))
		return false
	}
	return true
}

func (d *Dispatcher) delete(ctx context.Context, logger *zap.Logger, ref MessageRef) {
	if ref.MessageID == 0 {
		return
	}
	if err := d.transport.Delete(ctx, ref); err != nil {
		logger.Debug("delete message failed", zap.Int("message_id", ref.MessageID), zap.Error(err))
	}
}
