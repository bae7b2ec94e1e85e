// Package telegram connects the dispatcher to the Telegram Bot API using
// long polling.
package telegram

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"vidlink/internal/dispatch"
)

// DefaultPollTimeout is the long-polling timeout in seconds.
const DefaultPollTimeout = 60

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Handler receives routed chat events. *dispatch.Dispatcher implements it.
type Handler interface {
	HandleText(ctx context.Context, ev dispatch.TextEvent)
	HandleButton(ctx context.Context, ev dispatch.ButtonEvent)
	HandleCommand(ctx context.Context, ev dispatch.CommandEvent)
}

// Options configures a Bot.
type Options struct {
	// PollTimeout defaults to DefaultPollTimeout.
	PollTimeout int
	Debug       bool
	Logger      *zap.Logger
}

// Bot polls for updates and implements dispatch.Transport.
type Bot struct {
	api         API
	logger      *zap.Logger
	pollTimeout int
	wg          sync.WaitGroup
}

var _ dispatch.Transport = (*Bot)(nil)

// New authenticates with token and returns a bot.
func New(token string, opts Options) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	api.Debug = opts.Debug
	b := NewWithAPI(api, opts)
	b.logger.Info("authorized", zap.String("username", api.Self.UserName))
	return b, nil
}

// NewWithAPI wraps an existing API client.
func NewWithAPI(api API, opts Options) *Bot {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Bot{api: api, logger: opts.Logger, pollTimeout: opts.PollTimeout}
}

// Run polls for updates and hands each one to h in its own goroutine. It
// returns once ctx is cancelled and every in-flight handler has finished.
// Handlers run on a context that outlives ctx so work already accepted
// completes; their external calls carry their own timeouts.
func (b *Bot) Run(ctx context.Context, h Handler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)

	handlerCtx := context.WithoutCancel(ctx)
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("stopping, waiting for in-flight updates")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.route(handlerCtx, h, upd)
			}()
		}
	}
}

func (b *Bot) route(ctx context.Context, h Handler, upd tgbotapi.Update) {
	switch {
	case upd.CallbackQuery != nil:
		cq := upd.CallbackQuery
		if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
			b.logger.Debug("answer callback failed", zap.Error(err))
		}
		if cq.Message == nil || cq.Message.Chat == nil {
			return
		}
		ev := dispatch.ButtonEvent{
			UserID:    cq.Message.Chat.ID,
			ChatID:    cq.Message.Chat.ID,
			MessageID: cq.Message.MessageID,
			Data:      cq.Data,
		}
		if cq.From != nil {
			ev.UserID = cq.From.ID
		}
		h.HandleButton(ctx, ev)

	case upd.Message != nil && upd.Message.Chat != nil:
		m := upd.Message
		userID, name := m.Chat.ID, ""
		if m.From != nil {
			userID, name = m.From.ID, m.From.FirstName
		}

		if m.IsCommand() {
			h.HandleCommand(ctx, dispatch.CommandEvent{
				UserID:   userID,
				ChatID:   m.Chat.ID,
				UserName: name,
				Command:  m.Command(),
				Args:     m.CommandArguments(),
			})
			return
		}
		if m.Text == "" {
			return
		}
		h.HandleText(ctx, dispatch.TextEvent{
			UserID:   userID,
			ChatID:   m.Chat.ID,
			UserName: name,
			Text:     m.Text,
		})
	}
}

// Send posts a new message.
func (b *Bot) Send(_ context.Context, chatID int64, msg dispatch.Message) (dispatch.MessageRef, error) {
	cfg := tgbotapi.NewMessage(chatID, msg.Text)
	cfg.DisableWebPagePreview = true
	if len(msg.Keyboard) > 0 {
		cfg.ReplyMarkup = keyboard(msg.Keyboard)
	}
	sent, err := b.api.Send(cfg)
	if err != nil {
		return dispatch.MessageRef{}, fmt.Errorf("telegram: send: %w", err)
	}
	return dispatch.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// Edit replaces a message's text. A nil keyboard removes any buttons.
func (b *Bot) Edit(_ context.Context, ref dispatch.MessageRef, msg dispatch.Message) error {
	var cfg tgbotapi.EditMessageTextConfig
	if len(msg.Keyboard) > 0 {
		cfg = tgbotapi.NewEditMessageTextAndMarkup(ref.ChatID, ref.MessageID, msg.Text, keyboard(msg.Keyboard))
	} else {
		cfg = tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, msg.Text)
	}
	cfg.DisableWebPagePreview = true
	if _, err := b.api.Request(cfg); err != nil {
		return fmt.Errorf("telegram: edit: %w", err)
	}
	return nil
}

// Delete removes a message.
func (b *Bot) Delete(_ context.Context, ref dispatch.MessageRef) error {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID)); err != nil {
		return fmt.Errorf("telegram: delete: %w", err)
	}
	return nil
}

func keyboard(rows [][]dispatch.Button) tgbotapi.InlineKeyboardMarkup {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...)
}
