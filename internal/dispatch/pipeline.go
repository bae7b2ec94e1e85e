package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vidlink/internal/ladder"
	"vidlink/internal/link"
	"vidlink/internal/session"
	"vidlink/internal/storage"
	"vidlink/internal/ytdlp"
)

// HandleText runs a text message through the link pipeline.
func (d *Dispatcher) HandleText(ctx context.Context, ev TextEvent) {
	d.serve(ctx, "text", ev.UserID, ev.ChatID, func(ctx context.Context, logger *zap.Logger) {
		d.handleLink(ctx, logger, ev)
	})
}

func (d *Dispatcher) handleLink(ctx context.Context, logger *zap.Logger, ev TextEvent) {
	req := newRequest(logger, AwaitingValidation)

	raw := strings.TrimSpace(ev.Text)
	if !link.Validate(raw) {
		d.fail(ctx, req, ev.ChatID, msgInvalidLink, link.ErrInvalidLink)
		return
	}
	url := link.Normalize(raw)
	req.logger = req.logger.With(zap.String("url", url))
	req.to(AwaitingFormats)

	if link.DetectPlatform(url) == link.PlatformInstagram {
		notice, _ := d.send(ctx, req.logger, ev.ChatID, Message{Text: msgFetchingLink})
		req.to(Resolving)
		d.resolve(ctx, req, ev.UserID, ev.ChatID, url, ytdlp.SelectorBest, "", notice)
		return
	}

	wait, _ := d.send(ctx, req.logger, ev.ChatID, Message{Text: msgFetchingFormats})
	lad, err := d.buildLadder(ctx, url)
	d.delete(ctx, req.logger, wait)
	if err != nil {
		d.fail(ctx, req, ev.ChatID, msgFormatsUnavailable, err)
		return
	}

	if label, formatID, ok := d.preferredFormat(ctx, req.logger, ev.UserID, lad); ok {
		req.to(AutoResolving)
		notice, _ := d.send(ctx, req.logger, ev.ChatID, Message{Text: usingDefault(label)})
		req.to(Resolving)
		d.resolve(ctx, req, ev.UserID, ev.ChatID, url, formatID, label, notice)
		return
	}

	req.to(AwaitingUserChoice)
	id := d.sessions.Put(session.Entry{URL: url, Ladder: lad, CreatedAt: d.now()})
	d.send(ctx, req.logger, ev.ChatID, Message{
		Text:     msgSelectFormat,
		Keyboard: selectionKeyboard(lad, id),
	})
}

// buildLadder lists formats once per URL across concurrent callers.
func (d *Dispatcher) buildLadder(ctx context.Context, url string) (*ladder.Ladder, error) {
	v, err, shared := d.formats.Do(url, func() (any, error) {
		return d.extractor.ListFormats(ctx, url)
	})
	if shared {
		d.logger.Debug("format listing shared", zap.String("url", url))
	}
	if err != nil {
		return nil, err
	}
	lad := ladder.Build(v.([]ladder.FormatEntry))
	if lad.Len() == 0 {
		return nil, ytdlp.ErrNoFormats
	}
	return lad, nil
}

// preferredFormat returns the user's stored default when lad offers it.
// Store failures degrade to the interactive prompt.
func (d *Dispatcher) preferredFormat(ctx context.Context, logger *zap.Logger, userID int64, lad *ladder.Ladder) (ladder.Label, string, bool) {
	pref, err := d.preferences.GetPreference(ctx, userID, storage.KeyDefaultQuality, "")
	if err != nil {
		logger.Warn("read default quality failed", zap.Error(err))
		return "", "", false
	}
	if pref == "" {
		return "", "", false
	}
	label, err := ladder.ParseLabel(pref)
	if err != nil {
		logger.Debug("ignoring unknown stored quality", zap.String("quality", pref))
		return "", "", false
	}
	formatID, ok := lad.Get(label)
	if !ok {
		return "", "", false
	}
	return label, formatID, true
}

// selectionKeyboard lays out one button per ladder label, two per row.
func selectionKeyboard(lad *ladder.Ladder, correlationID string) [][]Button {
	var rows [][]Button
	var row []Button
	for _, label := range lad.Labels() {
		formatID, _ := lad.Get(label)
		row = append(row, Button{
			Text: label.Caption(),
			Data: EncodeSelection(formatID, correlationID, label),
		})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

// resolve fetches the direct link and metadata concurrently, shortens the
// link, records history and delivers. notice is the "please wait" message,
// deleted once the outcome is known.
func (d *Dispatcher) resolve(ctx context.Context, req *request, userID, chatID int64, url, selector string, label ladder.Label, notice MessageRef) {
	var (
		direct string
		meta   *ytdlp.Metadata
	)

	// Metadata gets its own deadline, cut short to metadataGrace once the
	// link is in, so a slow lookup never holds back delivery.
	g, gctx := errgroup.WithContext(ctx)
	mctx, cancelMeta := context.WithTimeout(gctx, d.metadataTimeout)
	defer cancelMeta()
	var grace *time.Timer

	g.Go(func() error {
		l, err := d.extractor.ResolveDirectLink(gctx, url, selector)
		if err != nil {
			return err
		}
		direct = l
		grace = time.AfterFunc(d.metadataGrace, cancelMeta)
		return nil
	})
	if d.metadata != nil {
		g.Go(func() error {
			m, err := d.metadata.FetchMetadata(mctx, url)
			if err != nil {
				req.logger.Info("metadata unavailable, delivering link only", zap.Error(err))
				return nil
			}
			meta = m
			return nil
		})
	}
	err := g.Wait()
	if grace != nil {
		grace.Stop()
	}
	d.delete(ctx, req.logger, notice)
	if err != nil {
		d.fail(ctx, req, chatID, msgResolveFailed, err)
		return
	}

	short := d.shortener.Shorten(ctx, direct)

	format := string(label)
	if format == "" {
		format = selector
	}
	entry := storage.HistoryEntry{URL: url, Format: format, Timestamp: d.now()}
	if err := d.history.AppendHistory(ctx, userID, entry); err != nil {
		req.logger.Warn("record history failed", zap.Error(err))
	}

	req.to(Delivered)
	d.send(ctx, req.logger, chatID, Message{Text: delivery(short, meta)})
	req.logger.Info("link delivered", zap.String("format", format))
}

// fail moves req to Failed, logs cause and sends the fixed message.
func (d *Dispatcher) fail(ctx context.Context, req *request, chatID int64, userMsg string, cause error) {
	req.to(Failed)

	fields := []zap.Field{zap.Error(cause)}
	var extErr *ytdlp.ExtractionError
	if errors.As(cause, &extErr) && extErr.Stderr != "" {
		fields = append(fields, zap.String("stderr", extErr.Stderr))
	}
	req.logger.Warn("request failed", fields...)

	d.send(ctx, req.logger, chatID, Message{Text: userMsg})
}
