package dispatch

import (
	"context"

	"go.uber.org/zap"

	"vidlink/internal/paginate"
)

// HandleButton handles an inline keyboard press: either a format choice
// for a pending prompt or history navigation.
func (d *Dispatcher) HandleButton(ctx context.Context, ev ButtonEvent) {
	d.serve(ctx, "button", ev.UserID, ev.ChatID, func(ctx context.Context, logger *zap.Logger) {
		p, err := ParsePayload(ev.Data)
		if err != nil {
			logger.Warn("rejecting button press", zap.String("data", ev.Data), zap.Error(err))
			d.send(ctx, logger, ev.ChatID, Message{Text: msgInvalidSelection})
			return
		}

		prompt := MessageRef{ChatID: ev.ChatID, MessageID: ev.MessageID}
		switch p.Kind {
		case PayloadHistory:
			d.showHistory(ctx, logger, ev.UserID, ev.ChatID, p.Page, &prompt)
		default:
			d.handleSelection(ctx, logger, ev, p, prompt)
		}
	})
}

func (d *Dispatcher) handleSelection(ctx context.Context, logger *zap.Logger, ev ButtonEvent, p Payload, prompt MessageRef) {
	req := newRequest(logger, AwaitingUserChoice)

	entry, err := d.sessions.Take(p.CorrelationID)
	if err != nil {
		d.fail(ctx, req, ev.ChatID, msgInvalidSelection, err)
		return
	}
	req.logger = req.logger.With(zap.String("url", entry.URL))

	// Only format ids the prompt offered are passed to the extractor.
	label, ok := entry.Ladder.LabelFor(p.FormatID)
	if !ok {
		d.fail(ctx, req, ev.ChatID, msgInvalidSelection, ErrBadPayload)
		return
	}
	if p.Label != "" && p.Label != label {
		req.logger.Debug("payload label disagrees with ladder",
			zap.String("payload", string(p.Label)), zap.String("ladder", string(label)))
	}

	notice := prompt
	if !d.edit(ctx, req.logger, prompt, Message{Text: msgGenerating}) {
		notice, _ = d.send(ctx, req.logger, ev.ChatID, Message{Text: msgGenerating})
	}

	req.to(Resolving)
	d.resolve(ctx, req, ev.UserID, ev.ChatID, entry.URL, p.FormatID, label, notice)
}

// showHistory renders one history page. With edit set the existing
// message is replaced, otherwise a new one is sent.
func (d *Dispatcher) showHistory(ctx context.Context, logger *zap.Logger, userID, chatID int64, page int, edit *MessageRef) {
	entries, err := d.history.ListHistory(ctx, userID)
	if err != nil {
		logger.Warn("list history failed", zap.Error(err))
		d.send(ctx, logger, chatID, Message{Text: msgGeneric})
		return
	}

	var msg Message
	if len(entries) == 0 {
		msg = Message{Text: msgNoHistory}
	} else {
		p := paginate.Slice(entries, page, d.pageSize)
		msg = Message{
			Text:     historyText(p.Items, p.Index, p.Count()),
			Keyboard: historyKeyboard(p.Index, p.HasPrev, p.HasNext),
		}
	}

	if edit != nil && d.edit(ctx, logger, *edit, msg) {
		return
	}
	d.send(ctx, logger, chatID, msg)
}

// historyKeyboard puts the navigation buttons in a single row, or returns
// nil when there is nowhere to go.
func historyKeyboard(page int, hasPrev, hasNext bool) [][]Button {
	var row []Button
	if hasPrev {
		row = append(row, Button{Text: captionPrev, Data: EncodeHistory(page - 1)})
	}
	if hasNext {
		row = append(row, Button{Text: captionNext, Data: EncodeHistory(page + 1)})
	}
	if len(row) == 0 {
		return nil
	}
	return [][]Button{row}
}
