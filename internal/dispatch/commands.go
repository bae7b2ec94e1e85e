package dispatch

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"vidlink/internal/ladder"
	"vidlink/internal/storage"
)

// Commands understood by HandleCommand.
const (
	CmdStart         = "start"
	CmdHelp          = "help"
	CmdHistory       = "history"
	CmdSetDefault    = "setdefault"
	CmdGetDefault    = "getdefault"
	CmdDeleteDefault = "deletedefault"
)

// HandleCommand handles a slash command. The command name may carry the
// leading slash and a @botname suffix.
func (d *Dispatcher) HandleCommand(ctx context.Context, ev CommandEvent) {
	d.serve(ctx, "command", ev.UserID, ev.ChatID, func(ctx context.Context, logger *zap.Logger) {
		cmd := normalizeCommand(ev.Command)
		logger = logger.With(zap.String("command", cmd))

		switch cmd {
		case CmdStart, CmdHelp:
			d.send(ctx, logger, ev.ChatID, Message{Text: greeting(ev.UserName)})
		case CmdHistory:
			d.showHistory(ctx, logger, ev.UserID, ev.ChatID, 0, nil)
		case CmdSetDefault:
			d.setDefault(ctx, logger, ev)
		case CmdGetDefault:
			d.getDefault(ctx, logger, ev)
		case CmdDeleteDefault:
			d.deleteDefault(ctx, logger, ev)
		default:
			d.send(ctx, logger, ev.ChatID, Message{Text: msgUnknownCommand})
		}
	})
}

func normalizeCommand(cmd string) string {
	cmd = strings.TrimPrefix(strings.TrimSpace(cmd), "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}

func (d *Dispatcher) setDefault(ctx context.Context, logger *zap.Logger, ev CommandEvent) {
	args := strings.Fields(ev.Args)
	if len(args) == 0 {
		d.send(ctx, logger, ev.ChatID, Message{Text: msgSetDefaultUsage})
		return
	}
	label, err := ladder.ParseLabel(args[0])
	if err != nil {
		d.send(ctx, logger, ev.ChatID, Message{Text: invalidQuality()})
		return
	}
	if err := d.preferences.SetPreference(ctx, ev.UserID, storage.KeyDefaultQuality, string(label)); err != nil {
		logger.Error("save default quality failed", zap.Error(err))
		d.send(ctx, logger, ev.ChatID, Message{Text: msgGeneric})
		return
	}
	d.send(ctx, logger, ev.ChatID, Message{Text: defaultSet(label)})
}

func (d *Dispatcher) getDefault(ctx context.Context, logger *zap.Logger, ev CommandEvent) {
	value, err := d.preferences.GetPreference(ctx, ev.UserID, storage.KeyDefaultQuality, noDefaultSet)
	if err != nil {
		logger.Error("read default quality failed", zap.Error(err))
		d.send(ctx, logger, ev.ChatID, Message{Text: msgGeneric})
		return
	}
	d.send(ctx, logger, ev.ChatID, Message{Text: currentDefault(value)})
}

func (d *Dispatcher) deleteDefault(ctx context.Context, logger *zap.Logger, ev CommandEvent) {
	err := d.preferences.DeletePreference(ctx, ev.UserID, storage.KeyDefaultQuality)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		d.send(ctx, logger, ev.ChatID, Message{Text: msgNoDefault})
	case err != nil:
		logger.Error("delete default quality failed", zap.Error(err))
		d.send(ctx, logger, ev.ChatID, Message{Text: msgGeneric})
	default:
		d.send(ctx, logger, ev.ChatID, Message{Text: msgDefaultDeleted})
	}
}
