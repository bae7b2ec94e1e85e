package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vidlink/internal/config"
	"vidlink/internal/dispatch"
	"vidlink/internal/session"
	"vidlink/internal/telegram"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	if err := a.cfg.RequireToken(); err != nil {
		return fmt.Errorf("%w (set %s)", err, config.TokenEnv)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	extractor := a.extractor()
	if err := extractor.CheckInstalled(ctx); err != nil {
		a.logger.Warn("yt-dlp check failed, link requests will fail", zap.Error(err))
	}

	store, err := a.openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	sessions := session.New(session.Options{
		TTL:           a.cfg.Session.TTL,
		MaxEntries:    a.cfg.Session.MaxEntries,
		SweepInterval: a.cfg.Session.SweepInterval,
		Logger:        a.logger.Named("session"),
	})
	defer sessions.Close()

	bot, err := telegram.New(a.cfg.Telegram.Token, telegram.Options{
		PollTimeout: a.cfg.Telegram.PollTimeout,
		Debug:       a.cfg.Telegram.Debug,
		Logger:      a.logger.Named("telegram"),
	})
	if err != nil {
		return err
	}

	d, err := dispatch.New(dispatch.Options{
		Transport:   bot,
		Extractor:   extractor,
		Metadata:    a.metadata(ctx, extractor),
		Shortener:   a.shortener(),
		Sessions:    sessions,
		Preferences: store,
		History:     store,
		Logger:      a.logger.Named("dispatch"),
	})
	if err != nil {
		return err
	}

	a.logger.Info("bot started", zap.String("store", a.cfg.Store.Backend))
	err = bot.Run(ctx, d)
	a.logger.Info("bot stopped")
	return err
}
