package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vidlink/internal/config"
	"vidlink/internal/httpclient"
	"vidlink/internal/logging"
	"vidlink/internal/shortener"
	"vidlink/internal/storage"
	"vidlink/internal/ytdlp"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "vidlink",
		Short:         "Turn YouTube and Instagram links into direct download links",
		Long:          "vidlink lists the available qualities of a video, resolves a direct media URL with yt-dlp and shortens it. The serve command runs the Telegram bot.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default: ./vidlink.yaml or ~/.config/vidlink/vidlink.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	root.AddCommand(
		newServeCmd(a),
		newFormatsCmd(a),
		newLinkCmd(a),
		newHistoryCmd(a),
		newPrefCmd(a),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) extractor() *ytdlp.Client {
	policy := a.cfg.RetryPolicy()
	return &ytdlp.Client{
		Path:        a.cfg.Ytdlp.Path,
		Timeout:     a.cfg.Ytdlp.Timeout,
		CookiesFile: a.cfg.Ytdlp.CookiesFile,
		RetryConfig: &policy,
		Logger:      a.logger.Named("ytdlp"),
	}
}

// metadata prefers the Data API when a key is configured and falls back to
// yt-dlp.
func (a *app) metadata(ctx context.Context, extractor *ytdlp.Client) ytdlp.MetadataFetcher {
	chain := &ytdlp.MetadataChain{Logger: a.logger.Named("metadata")}
	if key := a.cfg.YouTube.APIKey; key != "" {
		api, err := ytdlp.NewAPIMetadata(ctx, key)
		if err != nil {
			a.logger.Warn("YouTube Data API unavailable, using yt-dlp for metadata", zap.Error(err))
		} else {
			chain.Sources = append(chain.Sources, api)
		}
	}
	chain.Sources = append(chain.Sources, extractor)
	return chain
}

func (a *app) shortener() *shortener.Client {
	hc := httpclient.DefaultConfig()
	hc.Timeout = a.cfg.Shortener.Timeout
	hc.Retry = a.cfg.RetryPolicy()
	hc.RateLimiter.RequestsPerSecond = a.cfg.Shortener.RequestsPerSecond
	hc.Logger = a.logger.Named("http")
	return shortener.New(a.cfg.Shortener.Endpoint, httpclient.New(hc), a.logger.Named("shortener"))
}

func (a *app) openStore() (storage.Store, error) {
	return storage.Open(storage.Options{
		Backend:    a.cfg.Store.Backend,
		Dir:        a.cfg.Store.Dir,
		SQLitePath: a.cfg.Store.SQLitePath,
		Logger:     a.logger.Named("storage"),
	})
}
