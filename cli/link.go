package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vidlink/internal/ladder"
	"vidlink/internal/link"
	"vidlink/internal/ytdlp"
)

func newLinkCmd(a *app) *cobra.Command {
	var (
		quality   string
		noShorten bool
		info      bool
	)

	cmd := &cobra.Command{
		Use:   "link <url>",
		Short: "Resolve a direct download link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			url, err := normalizedLink(args[0])
			if err != nil {
				return err
			}

			extractor := a.extractor()
			selector := ytdlp.SelectorBest
			if quality != "" && link.DetectPlatform(url) == link.PlatformYouTube {
				label, err := ladder.ParseLabel(quality)
				if err != nil {
					return err
				}
				entries, err := extractor.ListFormats(ctx, url)
				if err != nil {
					return err
				}
				id, ok := ladder.Build(entries).Get(label)
				if !ok {
					return fmt.Errorf("quality %s is not available for this video", label)
				}
				selector = id
			}

			direct, err := extractor.ResolveDirectLink(ctx, url, selector)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if info {
				meta, err := a.metadata(ctx, extractor).FetchMetadata(ctx, url)
				if err != nil {
					a.logger.Warn("metadata unavailable", zap.Error(err))
				} else {
					fmt.Fprintf(out, "%s\n%s\n", meta.Title, meta.Duration)
				}
			}

			if noShorten {
				fmt.Fprintln(out, direct)
				return nil
			}
			fmt.Fprintln(out, a.shortener().Shorten(ctx, direct))
			return nil
		},
	}

	cmd.Flags().StringVarP(&quality, "quality", "q", "", "Quality label, e.g. 720p or best_audio (default: best)")
	cmd.Flags().BoolVar(&noShorten, "no-shorten", false, "Print the direct link without shortening")
	cmd.Flags().BoolVar(&info, "info", false, "Print title and duration before the link")
	return cmd
}
