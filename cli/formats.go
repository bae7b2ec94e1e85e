package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"vidlink/internal/ladder"
	"vidlink/internal/link"
)

var errNoLadder = errors.New("instagram links have a single format; use the link command")

func newFormatsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "formats <url>",
		Short: "Show the quality ladder for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := normalizedLink(args[0])
			if err != nil {
				return err
			}
			if link.DetectPlatform(url) == link.PlatformInstagram {
				return errNoLadder
			}

			entries, err := a.extractor().ListFormats(cmd.Context(), url)
			if err != nil {
				return err
			}
			lad := ladder.Build(entries)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(lad.Map())
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "QUALITY\tFORMAT")
			for _, label := range lad.Labels() {
				id, _ := lad.Get(label)
				fmt.Fprintf(w, "%s\t%s\n", label, id)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the ladder as JSON")
	return cmd
}

// normalizedLink validates raw and returns its canonical form.
func normalizedLink(raw string) (string, error) {
	if !link.Validate(raw) {
		return "", fmt.Errorf("%q: %w", raw, link.ErrInvalidLink)
	}
	return link.Normalize(raw), nil
}
