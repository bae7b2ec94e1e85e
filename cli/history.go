package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"vidlink/internal/paginate"
)

func newHistoryCmd(a *app) *cobra.Command {
	var page, size int

	cmd := &cobra.Command{
		Use:   "history <user-id>",
		Short: "Show a user's download history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.ListHistory(cmd.Context(), userID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "no history")
				return nil
			}

			p := paginate.Slice(entries, page-1, size)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tFORMAT\tURL")
			for _, e := range p.Items {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Format, e.URL)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "page %d/%d\n", page, p.Count())
			return nil
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number, starting at 1")
	cmd.Flags().IntVar(&size, "size", paginate.DefaultSize, "Entries per page")
	return cmd
}

func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return id, nil
}
