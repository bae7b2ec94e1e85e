package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"vidlink/internal/ladder"
	"vidlink/internal/storage"
)

func newPrefCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pref",
		Short: "Manage a user's default quality",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <user-id>",
			Short: "Print the default quality",
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

				v, err := store.GetPreference(cmd.Context(), userID, storage.KeyDefaultQuality, "")
				if err != nil {
					return err
				}
				if v == "" {
					v = "none"
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <user-id> <quality>",
			Short: "Set the default quality",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				userID, err := parseUserID(args[0])
				if err != nil {
					return err
				}
				label, err := ladder.ParseLabel(args[1])
				if err != nil {
					return err
				}
				store, err := a.openStore()
				if err != nil {
					return err
				}
				defer store.Close()

				if err := store.SetPreference(cmd.Context(), userID, storage.KeyDefaultQuality, string(label)); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), label)
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <user-id>",
			Short: "Remove the default quality",
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

				err = store.DeletePreference(cmd.Context(), userID, storage.KeyDefaultQuality)
				if errors.Is(err, storage.ErrNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), "no default set")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "deleted")
				return nil
			},
		},
	)
	return cmd
}
