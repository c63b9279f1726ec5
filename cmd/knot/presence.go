package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var presenceCmd = &cobra.Command{
	Use:     "presence",
	Short:   "Show the sender activity roster",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		threshold, _ := cmd.Flags().GetInt("stale-threshold")

		senders, err := knotClient.Presence(context.Background(), threshold)
		if err != nil {
			return fmt.Errorf("fetching presence: %w", err)
		}

		if jsonOutput {
			printJSON(senders)
		} else {
			printPresenceTable(senders)
		}
		return nil
	},
}

func init() {
	presenceCmd.Flags().Int("stale-threshold", 0, "hide senders idle longer than this many seconds (server default when 0)")
}
