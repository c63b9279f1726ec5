package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:     "journal",
	Short:   "Show the audit journal, newest first",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := knotClient.Journal(context.Background(), limit)
		if err != nil {
			return fmt.Errorf("fetching journal: %w", err)
		}

		if jsonOutput {
			printJSON(entries)
		} else {
			printJournalTable(entries)
		}
		return nil
	},
}

func init() {
	journalCmd.Flags().Int("limit", 20, "maximum number of entries")
}
