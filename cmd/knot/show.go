package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:     "show <event-id>",
	Short:   "Show an event with its bundled relations",
	GroupID: "events",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoom(); err != nil {
			return err
		}
		id := args[0]

		ev, err := knotClient.GetEvent(context.Background(), roomID, id)
		if err != nil {
			return fmt.Errorf("getting event %s: %w", id, err)
		}

		if jsonOutput {
			printJSON(ev)
		} else {
			printEventTable(ev)
		}
		return nil
	},
}
