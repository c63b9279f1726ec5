package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var redactCmd = &cobra.Command{
	Use:     "redact <event-id>",
	Short:   "Redact an event, retracting any relation it carried",
	GroupID: "events",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoom(); err != nil {
			return err
		}
		id := args[0]

		redactionID, err := knotClient.RedactEvent(context.Background(), roomID, id, sender)
		if err != nil {
			return fmt.Errorf("redacting event %s: %w", id, err)
		}

		if jsonOutput {
			printJSON(map[string]string{"event_id": redactionID})
		} else {
			fmt.Printf("event %s redacted (redaction %s)\n", id, redactionID)
		}
		return nil
	},
}
