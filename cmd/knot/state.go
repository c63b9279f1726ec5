package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/knotline/knot/internal/client"
	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:     "state <event-type> <state-key>",
	Short:   "Send a state event (e.g. a membership) to a room",
	GroupID: "events",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoom(); err != nil {
			return err
		}
		eventType, stateKey := args[0], args[1]
		rawContent, _ := cmd.Flags().GetString("content")

		content := json.RawMessage(`{}`)
		if rawContent != "" {
			content = json.RawMessage(rawContent)
		}

		id, err := knotClient.SendStateEvent(context.Background(), &client.SendStateEventRequest{
			RoomID:   roomID,
			Type:     eventType,
			StateKey: stateKey,
			Sender:   sender,
			Content:  content,
		})
		if err != nil {
			return fmt.Errorf("sending state event: %w", err)
		}

		if jsonOutput {
			printJSON(map[string]string{"event_id": id})
		} else {
			fmt.Printf("state event %s sent\n", id)
		}
		return nil
	},
}

func init() {
	stateCmd.Flags().StringP("content", "c", "", `raw JSON content (e.g. '{"membership":"join"}')`)
}
