package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/knotline/knot/internal/client"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:     "send <text>",
	Short:   "Send a message event to a room",
	GroupID: "events",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoom(); err != nil {
			return err
		}
		eventType, _ := cmd.Flags().GetString("type")
		rawContent, _ := cmd.Flags().GetString("content")

		var content json.RawMessage
		if rawContent != "" {
			content = json.RawMessage(rawContent)
		} else {
			data, err := json.Marshal(map[string]string{"body": args[0]})
			if err != nil {
				return fmt.Errorf("encoding content: %w", err)
			}
			content = data
		}

		id, err := knotClient.SendEvent(context.Background(), &client.SendEventRequest{
			RoomID:  roomID,
			Type:    eventType,
			Sender:  sender,
			Content: content,
		})
		if err != nil {
			return fmt.Errorf("sending event: %w", err)
		}

		if jsonOutput {
			printJSON(map[string]string{"event_id": id})
		} else {
			fmt.Printf("event %s sent\n", id)
		}
		return nil
	},
}

func init() {
	sendCmd.Flags().StringP("type", "t", "m.room.message", "event type")
	sendCmd.Flags().StringP("content", "c", "", "raw JSON content (overrides the text body)")
}
