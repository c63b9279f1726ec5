package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/knotline/knot/internal/client"
	"github.com/knotline/knot/internal/model"
	"github.com/spf13/cobra"
)

var editCmd = &cobra.Command{
	Use:     "edit <event-id> <text>",
	Short:   "Send a replacement for an event (m.replace)",
	GroupID: "relations",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoom(); err != nil {
			return err
		}
		target, text := args[0], args[1]

		content, err := json.Marshal(map[string]any{
			"body":          "* " + text,
			"m.new_content": map[string]string{"body": text},
		})
		if err != nil {
			return fmt.Errorf("encoding content: %w", err)
		}

		id, err := knotClient.SendRelation(context.Background(), &client.SendRelationRequest{
			RoomID:        roomID,
			TargetEventID: target,
			RelType:       model.RelReplace,
			EventType:     model.EventTypeMessage,
			Sender:        sender,
			Content:       content,
		})
		if err != nil {
			return fmt.Errorf("editing %s: %w", target, err)
		}

		if jsonOutput {
			printJSON(map[string]string{"event_id": id})
		} else {
			fmt.Printf("edit %s sent\n", id)
		}
		return nil
	},
}
