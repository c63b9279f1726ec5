package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/knotline/knot/internal/client"
	"github.com/knotline/knot/internal/model"
	"github.com/spf13/cobra"
)

var replyCmd = &cobra.Command{
	Use:     "reply <event-id> <text>",
	Short:   "Reply to an event (m.reference)",
	GroupID: "relations",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoom(); err != nil {
			return err
		}
		target, text := args[0], args[1]

		content, err := json.Marshal(map[string]string{"body": text})
		if err != nil {
			return fmt.Errorf("encoding content: %w", err)
		}

		id, err := knotClient.SendRelation(context.Background(), &client.SendRelationRequest{
			RoomID:        roomID,
			TargetEventID: target,
			RelType:       model.RelReference,
			EventType:     model.EventTypeMessage,
			Sender:        sender,
			Content:       content,
		})
		if err != nil {
			return fmt.Errorf("replying to %s: %w", target, err)
		}

		if jsonOutput {
			printJSON(map[string]string{"event_id": id})
		} else {
			fmt.Printf("reply %s sent\n", id)
		}
		return nil
	},
}
