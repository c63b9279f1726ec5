package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/knotline/knot/internal/client"
	"github.com/knotline/knot/internal/model"
	"github.com/spf13/cobra"
)

var relateCmd = &cobra.Command{
	Use:     "relate <event-id> <rel-type> <event-type>",
	Short:   "Send an arbitrary relation to an event",
	GroupID: "relations",
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoom(); err != nil {
			return err
		}
		target, relType, eventType := args[0], args[1], args[2]
		key, _ := cmd.Flags().GetString("key")
		rawContent, _ := cmd.Flags().GetString("content")

		var content json.RawMessage
		if rawContent != "" {
			content = json.RawMessage(rawContent)
		}

		id, err := knotClient.SendRelation(context.Background(), &client.SendRelationRequest{
			RoomID:        roomID,
			TargetEventID: target,
			RelType:       model.RelType(relType),
			EventType:     eventType,
			Key:           key,
			Sender:        sender,
			Content:       content,
		})
		if err != nil {
			return fmt.Errorf("relating to %s: %w", target, err)
		}

		if jsonOutput {
			printJSON(map[string]string{"event_id": id})
		} else {
			fmt.Printf("relation %s sent (%s -> %s)\n", id, relType, target)
		}
		return nil
	},
}

func init() {
	relateCmd.Flags().StringP("key", "k", "", "aggregation key (annotations)")
	relateCmd.Flags().StringP("content", "c", "", "raw JSON content")
}
