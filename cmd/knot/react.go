package main

import (
	"context"
	"fmt"

	"github.com/knotline/knot/internal/client"
	"github.com/knotline/knot/internal/model"
	"github.com/spf13/cobra"
)

var reactCmd = &cobra.Command{
	Use:     "react <event-id> <key>",
	Short:   "React to an event (m.annotation with an m.reaction)",
	GroupID: "relations",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoom(); err != nil {
			return err
		}
		target, key := args[0], args[1]

		id, err := knotClient.SendRelation(context.Background(), &client.SendRelationRequest{
			RoomID:        roomID,
			TargetEventID: target,
			RelType:       model.RelAnnotation,
			EventType:     model.EventTypeReaction,
			Key:           key,
			Sender:        sender,
		})
		if err != nil {
			return fmt.Errorf("reacting to %s: %w", target, err)
		}

		if jsonOutput {
			printJSON(map[string]string{"event_id": id})
		} else {
			fmt.Printf("reaction %s sent (%s on %s)\n", id, key, target)
		}
		return nil
	},
}
