package main

import (
	"context"
	"fmt"

	"github.com/knotline/knot/internal/client"
	"github.com/knotline/knot/internal/model"
	"github.com/spf13/cobra"
)

var groupCmd = &cobra.Command{
	Use:     "group <event-id> <key>",
	Short:   "List the events inside one annotation group",
	GroupID: "relations",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoom(); err != nil {
			return err
		}
		eventType, _ := cmd.Flags().GetString("event-type")
		from, _ := cmd.Flags().GetString("from")
		limit, _ := cmd.Flags().GetInt("limit")
		all, _ := cmd.Flags().GetBool("all")

		req := &client.ListGroupEventsRequest{
			RoomID:        roomID,
			TargetEventID: args[0],
			RelType:       model.RelAnnotation,
			EventType:     eventType,
			Key:           args[1],
			From:          from,
			Limit:         limit,
		}

		var evs []*model.Event
		next := ""
		for {
			page, err := knotClient.ListGroupEvents(context.Background(), req)
			if err != nil {
				return fmt.Errorf("listing group events: %w", err)
			}
			evs = append(evs, page.Chunk...)
			next = page.NextBatch
			if !all || next == "" {
				break
			}
			req.From = next
		}

		if jsonOutput {
			printJSON(evs)
		} else {
			printEventListTable(evs, next)
		}
		return nil
	},
}

func init() {
	groupCmd.Flags().String("event-type", "m.reaction", "annotating event type")
	groupCmd.Flags().String("from", "", "pagination token from a previous page")
	groupCmd.Flags().Int("limit", 0, "page size (server default when 0)")
	groupCmd.Flags().Bool("all", false, "follow pagination tokens until exhausted")
}
