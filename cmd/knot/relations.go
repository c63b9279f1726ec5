package main

import (
	"context"
	"fmt"

	"github.com/knotline/knot/internal/client"
	"github.com/knotline/knot/internal/model"
	"github.com/spf13/cobra"
)

var relationsCmd = &cobra.Command{
	Use:     "relations <event-id>",
	Short:   "List the events relating to a target, newest first",
	GroupID: "relations",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoom(); err != nil {
			return err
		}
		relType, _ := cmd.Flags().GetString("rel-type")
		eventType, _ := cmd.Flags().GetString("event-type")
		from, _ := cmd.Flags().GetString("from")
		limit, _ := cmd.Flags().GetInt("limit")
		all, _ := cmd.Flags().GetBool("all")

		req := &client.ListRelationsRequest{
			RoomID:        roomID,
			TargetEventID: args[0],
			RelType:       model.RelType(relType),
			EventType:     eventType,
			From:          from,
			Limit:         limit,
		}

		var evs []*model.Event
		next := ""
		for {
			page, err := knotClient.ListRelations(context.Background(), req)
			if err != nil {
				return fmt.Errorf("listing relations: %w", err)
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
	relationsCmd.Flags().String("rel-type", "", "filter by relation type (m.annotation, m.reference, m.replace)")
	relationsCmd.Flags().String("event-type", "", "filter by child event type (requires --rel-type)")
	relationsCmd.Flags().String("from", "", "pagination token from a previous page")
	relationsCmd.Flags().Int("limit", 0, "page size (server default when 0)")
	relationsCmd.Flags().Bool("all", false, "follow pagination tokens until exhausted")
}
