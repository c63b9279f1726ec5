package main

import (
	"context"
	"fmt"

	"github.com/knotline/knot/internal/client"
	"github.com/knotline/knot/internal/model"
	"github.com/spf13/cobra"
)

var aggregationsCmd = &cobra.Command{
	Use:     "aggregations <event-id>",
	Short:   "List annotation groups on an event, most voted first",
	GroupID: "relations",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoom(); err != nil {
			return err
		}
		eventType, _ := cmd.Flags().GetString("event-type")
		from, _ := cmd.Flags().GetString("from")
		limit, _ := cmd.Flags().GetInt("limit")
		all, _ := cmd.Flags().GetBool("all")

		req := &client.ListAggregationsRequest{
			RoomID:        roomID,
			TargetEventID: args[0],
			From:          from,
			Limit:         limit,
		}
		if eventType != "" {
			req.RelType = model.RelAnnotation
			req.EventType = eventType
		}

		var groups []*model.AggregationGroup
		next := ""
		for {
			page, err := knotClient.ListAggregations(context.Background(), req)
			if err != nil {
				return fmt.Errorf("listing aggregations: %w", err)
			}
			groups = append(groups, page.Chunk...)
			next = page.NextBatch
			if !all || next == "" {
				break
			}
			req.From = next
		}

		if jsonOutput {
			printJSON(groups)
		} else {
			printGroupListTable(groups, next)
		}
		return nil
	},
}

func init() {
	aggregationsCmd.Flags().String("event-type", "", "filter by annotating event type")
	aggregationsCmd.Flags().String("from", "", "pagination token from a previous page")
	aggregationsCmd.Flags().Int("limit", 0, "page size (server default when 0)")
	aggregationsCmd.Flags().Bool("all", false, "follow pagination tokens until exhausted")
}
