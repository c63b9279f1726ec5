package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/knotline/knot/internal/model"
	"github.com/knotline/knot/internal/presence"
	"github.com/knotline/knot/internal/ui"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func formatTS(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func printEventTable(ev *model.Event) {
	fmt.Printf("Event ID:  %s\n", ev.ID)
	fmt.Printf("Room:      %s\n", ev.RoomID)
	fmt.Printf("Type:      %s\n", ev.Type)
	fmt.Printf("Sender:    %s\n", ev.Sender)
	if ev.StateKey != nil {
		fmt.Printf("State Key: %s\n", *ev.StateKey)
	}
	fmt.Printf("Sent At:   %s\n", formatTS(ev.OriginServerTS))
	if ev.Redacted {
		fmt.Printf("Redacted:  %s\n", ui.RenderAlert("yes"))
	}
	if len(ev.Content) > 0 {
		fmt.Printf("Content:   %s\n", truncate(string(ev.Content), 120))
	}

	if ev.Unsigned == nil || ev.Unsigned.Relations == nil {
		return
	}
	rel := ev.Unsigned.Relations
	if rel.Annotations != nil && len(rel.Annotations.Chunk) > 0 {
		fmt.Println()
		fmt.Println("Annotations:")
		for _, g := range rel.Annotations.Chunk {
			fmt.Printf("  %s x%d (%s)\n", g.Key, g.Count, g.EventType)
		}
	}
	if rel.References != nil && len(rel.References.Chunk) > 0 {
		fmt.Println()
		fmt.Println("References:")
		for _, ref := range rel.References.Chunk {
			fmt.Printf("  %s\n", ref.EventID)
		}
	}
}

func printEventListTable(evs []*model.Event, nextBatch string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EVENT ID\tTYPE\tSENDER\tSENT AT")
	for _, ev := range evs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			ev.ID,
			ev.Type,
			ev.Sender,
			formatTS(ev.OriginServerTS),
		)
	}
	w.Flush()
	fmt.Printf("\n%d events\n", len(evs))
	if nextBatch != "" {
		fmt.Println(ui.RenderMuted("more available: --from " + nextBatch))
	}
}

func printGroupListTable(groups []*model.AggregationGroup, nextBatch string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tTYPE\tCOUNT")
	for _, g := range groups {
		fmt.Fprintf(w, "%s\t%s\t%d\n", g.Key, g.EventType, g.Count)
	}
	w.Flush()
	fmt.Printf("\n%d groups\n", len(groups))
	if nextBatch != "" {
		fmt.Println(ui.RenderMuted("more available: --from " + nextBatch))
	}
}

func printJournalTable(entries []*model.JournalEntry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTOPIC\tEVENT\tROOM\tACTOR\tAT")
	for _, e := range entries {
		at := ""
		if !e.CreatedAt.IsZero() {
			at = e.CreatedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.ID,
			e.Topic,
			e.EventID,
			e.RoomID,
			e.Actor,
			at,
		)
	}
	w.Flush()
	fmt.Printf("\n%d entries\n", len(entries))
}

func printPresenceTable(senders []presence.Entry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SENDER\tLAST TYPE\tEVENTS\tIDLE\tSTATE")
	for _, s := range senders {
		state := "active"
		if s.Offline {
			state = "offline"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			s.Sender,
			s.LastEventType,
			s.EventCount,
			(time.Duration(s.IdleSecs) * time.Second).String(),
			state,
		)
	}
	w.Flush()
	fmt.Printf("\n%d senders\n", len(senders))
}
