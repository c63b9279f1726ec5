package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/knotline/knot/internal/events"
	"github.com/knotline/knot/internal/model"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream server activity as it happens",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		natsURL, _ := cmd.Flags().GetString("nats")
		if natsURL == "" {
			natsURL = os.Getenv("KNOT_NATS_URL")
		}
		if natsURL == "" {
			natsURL = activeRemote().NATSURL
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		// Event-driven when a NATS URL is known, otherwise journal polling.
		if natsURL != "" {
			return watchNATS(ctx, natsURL)
		}
		return watchJournal(ctx, interval)
	},
}

// busLine pairs a payload with the topic it arrived on, since the
// subscription channel itself carries no subject.
type busLine struct {
	topic string
	data  []byte
}

func watchNATS(ctx context.Context, natsURL string) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	topics := []string{
		events.TopicEventCreated,
		events.TopicRelationCreated,
		events.TopicEventRedacted,
		events.TopicSenderOffline,
	}

	lines := make(chan busLine, 64)
	var cancels []func()
	for _, topic := range topics {
		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			for _, c := range cancels {
				c()
			}
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		cancels = append(cancels, cancel)
		go func(topic string, ch <-chan []byte) {
			for raw := range ch {
				select {
				case lines <- busLine{topic: topic, data: raw}:
				case <-ctx.Done():
					return
				}
			}
		}(topic, ch)
	}
	defer func() {
		for _, c := range cancels {
			c()
		}
	}()

	fmt.Fprintln(os.Stderr, "watching (ctrl-c to stop)")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line := <-lines:
			printBusLine(line)
		}
	}
}

func printBusLine(line busLine) {
	if jsonOutput {
		out, _ := json.Marshal(map[string]any{"topic": line.topic, "payload": json.RawMessage(line.data)})
		fmt.Println(string(out))
		return
	}

	now := time.Now().Format("15:04:05")
	switch line.topic {
	case events.TopicEventCreated:
		var ec events.EventCreated
		if json.Unmarshal(line.data, &ec) == nil && ec.Event != nil {
			fmt.Printf("%s  event    %s %s from %s in %s\n", now, ec.Event.ID, ec.Event.Type, ec.Event.Sender, ec.Event.RoomID)
			return
		}
	case events.TopicRelationCreated:
		var rc events.RelationCreated
		if json.Unmarshal(line.data, &rc) == nil && rc.Relation != nil {
			key := ""
			if rc.Relation.AggregationKey != "" {
				key = "(" + rc.Relation.AggregationKey + ") "
			}
			fmt.Printf("%s  relation %s %s %s-> %s from %s\n", now, rc.Relation.SourceEventID, rc.Relation.RelType, key, rc.Relation.TargetEventID, rc.Relation.Sender)
			return
		}
	case events.TopicEventRedacted:
		var er events.EventRedacted
		if json.Unmarshal(line.data, &er) == nil {
			suffix := ""
			if er.StaleRelation != nil {
				suffix = fmt.Sprintf(" (retracted %s edge)", er.StaleRelation.RelType)
			}
			fmt.Printf("%s  redacted %s by %s%s\n", now, er.EventID, er.RedactedBy, suffix)
			return
		}
	case events.TopicSenderOffline:
		var so events.SenderOffline
		if json.Unmarshal(line.data, &so) == nil {
			fmt.Printf("%s  offline  %s (last seen %s)\n", now, so.Sender, so.LastSeen.Format("15:04:05"))
			return
		}
	}
	fmt.Printf("%s  %s %s\n", now, line.topic, line.data)
}

// freshJournalEntries filters a newest-first batch down to entries past
// the lastID watermark, returned oldest first, along with the advanced
// watermark.
func freshJournalEntries(entries []*model.JournalEntry, lastID int64) ([]*model.JournalEntry, int64) {
	var fresh []*model.JournalEntry
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.ID <= lastID {
			continue
		}
		lastID = e.ID
		fresh = append(fresh, e)
	}
	return fresh, lastID
}

// watchJournal polls the audit journal and prints entries it has not
// shown yet, oldest first within each batch.
func watchJournal(ctx context.Context, interval time.Duration) error {
	var lastID int64

	printNew := func(entries []*model.JournalEntry) {
		var fresh []*model.JournalEntry
		fresh, lastID = freshJournalEntries(entries, lastID)
		for _, e := range fresh {
			if jsonOutput {
				printJSON(e)
				continue
			}
			at := e.CreatedAt.Format("15:04:05")
			fmt.Printf("%s  %-22s %s %s %s\n", at, e.Topic, e.EventID, e.RoomID, e.Actor)
		}
	}

	entries, err := knotClient.Journal(ctx, 20)
	if err != nil {
		return fmt.Errorf("fetching journal: %w", err)
	}
	printNew(entries)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
		entries, err := knotClient.Journal(ctx, 50)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetching journal: %w", err)
		}
		printNew(entries)
	}
}

func init() {
	watchCmd.Flags().Duration("interval", 3*time.Second, "journal polling interval")
	watchCmd.Flags().String("nats", "", "NATS URL for event-driven watching (default: $KNOT_NATS_URL or the active remote)")
}
