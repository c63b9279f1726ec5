package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/knotline/knot/internal/model"
)

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func newBusPair(t *testing.T) (*NATSPublisher, *NATSSubscriber) {
	t.Helper()
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	t.Cleanup(func() { pub.Close() })

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	t.Cleanup(func() { sub.Close() })
	return pub, sub
}

func TestNATSSubscriber_DeliversPayloads(t *testing.T) {
	pub, sub := newBusPair(t)

	ch, cancel, err := sub.Subscribe(TopicEventCreated)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	want := EventCreated{Event: &model.Event{ID: "$e1", RoomID: "!ops:knot.test", Sender: "@alice:knot.test"}}
	if err := pub.Publish(context.Background(), TopicEventCreated, want); err != nil {
		t.Fatalf("publishing: %v", err)
	}
	pub.conn.Flush()

	select {
	case raw := <-ch:
		var got EventCreated
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Event.ID != "$e1" || got.Event.Sender != "@alice:knot.test" {
			t.Errorf("got id=%q sender=%q", got.Event.ID, got.Event.Sender)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for payload")
	}
}

func TestNATSSubscriber_TopicIsolation(t *testing.T) {
	pub, sub := newBusPair(t)

	// Listen on the relation topic only; an event-created publish must not
	// leak in.
	ch, cancel, err := sub.Subscribe(TopicRelationCreated)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	ctx := context.Background()
	if err := pub.Publish(ctx, TopicEventCreated, EventCreated{Event: &model.Event{ID: "$noise"}}); err != nil {
		t.Fatalf("publishing noise: %v", err)
	}
	if err := pub.Publish(ctx, TopicRelationCreated, RelationCreated{Relation: &model.Relation{SourceEventID: "$edge"}}); err != nil {
		t.Fatalf("publishing relation: %v", err)
	}
	pub.conn.Flush()

	select {
	case raw := <-ch:
		var got RelationCreated
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Relation.SourceEventID != "$edge" {
			t.Errorf("got source=%q, want $edge", got.Relation.SourceEventID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for relation payload")
	}

	select {
	case raw := <-ch:
		t.Fatalf("unexpected second payload: %s", raw)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNATSSubscriber_Wildcard(t *testing.T) {
	pub, sub := newBusPair(t)

	ch, cancel, err := sub.Subscribe("knot.>")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	ctx := context.Background()
	topics := []string{TopicEventCreated, TopicRelationCreated, TopicEventRedacted, TopicSenderOffline}
	for _, topic := range topics {
		if err := pub.Publish(ctx, topic, map[string]string{"topic": topic}); err != nil {
			t.Fatalf("publishing to %s: %v", topic, err)
		}
	}
	pub.conn.Flush()

	for i := range topics {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for payload %d", i)
		}
	}
}

func TestNATSSubscriber_CancelClosesChannel(t *testing.T) {
	_, sub := newBusPair(t)

	ch, cancel, err := sub.Subscribe(TopicEventCreated)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after cancel")
	}
}

func TestNATSSubscriber_DoubleCancel(t *testing.T) {
	_, sub := newBusPair(t)

	_, cancel, err := sub.Subscribe(TopicEventCreated)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	// Second call must be a no-op, not a double close.
	cancel()
	cancel()
}

func TestNATSSubscriber_CancelDuringBurst(t *testing.T) {
	pub, sub := newBusPair(t)

	ch, cancel, err := sub.Subscribe(TopicEventCreated)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = pub.conn.Publish(TopicEventCreated, []byte(`{"id":"x"}`))
		}
		pub.conn.Flush()
	}()

	// Cancel mid-burst; deliveries racing the close must not panic.
	cancel()
	<-done

	for range ch {
	}
}

func TestNATSSubscriber_ReconnectOption(t *testing.T) {
	url := startTestNATS(t)

	sub, err := NewNATSSubscriber(url,
		nats.ReconnectHandler(func(_ *nats.Conn) {}),
	)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	if !sub.conn.IsConnected() {
		t.Fatal("expected subscriber to be connected")
	}
}
