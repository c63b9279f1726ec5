// Package notify forwards bus events to configured webhook endpoints.
//
// A Notifier subscribes to each forwarded knot.* topic and POSTs a JSON
// envelope {topic, received_at, payload} to every configured URL. Delivery
// is best effort: failures are logged and never block the event flow.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/knotline/knot/internal/events"
)

// Delivery is the JSON body posted to each configured webhook.
type Delivery struct {
	Topic      string          `json:"topic"`
	ReceivedAt time.Time       `json:"received_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Topics returns the bus topics forwarded to webhooks.
func Topics() []string {
	return []string{
		events.TopicEventCreated,
		events.TopicRelationCreated,
		events.TopicEventRedacted,
		events.TopicSenderOffline,
	}
}

// Notifier forwards bus events to webhook URLs.
type Notifier struct {
	urls   []string
	client *http.Client
	logger *slog.Logger
}

// New creates a notifier that forwards bus events to the given webhook URLs.
func New(urls []string, logger *slog.Logger) *Notifier {
	return &Notifier{
		urls:   urls,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// StartSubscriber subscribes to every forwarded topic and relays payloads to
// the configured webhooks. It blocks until ctx is cancelled.
func (n *Notifier) StartSubscriber(ctx context.Context, sub events.Subscriber) error {
	var (
		cancels []func()
		wg      sync.WaitGroup
	)

	for _, topic := range Topics() {
		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			for _, c := range cancels {
				c()
			}
			return fmt.Errorf("notify: subscribe %s: %w", topic, err)
		}
		cancels = append(cancels, cancel)

		wg.Add(1)
		go func(topic string, ch <-chan []byte) {
			defer wg.Done()
			n.forward(ctx, topic, ch)
		}(topic, ch)
	}

	n.logger.Info("notify: forwarder started",
		"topics", len(cancels), "webhooks", len(n.urls))

	<-ctx.Done()
	n.logger.Info("notify: forwarder stopping")
	for _, c := range cancels {
		c()
	}
	wg.Wait()
	return nil
}

func (n *Notifier) forward(ctx context.Context, topic string, ch <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}
			n.deliver(ctx, topic, raw)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, topic string, raw []byte) {
	body, err := json.Marshal(Delivery{
		Topic:      topic,
		ReceivedAt: time.Now().UTC(),
		Payload:    raw,
	})
	if err != nil {
		n.logger.Warn("notify: encode delivery", "topic", topic, "err", err)
		return
	}

	for _, url := range n.urls {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			n.logger.Warn("notify: build request", "url", url, "err", err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			n.logger.Warn("notify: webhook delivery failed", "url", url, "topic", topic, "err", err)
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 300 {
			n.logger.Warn("notify: webhook rejected delivery",
				"url", url, "topic", topic, "status", resp.StatusCode)
		}
	}
}
