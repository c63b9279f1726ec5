package events

import "context"

// NoopPublisher is a Publisher that drops everything. The daemon uses it
// when KNOT_NATS_URL is not set.
type NoopPublisher struct{}

func (n *NoopPublisher) Publish(ctx context.Context, topic string, event any) error {
	return nil
}

func (n *NoopPublisher) Close() error {
	return nil
}
