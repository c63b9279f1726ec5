package events

// Subscriber receives raw payloads from the event bus.
type Subscriber interface {
	// Subscribe delivers payloads published to topic on the returned
	// channel. NATS wildcard subjects (knot.>) are accepted. Call the
	// returned cancel function to unsubscribe and close the channel.
	Subscribe(topic string) (<-chan []byte, func(), error)
	Close() error
}
