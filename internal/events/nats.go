package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// subscribeBuffer is the per-subscription channel depth. Payloads beyond
// it are dropped rather than blocking the NATS client callback.
const subscribeBuffer = 64

// NATSPublisher publishes JSON-encoded payloads to NATS subjects.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if err := p.conn.Publish(topic, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// NATSSubscriber hands out per-topic payload channels backed by NATS
// subscriptions.
type NATSSubscriber struct {
	conn *nats.Conn
}

// NewNATSSubscriber connects with unlimited reconnects. Callers may append
// nats.Option values, e.g. disconnect and reconnect handlers.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	defaults := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc}, nil
}

// subscription gates deliveries into its channel so cancel can close the
// channel without racing the NATS callback.
type subscription struct {
	ch   chan []byte
	sub  *nats.Subscription
	once sync.Once

	mu     sync.Mutex
	closed bool
}

func (s *subscription) deliver(msg *nats.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- msg.Data:
	default:
		// Buffer full: drop instead of blocking the callback.
	}
}

func (s *subscription) cancel() {
	s.once.Do(func() {
		_ = s.sub.Unsubscribe()
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		// Drain whatever is still buffered, then close.
		for {
			select {
			case <-s.ch:
			default:
				close(s.ch)
				return
			}
		}
	})
}

// Subscribe returns a channel of raw payloads for topic. Wildcard subjects
// (knot.>) are accepted. The cancel function unsubscribes and closes the
// channel; calling it more than once is safe.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan []byte, func(), error) {
	rec := &subscription{ch: make(chan []byte, subscribeBuffer)}

	sub, err := s.conn.Subscribe(topic, rec.deliver)
	if err != nil {
		close(rec.ch)
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	rec.sub = sub

	// Flush so the subscription is registered server-side before returning;
	// otherwise publishes from other connections can race past it.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		close(rec.ch)
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}

	return rec.ch, rec.cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
