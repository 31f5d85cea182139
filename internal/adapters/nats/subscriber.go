package natsadapter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/nats-io/nats.go"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeDatasetRefreshed calls handler with the facility count of every
// refreshed dataset. The consumer is ephemeral so every API instance gets
// its own copy of the event.
func (s *Subscriber) SubscribeDatasetRefreshed(ctx context.Context, handler func(ctx context.Context, count int) error) error {
	sub, err := s.js.Subscribe(SubjectDatasetRefreshed, func(msg *nats.Msg) {
		count, err := strconv.Atoi(string(msg.Data))
		if err != nil {
			slog.Warn("invalid dataset refreshed payload", "data", string(msg.Data))
			_ = msg.Term()
			return
		}
		if err := handler(ctx, count); err != nil {
			slog.Warn("dataset refresh handler failed", "error", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
