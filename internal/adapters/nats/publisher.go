package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/parkfinder/internal/core/domain"
)

// Subjects used by the service.
const (
	SubjectState            = "parking.state.snapshot"
	SubjectStateAll         = "parking.state.>"
	SubjectBroadcast        = "parking.updates.broadcast"
	SubjectDatasetRefreshed = "parking.dataset.refreshed"

	datasetStream = "PARKING_DATASET"
)

// Publisher implements ports.EventPublisher and ports.DatasetNotifier.
// State snapshots go over core NATS; dataset events are persisted in
// JetStream so a restarting API still sees them.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the dataset stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      datasetStream,
		Subjects:  []string{"parking.dataset.>"},
		Retention: nats.InterestPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishState publishes an engine snapshot.
func (p *Publisher) PublishState(ctx context.Context, snap *domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return p.conn.Publish(SubjectState, data)
}

// PublishBroadcast publishes free-form data to every listener.
func (p *Publisher) PublishBroadcast(ctx context.Context, data []byte) error {
	return p.conn.Publish(SubjectBroadcast, data)
}

// PublishDatasetRefreshed announces a stored dataset of count facilities.
func (p *Publisher) PublishDatasetRefreshed(ctx context.Context, count int) error {
	_, err := p.js.Publish(SubjectDatasetRefreshed, []byte(strconv.Itoa(count)), nats.Context(ctx))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("parkfinder"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
