package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nlzhang/geopin/internal/core/domain"
)

// Subjects carrying state-change events for outside observers.
const (
	SubjectSession = "geopin.session.state"
	SubjectHistory = "geopin.history.changed"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS, enables JetStream, and ensures the event
// streams exist.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "GEOPIN_SESSION",
			Subjects:  []string{"geopin.session.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "GEOPIN_HISTORY",
			Subjects:  []string{"geopin.history.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist; try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishSession emits the session snapshot after a state change.
func (p *Publisher) PublishSession(ctx context.Context, snap domain.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectSession, data)
	return err
}

// PublishHistory emits the full history list after a mutation.
func (p *Publisher) PublishHistory(ctx context.Context, entries []domain.QueryHistoryEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectHistory, data)
	return err
}

// Ping verifies the connection is alive, for readiness probes.
func (p *Publisher) Ping() error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}
