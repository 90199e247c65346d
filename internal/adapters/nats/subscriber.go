package natsadapter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nlzhang/geopin/internal/core/domain"
)

// Subscriber consumes geopin events from JetStream. Subscriptions are
// ephemeral and start at new messages, which suits live watch commands.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
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
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeSession delivers every session snapshot published after the
// subscription is made.
func (s *Subscriber) SubscribeSession(handler func(domain.SessionSnapshot)) error {
	sub, err := s.js.Subscribe(SubjectSession, func(msg *nats.Msg) {
		var snap domain.SessionSnapshot
		if err := json.Unmarshal(msg.Data, &snap); err != nil {
			return
		}
		handler(snap)
	}, nats.DeliverNew())
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// SubscribeHistory delivers every history list published after the
// subscription is made.
func (s *Subscriber) SubscribeHistory(handler func([]domain.QueryHistoryEntry)) error {
	sub, err := s.js.Subscribe(SubjectHistory, func(msg *nats.Msg) {
		var entries []domain.QueryHistoryEntry
		if err := json.Unmarshal(msg.Data, &entries); err != nil {
			return
		}
		handler(entries)
	}, nats.DeliverNew())
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
