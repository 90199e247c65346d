// Package instrument turns published state changes into Prometheus series
// and log lines. It lets the core stay free of observability concerns: the
// engine and history service publish snapshots, and this adapter derives
// the metrics from them.
package instrument

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/nlzhang/geopin/internal/core/domain"
	"github.com/nlzhang/geopin/internal/core/ports"
	"github.com/nlzhang/geopin/internal/pkg/metrics"
)

// Publisher implements ports.EventPublisher by recording metrics and logs.
// It keeps the previous snapshot so transitions and new errors are counted
// once, not on every published snapshot.
type Publisher struct {
	mu        sync.Mutex
	lastState domain.SessionState
	lastErr   *domain.OpError
	seeded    bool
}

// NewPublisher returns a publisher with no observed state yet.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishSession records transition and error metrics for the snapshot.
func (p *Publisher) PublishSession(ctx context.Context, snap domain.SessionSnapshot) error {
	p.mu.Lock()
	stateChanged := !p.seeded || snap.State != p.lastState
	errChanged := newError(p.lastErr, snap.LastError)
	p.lastState = snap.State
	p.lastErr = snap.LastError
	p.seeded = true
	p.mu.Unlock()

	if stateChanged {
		metrics.SessionTransitions.WithLabelValues(string(snap.State)).Inc()
		if snap.State == domain.StateRunning {
			metrics.SessionActive.Set(1)
		} else {
			metrics.SessionActive.Set(0)
		}
		attrs := []any{"state", string(snap.State)}
		if snap.DisplayPoint != nil {
			attrs = append(attrs, "lat", snap.DisplayPoint.Lat, "lon", snap.DisplayPoint.Lon)
		}
		slog.Info("session state changed", attrs...)
	}

	if errChanged {
		metrics.SessionErrors.WithLabelValues(string(snap.LastError.Kind)).Inc()
		slog.Warn("session error recorded",
			"kind", string(snap.LastError.Kind),
			"message", snap.LastError.Message,
		)
	}

	return nil
}

// PublishHistory records the history size and mutation count.
func (p *Publisher) PublishHistory(ctx context.Context, entries []domain.QueryHistoryEntry) error {
	metrics.HistoryEntries.Set(float64(len(entries)))
	metrics.HistoryMutations.Inc()
	slog.Debug("history changed", "entries", len(entries))
	return nil
}

// newError reports whether cur is an error not already counted as prev.
func newError(prev, cur *domain.OpError) bool {
	if cur == nil {
		return false
	}
	if prev == nil {
		return true
	}
	return prev.Kind != cur.Kind || prev.Message != cur.Message
}

// Fanout composes several publishers into one. Each event goes to all of
// them; errors are joined rather than short-circuiting.
type Fanout []ports.EventPublisher

func (f Fanout) PublishSession(ctx context.Context, snap domain.SessionSnapshot) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishSession(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) PublishHistory(ctx context.Context, entries []domain.QueryHistoryEntry) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishHistory(ctx, entries); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
