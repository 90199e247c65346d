package ports

import (
	"context"

	"github.com/nlzhang/geopin/internal/core/domain"
)

// HelperChannel speaks to the privileged helper process that owns the OS
// location feed. Implementations classify failures as domain.OpError kinds:
// transport trouble is KindHelperUnavailable, an explicit refusal is
// KindHelperRejected. No implementation retries on its own.
type HelperChannel interface {
	// Begin starts feeding the override to the OS, replacing any active one.
	Begin(ctx context.Context, ov domain.LocationOverride) error
	// End stops overriding. Idempotent: ending an idle helper succeeds.
	End(ctx context.Context) error
	// Ping checks that the helper answers. Used by readiness probes only;
	// session operations discover helper health by attempting Begin or End.
	Ping(ctx context.Context) error
}

// EventPublisher publishes state changes to outside observers.
type EventPublisher interface {
	PublishSession(ctx context.Context, snap domain.SessionSnapshot) error
	PublishHistory(ctx context.Context, entries []domain.QueryHistoryEntry) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// Geocoder resolves free-text place queries to coordinates.
type Geocoder interface {
	Search(ctx context.Context, query string, limit int) ([]domain.PlaceMatch, error)
}
