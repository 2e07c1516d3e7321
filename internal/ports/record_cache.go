package ports

import (
	"context"
	"trip-record-service/internal/domain"
)

// Contract for caching single-record lookups by session id.
// Records are immutable, so an entry never goes stale; eviction is up to the adapter.
type RecordCache interface {
	Get(ctx context.Context, sessionID string) (domain.TripRecord, bool, error)
	Put(ctx context.Context, rec domain.TripRecord) error
}
