package ports

import (
	"context"
	"errors"
	"trip-record-service/internal/domain"
)

// Returned by PartitionStore.Insert when the session id is already stored in that partition.
var ErrUniqueViolation = errors.New("unique constraint violation")

// Port: one physical partition of trip records (a table holding a single start year).
type PartitionStore interface {
	// Persist a new record and return it as stored.
	Insert(ctx context.Context, rec domain.TripRecord) (domain.TripRecord, error)

	// Look a record up by session id. The bool is false when this partition does not hold it.
	FindBySessionID(ctx context.Context, sessionID string) (domain.TripRecord, bool, error)

	// Return one page of a vehicle's records, sorted and paginated by the store itself.
	FindByVehicleID(ctx context.Context, vehicleID string, page domain.PageRequest) ([]domain.TripRecord, error)
}
