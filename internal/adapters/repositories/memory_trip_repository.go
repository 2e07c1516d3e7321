package repositories

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"trip-record-service/internal/domain"
	"trip-record-service/internal/ports"
)

// In-memory implementation of the PartitionStore port.
// Used for tests and for running the server without a database.
type MemoryTripRepository struct {
	mu        sync.RWMutex
	bySession map[string]domain.TripRecord
	// insertion order, so equal sort keys page deterministically
	order []string

	// When set, every call fails with this error.
	FailWith error
}

func NewMemoryTripRepository() *MemoryTripRepository {
	return &MemoryTripRepository{bySession: make(map[string]domain.TripRecord)}
}

func (m *MemoryTripRepository) Insert(ctx context.Context, rec domain.TripRecord) (domain.TripRecord, error) {
	if err := m.check(ctx); err != nil {
		return domain.TripRecord{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bySession[rec.SessionID]; ok {
		return domain.TripRecord{}, ports.ErrUniqueViolation
	}
	m.bySession[rec.SessionID] = rec
	m.order = append(m.order, rec.SessionID)
	return rec, nil
}

func (m *MemoryTripRepository) FindBySessionID(ctx context.Context, sessionID string) (domain.TripRecord, bool, error) {
	if err := m.check(ctx); err != nil {
		return domain.TripRecord{}, false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.bySession[sessionID]
	return rec, ok, nil
}

func (m *MemoryTripRepository) FindByVehicleID(
	ctx context.Context,
	vehicleID string,
	page domain.PageRequest,
) ([]domain.TripRecord, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	matches := make([]domain.TripRecord, 0)
	for _, id := range m.order {
		if rec := m.bySession[id]; rec.VehicleID == vehicleID {
			matches = append(matches, rec)
		}
	}
	m.mu.RUnlock()

	// Same ordering the SQL stores use: sort column, then session id.
	slices.SortStableFunc(matches, func(a, b domain.TripRecord) int {
		if c := page.Sort.Compare(a, b); c != 0 {
			return c
		}
		return strings.Compare(a.SessionID, b.SessionID)
	})

	start := page.Offset()
	if start < 0 || page.Size < 1 {
		return nil, fmt.Errorf("find by vehicle: %w: bad page window page=%d size=%d",
			domain.ErrValidationFailed, page.Page, page.Size)
	}
	if start >= len(matches) {
		return []domain.TripRecord{}, nil
	}
	end := start + min(page.Size, len(matches)-start)
	return slices.Clone(matches[start:end]), nil
}

// Len reports how many records the partition holds.
func (m *MemoryTripRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bySession)
}

func (m *MemoryTripRepository) check(ctx context.Context) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	return ctx.Err()
}
