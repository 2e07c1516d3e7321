package cache

import (
	"context"
	"sync"
	"trip-record-service/internal/domain"
)

// In-process record cache, used when no Redis is configured.
// Entries live for the lifetime of the process.
type MemoryRecordCache struct {
	m sync.Map
}

func NewMemoryRecordCache() *MemoryRecordCache {
	return &MemoryRecordCache{}
}

func (c *MemoryRecordCache) Get(_ context.Context, sessionID string) (domain.TripRecord, bool, error) {
	v, ok := c.m.Load(sessionID)
	if !ok {
		return domain.TripRecord{}, false, nil
	}
	return v.(domain.TripRecord), true, nil
}

func (c *MemoryRecordCache) Put(_ context.Context, rec domain.TripRecord) error {
	c.m.Store(rec.SessionID, rec)
	return nil
}
