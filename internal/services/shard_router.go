package services

import (
	"errors"
	"fmt"
	"slices"
	"time"
	"trip-record-service/internal/domain"
	"trip-record-service/internal/ports"
)

// Partition pairs a start year with the store that holds it.
type Partition struct {
	Year  int
	Store ports.PartitionStore
}

// ShardRouter maps a record's start year to its partition store.
//
// The year map is copied at construction and never written again, so a single
// router can be shared by any number of goroutines without locking.
type ShardRouter struct {
	byYear map[int]ports.PartitionStore
	years  []int
}

func NewShardRouter(stores map[int]ports.PartitionStore) (*ShardRouter, error) {
	if len(stores) == 0 {
		return nil, errors.New("new shard router: at least one partition is required")
	}

	byYear := make(map[int]ports.PartitionStore, len(stores))
	years := make([]int, 0, len(stores))
	for year, store := range stores {
		if store == nil {
			return nil, fmt.Errorf("new shard router: partition %d has a nil store", year)
		}
		byYear[year] = store
		years = append(years, year)
	}

	// Ascending year order is the scan order for probes and fan-out merges.
	slices.Sort(years)

	return &ShardRouter{byYear: byYear, years: years}, nil
}

// Resolve returns the store for the UTC calendar year of t.
func (r *ShardRouter) Resolve(t time.Time) (ports.PartitionStore, error) {
	year := t.UTC().Year()
	store, ok := r.byYear[year]
	if !ok {
		return nil, fmt.Errorf("resolve partition: year %d: %w", year, domain.ErrUnroutableRecord)
	}
	return store, nil
}

// AllPartitions returns every configured partition in ascending year order.
func (r *ShardRouter) AllPartitions() []Partition {
	out := make([]Partition, 0, len(r.years))
	for _, y := range r.years {
		out = append(out, Partition{Year: y, Store: r.byYear[y]})
	}
	return out
}

func (r *ShardRouter) Years() []int {
	return slices.Clone(r.years)
}
