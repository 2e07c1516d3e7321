package services

import (
	"context"
	"fmt"
	"slices"
	"trip-record-service/internal/domain"
	"trip-record-service/internal/platform/obs"

	"golang.org/x/sync/errgroup"
)

// FanoutQueryEngine answers paginated, sorted vehicle queries across all partitions.
//
// Every partition is asked for the same page of the same query; the partial pages are
// merged with a stable sort and cut back to the page size. There is no global offset:
// page p is taken from each partition independently. That is exact for page 0, but for
// later pages the merge can miss records that a true global sort would place in the
// window (for example when one partition holds all of the earliest trips). Callers
// get a consistent, deterministic page, not a global rank window.
type FanoutQueryEngine struct {
	router *ShardRouter
}

func NewFanoutQueryEngine(router *ShardRouter) *FanoutQueryEngine {
	return &FanoutQueryEngine{router: router}
}

// Query returns page req.Page of the vehicle's trips, merged across partitions.
// If any partition fails the whole query fails; no partial page is returned.
func (e *FanoutQueryEngine) Query(
	ctx context.Context,
	vehicleID string,
	req domain.PageRequest,
) (_ []domain.TripRecord, err error) {
	defer obs.Time(ctx, "fanout.Query")(&err)

	partitions := e.router.AllPartitions()

	// One slot per partition keeps the merge input in year order without locking.
	pages := make([][]domain.TripRecord, len(partitions))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range partitions {
		g.Go(func() error {
			recs, err := p.Store.FindByVehicleID(gctx, vehicleID, req)
			if err != nil {
				return &domain.PartitionError{Year: p.Year, Op: "find by vehicle", Err: err}
			}
			pages[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fanout query vehicle=%q: %w", vehicleID, err)
	}

	return mergePages(pages, req.Sort, req.Size), nil
}

// mergePages concatenates the partition pages in order, stable-sorts them and keeps
// the first size records. Equal keys retain partition scan order.
func mergePages(pages [][]domain.TripRecord, sort domain.SortSpec, size int) []domain.TripRecord {
	total := 0
	for _, p := range pages {
		total += len(p)
	}

	candidates := make([]domain.TripRecord, 0, total)
	for _, p := range pages {
		candidates = append(candidates, p...)
	}

	slices.SortStableFunc(candidates, sort.Compare)

	if len(candidates) > size {
		candidates = candidates[:size]
	}
	return candidates
}
