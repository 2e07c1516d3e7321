package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"trip-record-service/internal/domain"
	"trip-record-service/internal/platform/obs"
	"trip-record-service/internal/ports"

	"golang.org/x/sync/singleflight"
)

// Upper bound for a lookup shared by concurrent callers.
const sharedProbeTimeout = 10 * time.Second

// RecordService creates and reads trip records on top of the yearly partitions.
type RecordService struct {
	router *ShardRouter
	engine *FanoutQueryEngine
	cache  ports.RecordCache
	now    func() time.Time

	lookups singleflight.Group
}

type Option func(*RecordService)

// WithClock replaces the clock used to reject trips that start in the future.
func WithClock(now func() time.Time) Option {
	return func(s *RecordService) { s.now = now }
}

// NewRecordService wires the service. cache may be nil to disable lookup caching.
func NewRecordService(
	router *ShardRouter,
	engine *FanoutQueryEngine,
	cache ports.RecordCache,
	opts ...Option,
) *RecordService {
	s := &RecordService{
		router: router,
		engine: engine,
		cache:  cache,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create validates rec, routes it to the partition of its start year and inserts it.
//
// Each partition only enforces session id uniqueness over its own rows, so the other
// partitions are probed first. The probe and the insert are not atomic; the partition's
// own constraint remains the final word for concurrent creates within one year.
func (s *RecordService) Create(ctx context.Context, rec domain.TripRecord) (_ domain.TripRecord, err error) {
	defer obs.Time(ctx, "records.Create")(&err)

	rec = rec.Normalize()
	if err := rec.Validate(s.now()); err != nil {
		return domain.TripRecord{}, fmt.Errorf("create record: %w", err)
	}

	target, err := s.router.Resolve(rec.StartTime)
	if err != nil {
		return domain.TripRecord{}, fmt.Errorf("create record session=%q: %w", rec.SessionID, err)
	}

	for _, p := range s.router.AllPartitions() {
		if p.Year == rec.Year() {
			continue
		}
		_, found, err := p.Store.FindBySessionID(ctx, rec.SessionID)
		if err != nil {
			return domain.TripRecord{}, fmt.Errorf("create record: uniqueness probe: %w",
				&domain.PartitionError{Year: p.Year, Op: "find by session", Err: err})
		}
		if found {
			return domain.TripRecord{}, fmt.Errorf("create record session=%q: held by partition %d: %w",
				rec.SessionID, p.Year, domain.ErrDuplicateSessionID)
		}
	}

	stored, err := target.Insert(ctx, rec)
	if err != nil {
		if errors.Is(err, ports.ErrUniqueViolation) {
			return domain.TripRecord{}, fmt.Errorf("create record session=%q: %w", rec.SessionID, domain.ErrDuplicateSessionID)
		}
		return domain.TripRecord{}, fmt.Errorf("create record: %w",
			&domain.PartitionError{Year: rec.Year(), Op: "insert", Err: err})
	}

	s.cachePut(ctx, stored)
	return stored, nil
}

// FindBySessionID returns the record with the given session id.
// Partitions are probed in ascending year order and the first hit wins.
func (s *RecordService) FindBySessionID(ctx context.Context, sessionID string) (_ domain.TripRecord, err error) {
	defer obs.Time(ctx, "records.FindBySessionID", domain.ErrRecordNotFound)(&err)

	sessionID = strings.TrimSpace(sessionID)

	if rec, ok := s.cacheGet(ctx, sessionID); ok {
		return rec, nil
	}

	// Concurrent misses for the same id share one probe. The probe is detached from
	// the caller that started it so one caller giving up does not fail the others;
	// each caller still stops waiting when its own context ends.
	ch := s.lookups.DoChan(sessionID, func() (any, error) {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedProbeTimeout)
		defer cancel()
		return s.probe(pctx, sessionID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.TripRecord{}, res.Err
		}
		return res.Val.(domain.TripRecord), nil
	case <-ctx.Done():
		return domain.TripRecord{}, fmt.Errorf("find record session=%q: %w", sessionID, ctx.Err())
	}
}

func (s *RecordService) probe(ctx context.Context, sessionID string) (domain.TripRecord, error) {
	for _, p := range s.router.AllPartitions() {
		rec, found, err := p.Store.FindBySessionID(ctx, sessionID)
		if err != nil {
			return domain.TripRecord{}, fmt.Errorf("find record session=%q: %w", sessionID,
				&domain.PartitionError{Year: p.Year, Op: "find by session", Err: err})
		}
		if found {
			s.cachePut(ctx, rec)
			return rec, nil
		}
	}
	return domain.TripRecord{}, fmt.Errorf("find record session=%q: %w", sessionID, domain.ErrRecordNotFound)
}

// FindByVehicleID returns one page of the vehicle's trips sorted by sortField/sortDirection.
// A vehicle without trips yields an empty slice, not an error.
func (s *RecordService) FindByVehicleID(
	ctx context.Context,
	vehicleID string,
	page int,
	pageSize int,
	sortField domain.SortField,
	sortDirection domain.SortDirection,
) ([]domain.TripRecord, error) {
	req := domain.PageRequest{
		Page: page,
		Size: pageSize,
		Sort: domain.SortSpec{Field: sortField, Direction: sortDirection},
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("find records by vehicle: %w", err)
	}

	recs, err := s.engine.Query(ctx, strings.TrimSpace(vehicleID), req)
	if err != nil {
		return nil, fmt.Errorf("find records by vehicle: %w", err)
	}
	return recs, nil
}

// Cache failures never fail a request; the partitions are the source of truth.
func (s *RecordService) cacheGet(ctx context.Context, sessionID string) (domain.TripRecord, bool) {
	if s.cache == nil {
		return domain.TripRecord{}, false
	}
	rec, ok, err := s.cache.Get(ctx, sessionID)
	if err != nil {
		log.Printf("req_id=%s op=records.cache.Get session=%q err=%v", obs.RequestID(ctx), sessionID, err)
		return domain.TripRecord{}, false
	}
	return rec, ok
}

func (s *RecordService) cachePut(ctx context.Context, rec domain.TripRecord) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, rec); err != nil {
		log.Printf("req_id=%s op=records.cache.Put session=%q err=%v", obs.RequestID(ctx), rec.SessionID, err)
	}
}
