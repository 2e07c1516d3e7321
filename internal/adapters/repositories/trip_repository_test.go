package repositories

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
	"trip-record-service/internal/domain"
	"trip-record-service/internal/platform/db"
	"trip-record-service/internal/ports"
)

func trip(session, vehicle string, start time.Time, dur time.Duration) domain.TripRecord {
	return domain.TripRecord{
		SessionID: session,
		VehicleID: vehicle,
		StartTime: start,
		EndTime:   start.Add(dur),
		TotalCost: 12.5,
	}
}

func newSqliteRepo(t *testing.T) *SQLTripRepository {
	t.Helper()
	ctx := context.Background()

	conn, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "trips-2023.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := InitSchema(ctx, conn, SQLite); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	// Running it twice must be harmless.
	if err := InitSchema(ctx, conn, SQLite); err != nil {
		t.Fatalf("init schema again: %v", err)
	}

	return NewSqliteTripRepository(conn, "2023")
}

// Both adapters must honor the same PartitionStore contract.
func TestPartitionStoreContract(t *testing.T) {
	stores := map[string]func(t *testing.T) ports.PartitionStore{
		"memory": func(t *testing.T) ports.PartitionStore { return NewMemoryTripRepository() },
		"sqlite": func(t *testing.T) ports.PartitionStore { return newSqliteRepo(t) },
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)

			base := time.Date(2023, 11, 23, 10, 0, 0, 0, time.UTC)
			recs := []domain.TripRecord{
				trip("session-b", "vehicle-1", base.Add(48*time.Hour), 30*time.Minute),
				trip("session-a", "vehicle-1", base, 5*time.Hour),
				trip("session-c", "vehicle-1", base.Add(24*time.Hour), time.Hour),
				trip("session-x", "vehicle-2", base, time.Hour),
			}
			for _, r := range recs {
				got, err := store.Insert(ctx, r)
				if err != nil {
					t.Fatalf("insert %s: %v", r.SessionID, err)
				}
				if !got.Equal(r) {
					t.Fatalf("insert returned %+v, want %+v", got, r)
				}
			}

			_, err := store.Insert(ctx, recs[0])
			if !errors.Is(err, ports.ErrUniqueViolation) {
				t.Fatalf("duplicate insert err = %v, want ErrUniqueViolation", err)
			}

			got, found, err := store.FindBySessionID(ctx, "session-c")
			if err != nil || !found {
				t.Fatalf("find session-c: found=%v err=%v", found, err)
			}
			if !got.Equal(recs[2]) {
				t.Fatalf("find session-c = %+v, want %+v", got, recs[2])
			}

			_, found, err = store.FindBySessionID(ctx, "missing-session")
			if err != nil || found {
				t.Fatalf("find missing: found=%v err=%v", found, err)
			}

			asc := domain.PageRequest{Page: 0, Size: 2, Sort: domain.SortSpec{Field: domain.SortByStartTime, Direction: domain.Ascending}}
			page, err := store.FindByVehicleID(ctx, "vehicle-1", asc)
			if err != nil {
				t.Fatalf("find by vehicle: %v", err)
			}
			assertSessions(t, page, "session-a", "session-c")

			asc.Page = 1
			page, err = store.FindByVehicleID(ctx, "vehicle-1", asc)
			if err != nil {
				t.Fatalf("find by vehicle page 1: %v", err)
			}
			assertSessions(t, page, "session-b")

			byEndDesc := domain.PageRequest{Page: 0, Size: 3, Sort: domain.SortSpec{Field: domain.SortByEndTime, Direction: domain.Descending}}
			page, err = store.FindByVehicleID(ctx, "vehicle-1", byEndDesc)
			if err != nil {
				t.Fatalf("find by vehicle end desc: %v", err)
			}
			// ends: a=15:00 day0, c=11:00 day1, b=10:30 day2
			assertSessions(t, page, "session-b", "session-c", "session-a")

			page, err = store.FindByVehicleID(ctx, "vehicle-404", asc)
			if err != nil {
				t.Fatalf("find unknown vehicle: %v", err)
			}
			if page == nil || len(page) != 0 {
				t.Fatalf("unknown vehicle page = %#v, want empty non-nil slice", page)
			}
		})
	}
}

func TestMemoryTripRepositoryFailWith(t *testing.T) {
	repo := NewMemoryTripRepository()
	repo.FailWith = errors.New("disk on fire")

	if _, _, err := repo.FindBySessionID(context.Background(), "session-a"); err == nil {
		t.Fatalf("expected injected failure")
	}
}

func TestMemoryTripRepositoryRejectsWrappedOffset(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTripRepository()
	start := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	if _, err := repo.Insert(ctx, trip("session-a", "vehicle-1", start, time.Hour)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Page*Size wraps to a negative offset.
	req := domain.PageRequest{
		Page: 3074457345618258603,
		Size: 4,
		Sort: domain.SortSpec{Field: domain.SortByStartTime, Direction: domain.Ascending},
	}
	if _, err := repo.FindByVehicleID(ctx, "vehicle-1", req); !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("err = %v, want ErrValidationFailed", err)
	}

	req.Page = domain.MaxPage
	req.Size = domain.MaxPageSize
	got, err := repo.FindByVehicleID(ctx, "vehicle-1", req)
	if err != nil {
		t.Fatalf("last page: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("last page = %d records, want 0", len(got))
	}
}

func TestOrderClause(t *testing.T) {
	got, err := orderClause(domain.SortSpec{Field: domain.SortByEndTime, Direction: domain.Descending})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "end_time DESC, session_id ASC"; got != want {
		t.Fatalf("orderClause = %q, want %q", got, want)
	}

	if _, err := orderClause(domain.SortSpec{Field: "total_cost; DROP TABLE trip_records"}); !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed for unknown field, got %v", err)
	}
}

func TestParseDialect(t *testing.T) {
	if d, err := ParseDialect("PGX"); err != nil || d != Postgres {
		t.Fatalf("ParseDialect(PGX) = %v, %v", d, err)
	}
	if d, err := ParseDialect("sqlite"); err != nil || d != SQLite {
		t.Fatalf("ParseDialect(sqlite) = %v, %v", d, err)
	}
	if _, err := ParseDialect("oracle"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func assertSessions(t *testing.T, got []domain.TripRecord, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d (%v)", len(got), len(want), want)
	}
	for i := range want {
		if got[i].SessionID != want[i] {
			t.Fatalf("record %d = %q, want %q", i, got[i].SessionID, want[i])
		}
	}
}

func TestOpenPartitionStoresSQLite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	stores, closeAll, err := OpenPartitionStores(ctx, "sqlite", map[int]string{
		2023: filepath.Join(dir, "trips-2023.db"),
		2024: filepath.Join(dir, "trips-2024.db"),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closeAll()

	if len(stores) != 2 {
		t.Fatalf("stores = %d, want 2", len(stores))
	}

	start := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	if _, err := stores[2024].Insert(ctx, trip("session-001", "vehicle-1", start, time.Hour)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, ok, _ := stores[2023].FindBySessionID(ctx, "session-001"); ok {
		t.Fatalf("record leaked into the 2023 partition")
	}
}

func TestOpenPartitionStoresMemoryAndUnknownDriver(t *testing.T) {
	ctx := context.Background()

	stores, closeAll, err := OpenPartitionStores(ctx, "memory", map[int]string{2023: "", 2024: ""})
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	closeAll()
	if _, ok := stores[2023].(*MemoryTripRepository); !ok {
		t.Fatalf("store = %T, want *MemoryTripRepository", stores[2023])
	}

	if _, closeAll, err := OpenPartitionStores(ctx, "mysql", map[int]string{2023: "x"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	} else {
		closeAll()
	}
}
