package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"
	"trip-record-service/internal/platform/db"
	"trip-record-service/internal/ports"
)

// OpenPartitionStores opens one PartitionStore per year for the given driver and
// makes sure each SQL partition has the trip_records schema.
// The returned close func releases every opened database; it is never nil.
func OpenPartitionStores(
	ctx context.Context,
	driver string,
	dsns map[int]string,
) (map[int]ports.PartitionStore, func(), error) {
	stores := make(map[int]ports.PartitionStore, len(dsns))
	var opened []*sql.DB

	closeAll := func() {
		for _, conn := range opened {
			if err := conn.Close(); err != nil {
				log.Printf("close partition db: %v", err)
			}
		}
	}

	if strings.EqualFold(strings.TrimSpace(driver), "memory") {
		for year := range dsns {
			stores[year] = NewMemoryTripRepository()
		}
		return stores, closeAll, nil
	}

	dialect, err := ParseDialect(driver)
	if err != nil {
		return nil, closeAll, fmt.Errorf("open partitions: %w", err)
	}

	for year, dsn := range dsns {
		conn, err := openDialect(ctx, dialect, dsn)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("open partitions: year %d: %w", year, err)
		}
		opened = append(opened, conn)

		if err := InitSchema(ctx, conn, dialect); err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("open partitions: year %d: %w", year, err)
		}

		name := strconv.Itoa(year)
		if dialect == SQLite {
			stores[year] = NewSqliteTripRepository(conn, name)
		} else {
			stores[year] = NewSQLTripRepository(conn, name)
		}
	}

	return stores, closeAll, nil
}

func openDialect(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	if dialect == SQLite {
		return db.OpenSQLite(ctx, dsn)
	}
	return db.Open(ctx, dsn)
}
