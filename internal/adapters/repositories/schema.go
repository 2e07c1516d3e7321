package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"trip-record-service/internal/domain"

	"gopkg.in/yaml.v3"
)

// SQL flavor of a partition database.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	default:
		return fmt.Sprintf("Dialect(%d)", int(d))
	}
}

// ParseDialect maps a STORE_DRIVER value to a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return 0, fmt.Errorf("parse dialect: unsupported driver %q", s)
	}
}

// Initialize the trip_records schema in one partition database.
// Every partition holds the same table; the year split happens across databases.
func InitSchema(ctx context.Context, db *sql.DB, dialect Dialect) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var createTripsQuery string
	switch dialect {
	case Postgres:
		createTripsQuery = `
	CREATE TABLE IF NOT EXISTS trip_records (
		id BIGSERIAL PRIMARY KEY,
		session_id VARCHAR(50) NOT NULL UNIQUE,
		vehicle_id VARCHAR(50) NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		total_cost DOUBLE PRECISION NOT NULL CHECK (total_cost >= 0),
		CHECK (end_time >= start_time)
	);
	`
	case SQLite:
		createTripsQuery = `
	CREATE TABLE IF NOT EXISTS trip_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL UNIQUE,
		vehicle_id TEXT NOT NULL,
		start_time DATETIME NOT NULL,
		end_time DATETIME NOT NULL,
		total_cost REAL NOT NULL CHECK (total_cost >= 0),
		CHECK (end_time >= start_time)
	);
	`
	default:
		return fmt.Errorf("init schema: unsupported dialect %v", dialect)
	}

	createVehicleIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_trip_records_vehicle_id
	ON trip_records(vehicle_id);
	`

	createTimeIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_trip_records_start_end
	ON trip_records(start_time DESC, end_time);
	`

	statements := []string{
		createTripsQuery,
		createVehicleIndexQuery,
		createTimeIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

type TripSeed struct {
	SessionID string    `json:"session_id" yaml:"session_id"`
	VehicleID string    `json:"vehicle_id" yaml:"vehicle_id"`
	StartTime time.Time `json:"start_time" yaml:"start_time"`
	EndTime   time.Time `json:"end_time" yaml:"end_time"`
	TotalCost float64   `json:"total_cost" yaml:"total_cost"`
}

// Read trip records from a seed file: a JSON array, or a YAML list for .yaml/.yml files.
// Records are returned unvalidated; the caller routes them through the record service.
func LoadSeedFile(path string) ([]domain.TripRecord, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load seed: read %q: %w", path, err)
	}

	var data []TripSeed
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(bytes, &data); err != nil {
			return nil, fmt.Errorf("load seed: parse yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(bytes, &data); err != nil {
			return nil, fmt.Errorf("load seed: parse json: %w", err)
		}
	}

	recs := make([]domain.TripRecord, 0, len(data))
	for i, item := range data {
		if strings.TrimSpace(item.SessionID) == "" {
			return nil, fmt.Errorf("load seed: item at index %d: session_id cannot be empty", i+1)
		}
		recs = append(recs, domain.TripRecord{
			SessionID: item.SessionID,
			VehicleID: item.VehicleID,
			StartTime: item.StartTime,
			EndTime:   item.EndTime,
			TotalCost: item.TotalCost,
		})
	}

	return recs, nil
}
