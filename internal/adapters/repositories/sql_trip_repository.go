package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"trip-record-service/internal/domain"
	"trip-record-service/internal/platform/obs"
	"trip-record-service/internal/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const pgUniqueViolation = "23505"

type tripQueries struct {
	insert          string
	insertReturns   bool // insert yields the stored row via RETURNING
	findBySession   string
	findByVehicleFn func(orderBy string) string
}

var postgresQueries = tripQueries{
	insert: `
	INSERT INTO trip_records (session_id, vehicle_id, start_time, end_time, total_cost)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING session_id, vehicle_id, start_time, end_time, total_cost;
	`,
	insertReturns: true,
	findBySession: `
	SELECT session_id, vehicle_id, start_time, end_time, total_cost
	FROM trip_records
	WHERE session_id = $1;
	`,
	findByVehicleFn: func(orderBy string) string {
		return fmt.Sprintf(`
	SELECT session_id, vehicle_id, start_time, end_time, total_cost
	FROM trip_records
	WHERE vehicle_id = $1
	ORDER BY %s
	LIMIT $2 OFFSET $3;
	`, orderBy)
	},
}

var sqliteQueries = tripQueries{
	insert: `
	INSERT INTO trip_records (session_id, vehicle_id, start_time, end_time, total_cost)
	VALUES (?, ?, ?, ?, ?);
	`,
	findBySession: `
	SELECT session_id, vehicle_id, start_time, end_time, total_cost
	FROM trip_records
	WHERE session_id = ?;
	`,
	findByVehicleFn: func(orderBy string) string {
		return fmt.Sprintf(`
	SELECT session_id, vehicle_id, start_time, end_time, total_cost
	FROM trip_records
	WHERE vehicle_id = ?
	ORDER BY %s
	LIMIT ? OFFSET ?;
	`, orderBy)
	},
}

// SQL-backed implementation of the PartitionStore port.
// One repository serves one partition database (one start year).
type SQLTripRepository struct {
	DB      *sql.DB
	Dialect Dialect
	// Label used in timing logs, e.g. "2024".
	Name string
}

// NewSQLTripRepository returns a repository for a PostgreSQL partition (pgx driver).
func NewSQLTripRepository(db *sql.DB, name string) *SQLTripRepository {
	return &SQLTripRepository{DB: db, Dialect: Postgres, Name: name}
}

// NewSqliteTripRepository returns a repository for a SQLite partition file.
func NewSqliteTripRepository(db *sql.DB, name string) *SQLTripRepository {
	return &SQLTripRepository{DB: db, Dialect: SQLite, Name: name}
}

func (s *SQLTripRepository) queries() tripQueries {
	if s.Dialect == SQLite {
		return sqliteQueries
	}
	return postgresQueries
}

func (s *SQLTripRepository) Insert(ctx context.Context, rec domain.TripRecord) (_ domain.TripRecord, err error) {
	defer obs.Time(ctx, "partition."+s.Name+".Insert")(&err)

	if s.DB == nil {
		return domain.TripRecord{}, errors.New("sql trip repository: DB is nil")
	}

	q := s.queries()
	args := []any{rec.SessionID, rec.VehicleID, rec.StartTime.UTC(), rec.EndTime.UTC(), rec.TotalCost}

	// SQLite reports no declared column types for RETURNING rows, so timestamps
	// would come back as text; echo the input instead.
	stored := rec.Normalize()
	if q.insertReturns {
		stored, err = scanTrip(s.DB.QueryRowContext(ctx, q.insert, args...))
	} else {
		_, err = s.DB.ExecContext(ctx, q.insert, args...)
	}
	if err != nil {
		if s.isUniqueViolation(err) {
			return domain.TripRecord{}, fmt.Errorf("insert trip session=%q: %w", rec.SessionID, ports.ErrUniqueViolation)
		}
		return domain.TripRecord{}, fmt.Errorf("insert trip session=%q: %w", rec.SessionID, err)
	}

	return stored, nil
}

func (s *SQLTripRepository) FindBySessionID(ctx context.Context, sessionID string) (_ domain.TripRecord, _ bool, err error) {
	defer obs.Time(ctx, "partition."+s.Name+".FindBySessionID")(&err)

	if s.DB == nil {
		return domain.TripRecord{}, false, errors.New("sql trip repository: DB is nil")
	}

	rec, err := scanTrip(s.DB.QueryRowContext(ctx, s.queries().findBySession, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TripRecord{}, false, nil
	}
	if err != nil {
		return domain.TripRecord{}, false, fmt.Errorf("find trip by session: %w", err)
	}

	return rec, true, nil
}

func (s *SQLTripRepository) FindByVehicleID(
	ctx context.Context,
	vehicleID string,
	page domain.PageRequest,
) (_ []domain.TripRecord, err error) {
	defer obs.Time(ctx, "partition."+s.Name+".FindByVehicleID")(&err)

	if s.DB == nil {
		return nil, errors.New("sql trip repository: DB is nil")
	}

	orderBy, err := orderClause(page.Sort)
	if err != nil {
		return nil, fmt.Errorf("find trips by vehicle: %w", err)
	}

	// Only the whitelisted ORDER BY clause is interpolated; all values stay parameterized.
	q := s.queries().findByVehicleFn(orderBy)
	rows, err := s.DB.QueryContext(ctx, q, vehicleID, page.Size, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("find trips by vehicle: query trip_records table: %w", err)
	}
	defer rows.Close()

	trips := make([]domain.TripRecord, 0, page.Size)
	for rows.Next() {
		rec, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("find trips by vehicle: scan row: %w", err)
		}
		trips = append(trips, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find trips by vehicle: row iteration: %w", err)
	}

	return trips, nil
}

func (s *SQLTripRepository) isUniqueViolation(err error) bool {
	switch s.Dialect {
	case Postgres:
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
	case SQLite:
		var liteErr *sqlite.Error
		if !errors.As(err, &liteErr) {
			return false
		}
		code := liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
		// Without extended result codes only the primary code is reported.
		return code == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
	default:
		return false
	}
}

// orderClause renders the SortSpec as SQL. session_id breaks ties so pages are stable.
func orderClause(spec domain.SortSpec) (string, error) {
	var col string
	switch spec.Field {
	case domain.SortByStartTime, "":
		col = "start_time"
	case domain.SortByEndTime:
		col = "end_time"
	default:
		return "", fmt.Errorf("%w: unknown sort field %q", domain.ErrValidationFailed, spec.Field)
	}

	dir := "ASC"
	if spec.Direction == domain.Descending {
		dir = "DESC"
	}

	return col + " " + dir + ", session_id ASC", nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (domain.TripRecord, error) {
	var (
		rec        domain.TripRecord
		start, end time.Time
	)
	if err := row.Scan(&rec.SessionID, &rec.VehicleID, &start, &end, &rec.TotalCost); err != nil {
		return domain.TripRecord{}, err
	}
	rec.StartTime = start.UTC()
	rec.EndTime = end.UTC()
	return rec, nil
}
