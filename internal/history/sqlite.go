package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"backend-groupride/internal/ride"
)

// SQLiteStore keeps ride history in the on-device SQLite database.
// Dates are stored as unix milliseconds.
type SQLiteStore struct {
	notifier
	db *sql.DB
}

// NewSQLiteStore wraps conn and creates the schema if needed.
func NewSQLiteStore(conn *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: conn}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ride_records (
		id TEXT PRIMARY KEY,
		ride_date_ms INTEGER NOT NULL,
		distance_m REAL NOT NULL,
		duration_s REAL NOT NULL,
		avg_speed_mps REAL NOT NULL,
		calories REAL NOT NULL DEFAULT 0,
		route TEXT NOT NULL DEFAULT '[]',
		title TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_ride_records_date ON ride_records(ride_date_ms);
	`

	_, err := s.db.Exec(schema)
	return err
}

const sqliteColumns = `id, ride_date_ms, distance_m, duration_s, avg_speed_mps, calories, route, title`

func (s *SQLiteStore) Save(ctx context.Context, rec ride.Record) error {
	route, err := encodeRoute(rec.Route)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO ride_records (`+sqliteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, rec.ID, rec.Date.UnixMilli(), rec.DistanceMeters, rec.DurationSeconds, rec.AverageSpeedMps, rec.Calories, string(route), rec.Title)
	if err != nil {
		return fmt.Errorf("failed to insert ride record: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrDuplicateRecord
	}

	s.publish(Change{Kind: ChangeAppended, RecordID: rec.ID})
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (ride.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM ride_records WHERE id = ?`, id)
	return scanSQLiteRecord(row)
}

func (s *SQLiteStore) List(ctx context.Context) ([]ride.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteColumns+` FROM ride_records ORDER BY ride_date_ms`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ride records: %w", err)
	}
	return collectSQLiteRecords(rows)
}

func (s *SQLiteStore) ListBetween(ctx context.Context, from, to time.Time) ([]ride.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteColumns+` FROM ride_records
		WHERE ride_date_ms >= ? AND ride_date_ms < ?
		ORDER BY ride_date_ms
	`, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to list ride records: %w", err)
	}
	return collectSQLiteRecords(rows)
}

func (s *SQLiteStore) Enrich(ctx context.Context, id string, e Enrichment) (ride.Record, error) {
	if e.empty() {
		return ride.Record{}, ErrEmptyEnrichment
	}

	var title sql.NullString
	if e.Title != nil {
		title = sql.NullString{String: *e.Title, Valid: true}
	}
	var calories sql.NullFloat64
	if e.Calories != nil {
		calories = sql.NullFloat64{Float64: *e.Calories, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE ride_records
		SET title = COALESCE(?, title), calories = COALESCE(?, calories)
		WHERE id = ?
	`, title, calories, id)
	if err != nil {
		return ride.Record{}, fmt.Errorf("failed to enrich ride record: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ride.Record{}, ErrNotFound
	}

	s.publish(Change{Kind: ChangeEnriched, RecordID: id})
	return s.Get(ctx, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row scanner) (ride.Record, error) {
	var (
		rec    ride.Record
		dateMs int64
		route  string
	)
	err := row.Scan(&rec.ID, &dateMs, &rec.DistanceMeters, &rec.DurationSeconds, &rec.AverageSpeedMps, &rec.Calories, &route, &rec.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return ride.Record{}, ErrNotFound
	}
	if err != nil {
		return ride.Record{}, fmt.Errorf("failed to scan ride record: %w", err)
	}

	rec.Date = time.UnixMilli(dateMs).UTC()
	if rec.Route, err = decodeRoute([]byte(route)); err != nil {
		return ride.Record{}, err
	}
	return rec, nil
}

func collectSQLiteRecords(rows *sql.Rows) ([]ride.Record, error) {
	defer rows.Close()

	records := []ride.Record{}
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
