package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend-groupride/internal/db"
	"backend-groupride/internal/ride"

	"github.com/jackc/pgx/v5"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS ride_records (
		id TEXT PRIMARY KEY,
		ride_date TIMESTAMPTZ NOT NULL,
		distance_m DOUBLE PRECISION NOT NULL,
		duration_s DOUBLE PRECISION NOT NULL,
		avg_speed_mps DOUBLE PRECISION NOT NULL,
		calories DOUBLE PRECISION NOT NULL DEFAULT 0,
		route JSONB NOT NULL DEFAULT '[]',
		title TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_ride_records_date ON ride_records(ride_date);
`

const recordColumns = `id, ride_date, distance_m, duration_s, avg_speed_mps, calories, route, title`

// PostgresStore keeps ride history in Postgres.
type PostgresStore struct {
	notifier
	db db.Querier
}

func NewPostgresStore(q db.Querier) *PostgresStore {
	return &PostgresStore{db: q}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create ride_records: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, rec ride.Record) error {
	route, err := encodeRoute(rec.Route)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `
		INSERT INTO ride_records (`+recordColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO NOTHING
	`, rec.ID, rec.Date, rec.DistanceMeters, rec.DurationSeconds, rec.AverageSpeedMps, rec.Calories, route, rec.Title)
	if err != nil {
		return fmt.Errorf("insert ride record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateRecord
	}

	s.publish(Change{Kind: ChangeAppended, RecordID: rec.ID})
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (ride.Record, error) {
	row := s.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM ride_records WHERE id=$1`, id)
	return scanPostgresRecord(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]ride.Record, error) {
	rows, err := s.db.Query(ctx, `SELECT `+recordColumns+` FROM ride_records ORDER BY ride_date`)
	if err != nil {
		return nil, err
	}
	return collectPostgresRecords(rows)
}

func (s *PostgresStore) ListBetween(ctx context.Context, from, to time.Time) ([]ride.Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+recordColumns+` FROM ride_records
		WHERE ride_date >= $1 AND ride_date < $2
		ORDER BY ride_date
	`, from, to)
	if err != nil {
		return nil, err
	}
	return collectPostgresRecords(rows)
}

func (s *PostgresStore) Enrich(ctx context.Context, id string, e Enrichment) (ride.Record, error) {
	if e.empty() {
		return ride.Record{}, ErrEmptyEnrichment
	}

	row := s.db.QueryRow(ctx, `
		UPDATE ride_records
		SET title = COALESCE($2, title), calories = COALESCE($3, calories)
		WHERE id=$1
		RETURNING `+recordColumns, id, e.Title, e.Calories)
	rec, err := scanPostgresRecord(row)
	if err != nil {
		return ride.Record{}, err
	}

	s.publish(Change{Kind: ChangeEnriched, RecordID: id})
	return rec, nil
}

func scanPostgresRecord(row pgx.Row) (ride.Record, error) {
	var (
		rec   ride.Record
		route []byte
	)
	err := row.Scan(&rec.ID, &rec.Date, &rec.DistanceMeters, &rec.DurationSeconds, &rec.AverageSpeedMps, &rec.Calories, &route, &rec.Title)
	if errors.Is(err, pgx.ErrNoRows) {
		return ride.Record{}, ErrNotFound
	}
	if err != nil {
		return ride.Record{}, err
	}
	if rec.Route, err = decodeRoute(route); err != nil {
		return ride.Record{}, err
	}
	return rec, nil
}

func collectPostgresRecords(rows pgx.Rows) ([]ride.Record, error) {
	defer rows.Close()

	records := []ride.Record{}
	for rows.Next() {
		rec, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func encodeRoute(route []ride.Coordinate) ([]byte, error) {
	if route == nil {
		route = []ride.Coordinate{}
	}
	b, err := json.Marshal(route)
	if err != nil {
		return nil, fmt.Errorf("encode route: %w", err)
	}
	return b, nil
}

func decodeRoute(b []byte) ([]ride.Coordinate, error) {
	route := []ride.Coordinate{}
	if len(b) == 0 {
		return route, nil
	}
	if err := json.Unmarshal(b, &route); err != nil {
		return nil, fmt.Errorf("decode route: %w", err)
	}
	return route, nil
}
