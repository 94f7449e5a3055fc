// Package export turns finished rides into calendar events.
package export

import (
	"context"
	"fmt"
	"time"

	"backend-groupride/internal/db"
	"backend-groupride/internal/ride"
	"backend-groupride/internal/shared/units"
)

const calendarSchema = `
	CREATE TABLE IF NOT EXISTS calendar_events (
		ride_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		starts_at TIMESTAMPTZ NOT NULL,
		ends_at TIMESTAMPTZ NOT NULL,
		notes TEXT NOT NULL DEFAULT ''
	);
`

// Event is the calendar entry written for a ride.
type Event struct {
	RideID   string
	Title    string
	StartsAt time.Time
	EndsAt   time.Time
	Notes    string
}

// Calendar writes one event per ride. Re-exporting a ride overwrites its event.
type Calendar struct {
	db db.Querier
}

func NewCalendar(q db.Querier) *Calendar {
	return &Calendar{db: q}
}

func (c *Calendar) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.Exec(ctx, calendarSchema); err != nil {
		return fmt.Errorf("create calendar_events: %w", err)
	}
	return nil
}

func (c *Calendar) SaveSessionRecord(ctx context.Context, rec ride.Record) error {
	ev := EventFor(rec)
	_, err := c.db.Exec(ctx, `
		INSERT INTO calendar_events (ride_id, title, starts_at, ends_at, notes)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (ride_id) DO UPDATE
		SET title = EXCLUDED.title, starts_at = EXCLUDED.starts_at,
			ends_at = EXCLUDED.ends_at, notes = EXCLUDED.notes
	`, ev.RideID, ev.Title, ev.StartsAt, ev.EndsAt, ev.Notes)
	if err != nil {
		return fmt.Errorf("insert calendar event: %w", err)
	}
	return nil
}

// EventFor builds the calendar entry for rec.
func EventFor(rec ride.Record) Event {
	title := rec.Title
	if title == "" {
		title = "Ride"
	}
	start := rec.Date
	end := start.Add(time.Duration(rec.DurationSeconds * float64(time.Second)))
	return Event{
		RideID:   rec.ID,
		Title:    title,
		StartsAt: start,
		EndsAt:   end,
		Notes: fmt.Sprintf("%.2f mi in %s, avg %.1f mph",
			units.MetersToMiles(rec.DistanceMeters),
			end.Sub(start).Round(time.Second),
			units.MpsToMph(rec.AverageSpeedMps)),
	}
}

var _ ride.Exporter = (*Calendar)(nil)
