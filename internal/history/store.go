package history

import (
	"context"
	"errors"
	"time"

	"backend-groupride/internal/ride"
)

var (
	// ErrDuplicateRecord aliases the ride sentinel so callers on either side can match it.
	ErrDuplicateRecord = ride.ErrDuplicateRecord
	ErrNotFound        = errors.New("ride record not found")
	ErrEmptyEnrichment = errors.New("nothing to update")
)

// Store is the append-only log of finished rides. Only title and calories
// may change after a record is saved.
type Store interface {
	Save(ctx context.Context, rec ride.Record) error
	Get(ctx context.Context, id string) (ride.Record, error)
	List(ctx context.Context) ([]ride.Record, error)
	// ListBetween returns records dated in [from, to), oldest first.
	ListBetween(ctx context.Context, from, to time.Time) ([]ride.Record, error)
	Enrich(ctx context.Context, id string, e Enrichment) (ride.Record, error)
	Subscribe() (<-chan Change, func())
}

// Enrichment carries the post-hoc fields of a record. Nil fields are left alone.
type Enrichment struct {
	Title    *string  `json:"title,omitempty"`
	Calories *float64 `json:"calories,omitempty"`
}

func (e Enrichment) empty() bool {
	return e.Title == nil && e.Calories == nil
}

type ChangeKind string

const (
	ChangeAppended ChangeKind = "appended"
	ChangeEnriched ChangeKind = "enriched"
)

// Change is sent to subscribers after a record is appended or enriched.
type Change struct {
	Kind     ChangeKind
	RecordID string
}

var (
	_ ride.HistoryStore = (*PostgresStore)(nil)
	_ ride.HistoryStore = (*SQLiteStore)(nil)
	_ Store             = (*PostgresStore)(nil)
	_ Store             = (*SQLiteStore)(nil)
)
