package ride

import (
	"context"
	"errors"
	"fmt"
	"log"

	"backend-groupride/internal/shared/clock"
)

// HistoryStore is where finished rides are persisted locally.
type HistoryStore interface {
	Save(ctx context.Context, rec Record) error
}

// Exporter hands a finished ride to the calendar/export collaborator.
type Exporter interface {
	SaveSessionRecord(ctx context.Context, rec Record) error
}

// Uploader hands a finished ride to the remote-sync collaborator.
type Uploader interface {
	UploadRecord(ctx context.Context, rec Record) error
}

// DefaultRemoteSyncMinSeconds is the shortest ride that leaves the device.
const DefaultRemoteSyncMinSeconds = 300

type TrackerConfig struct {
	Filter               FilterConfig
	RemoteSyncMinSeconds float64
	StrictDuplicates     bool
}

// Tracker is the device-level owner of the current ride session. It routes a
// finished ride to local history first, then to export and remote sync.
type Tracker struct {
	session  *Session
	history  HistoryStore
	exporter Exporter
	uploader Uploader
	cfg      TrackerConfig
}

func NewTracker(cfg TrackerConfig, clk clock.Clock, history HistoryStore, exporter Exporter, uploader Uploader) *Tracker {
	if cfg.RemoteSyncMinSeconds <= 0 {
		cfg.RemoteSyncMinSeconds = DefaultRemoteSyncMinSeconds
	}
	return &Tracker{
		session:  NewSession(cfg.Filter, clk),
		history:  history,
		exporter: exporter,
		uploader: uploader,
		cfg:      cfg,
	}
}

func (t *Tracker) StartRide(groupMode bool) Snapshot {
	if !t.session.Start(groupMode) {
		log.Printf("ride already in progress, ignoring start")
	}
	return t.session.Snapshot()
}

func (t *Tracker) Ingest(sample Sample) bool {
	return t.session.Ingest(sample)
}

// Consume feeds samples into the session until ctx is done or samples closes.
func (t *Tracker) Consume(ctx context.Context, samples <-chan Sample) {
	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-samples:
			if !ok {
				return
			}
			t.session.Ingest(sample)
		}
	}
}

func (t *Tracker) PauseRide() error {
	return t.session.Pause()
}

func (t *Tracker) ResumeRide() error {
	return t.session.Resume()
}

// EndRide freezes the ride and persists it. Export and remote sync failures
// are logged and never fail the call; the record is already in history.
func (t *Tracker) EndRide(ctx context.Context) (Record, error) {
	rec, err := t.session.End()
	if err != nil {
		return Record{}, err
	}

	if t.history != nil {
		if err := t.history.Save(ctx, rec); err != nil {
			if !errors.Is(err, ErrDuplicateRecord) || t.cfg.StrictDuplicates {
				return rec, fmt.Errorf("save ride record: %w", err)
			}
			log.Printf("ride %s already in history, skipping duplicate", rec.ID)
		}
	}

	if t.exporter != nil {
		if err := t.exporter.SaveSessionRecord(ctx, rec); err != nil {
			log.Printf("export ride %s failed: %v", rec.ID, err)
		}
	}

	if t.uploader != nil && ShouldSyncRemotely(rec, t.cfg.RemoteSyncMinSeconds) {
		if err := t.uploader.UploadRecord(ctx, rec); err != nil {
			log.Printf("remote sync of ride %s failed: %v", rec.ID, err)
		}
	}

	return rec, nil
}

func (t *Tracker) Reset() error {
	return t.session.Reset()
}

func (t *Tracker) Snapshot() Snapshot {
	return t.session.Snapshot()
}

// ShouldSyncRemotely reports whether a record is long enough to leave the device.
func ShouldSyncRemotely(rec Record, minSeconds float64) bool {
	return rec.DurationSeconds >= minSeconds
}
