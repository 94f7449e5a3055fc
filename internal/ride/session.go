package ride

import (
	"log"
	"sync"
	"time"

	"backend-groupride/internal/shared/clock"

	"github.com/google/uuid"
)

// logf receives sample-rejection diagnostics. Tests may swap it.
var logf = log.Printf

// Session owns one ride's lifecycle and derived metrics. The owning device is
// the only writer; every reader goes through Snapshot.
type Session struct {
	mu     sync.RWMutex
	clock  clock.Clock
	cfg    FilterConfig
	filter *Filter

	id        string
	state     State
	groupMode bool
	route     []RoutePoint
	distanceM float64
	rejected  int

	startedAt   time.Time
	pausedAt    time.Time
	endedAt     time.Time
	totalPaused time.Duration
}

func NewSession(cfg FilterConfig, clk clock.Clock) *Session {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Session{
		clock:  clk,
		cfg:    cfg,
		filter: NewFilter(cfg),
		state:  StateIdle,
	}
}

// Start begins a new ride from Idle or Ended. It reports false and changes
// nothing when a ride is already active or paused.
func (s *Session) Start(groupMode bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateActive || s.state == StatePaused {
		return false
	}

	s.clear()
	s.id = uuid.NewString()
	s.state = StateActive
	s.groupMode = groupMode
	s.startedAt = s.clock.Now()
	return true
}

// Ingest applies one positioning sample. Samples outside Active are dropped.
func (s *Session) Ingest(sample Sample) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return false
	}

	delta, reason := s.filter.Apply(sample)
	if reason != "" {
		s.rejected++
		logf("ride %s: dropped sample at %d (%s)", s.id, sample.TimestampMs, reason)
		return false
	}

	s.route = append(s.route, RoutePoint{Lat: sample.Lat, Lon: sample.Lon, At: sample.Time()})
	s.distanceM += delta
	return true
}

func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StatePaused:
		return nil
	case StateActive:
		s.state = StatePaused
		s.pausedAt = s.clock.Now()
		return nil
	default:
		return ErrInvalidTransition
	}
}

func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateActive:
		return nil
	case StatePaused:
		s.totalPaused += s.clock.Since(s.pausedAt)
		s.pausedAt = time.Time{}
		s.state = StateActive
		return nil
	default:
		return ErrInvalidTransition
	}
}

// End freezes the ride into a Record. Valid from Active or Paused.
func (s *Session) End() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive && s.state != StatePaused {
		return Record{}, ErrNoActiveRide
	}

	now := s.clock.Now()
	if s.state == StatePaused {
		s.totalPaused += now.Sub(s.pausedAt)
		s.pausedAt = time.Time{}
	}
	s.endedAt = now
	s.state = StateEnded

	elapsed := s.elapsedLocked().Seconds()
	route := make([]Coordinate, 0, len(s.route))
	for _, p := range s.route {
		route = append(route, Coordinate{Lat: p.Lat, Lon: p.Lon})
	}

	return Record{
		ID:              s.id,
		Date:            s.startedAt,
		DistanceMeters:  s.distanceM,
		DurationSeconds: elapsed,
		AverageSpeedMps: averageSpeed(s.distanceM, elapsed),
		Route:           route,
	}, nil
}

// Reset returns an Idle or Ended session to Idle.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateActive || s.state == StatePaused {
		return ErrInvalidTransition
	}
	s.clear()
	return nil
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	elapsed := s.elapsedLocked().Seconds()
	route := make([]RoutePoint, len(s.route))
	copy(route, s.route)

	return Snapshot{
		ID:              s.id,
		State:           s.state,
		GroupMode:       s.groupMode,
		StartedAt:       s.startedAt,
		DistanceMeters:  s.distanceM,
		ElapsedSeconds:  elapsed,
		AverageSpeedMps: averageSpeed(s.distanceM, elapsed),
		CurrentSpeedMps: s.filter.SmoothedSpeed(),
		AcceptedSamples: len(s.route),
		RejectedSamples: s.rejected,
		Route:           route,
	}
}

func (s *Session) elapsedLocked() time.Duration {
	var end time.Time
	switch s.state {
	case StateActive:
		end = s.clock.Now()
	case StatePaused:
		end = s.pausedAt
	case StateEnded:
		end = s.endedAt
	default:
		return 0
	}

	d := end.Sub(s.startedAt) - s.totalPaused
	if d < 0 {
		return 0
	}
	return d
}

func (s *Session) clear() {
	s.id = ""
	s.state = StateIdle
	s.groupMode = false
	s.route = nil
	s.distanceM = 0
	s.rejected = 0
	s.startedAt = time.Time{}
	s.pausedAt = time.Time{}
	s.endedAt = time.Time{}
	s.totalPaused = 0
	s.filter = NewFilter(s.cfg)
}

func averageSpeed(distanceM, elapsedSec float64) float64 {
	if elapsedSec <= 0 {
		return 0
	}
	return distanceM / elapsedSec
}
