package ride

import "time"

// State is the lifecycle state of a ride session.
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
	StatePaused State = "paused"
	StateEnded  State = "ended"
)

// Sample is one fix from the positioning provider.
type Sample struct {
	Lat            float64  `json:"lat"`
	Lon            float64  `json:"lon"`
	TimestampMs    int64    `json:"timestampMs"`
	AccuracyMeters float64  `json:"accuracyMeters"`
	SpeedMps       *float64 `json:"speedMps,omitempty"`
}

// Time returns the sample timestamp.
func (s Sample) Time() time.Time {
	return time.UnixMilli(s.TimestampMs)
}

type RoutePoint struct {
	Lat float64   `json:"lat"`
	Lon float64   `json:"lon"`
	At  time.Time `json:"at"`
}

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Record is the frozen, persisted form of a finished ride. Only Title and
// Calories may change after it is created.
type Record struct {
	ID              string       `json:"id"`
	Date            time.Time    `json:"date"`
	DistanceMeters  float64      `json:"distanceMeters"`
	DurationSeconds float64      `json:"durationSeconds"`
	AverageSpeedMps float64      `json:"averageSpeedMps"`
	Calories        float64      `json:"calories"`
	Route           []Coordinate `json:"route"`
	Title           string       `json:"title,omitempty"`
}

// Snapshot is a consistent, read-only view of a session.
type Snapshot struct {
	ID              string       `json:"id"`
	State           State        `json:"state"`
	GroupMode       bool         `json:"groupMode"`
	StartedAt       time.Time    `json:"startedAt"`
	DistanceMeters  float64      `json:"distanceMeters"`
	ElapsedSeconds  float64      `json:"elapsedSeconds"`
	AverageSpeedMps float64      `json:"averageSpeedMps"`
	CurrentSpeedMps float64      `json:"currentSpeedMps"`
	AcceptedSamples int          `json:"acceptedSamples"`
	RejectedSamples int          `json:"rejectedSamples"`
	Route           []RoutePoint `json:"route"`
}
