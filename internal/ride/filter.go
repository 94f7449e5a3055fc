package ride

import (
	"math"

	"backend-groupride/internal/shared/geo"
)

// RejectReason explains why the filter dropped a sample. Empty means accepted.
type RejectReason string

const (
	RejectInvalid  RejectReason = "invalid"
	RejectAccuracy RejectReason = "accuracy"
	RejectStale    RejectReason = "stale"
	RejectSpeed    RejectReason = "speed"
)

const defaultSmoothingAlpha = 0.3

type FilterConfig struct {
	MaxAccuracyM   float64
	MaxSpeedMps    float64
	SmoothingAlpha float64
}

// DefaultFilterConfig suits cycling and walking.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MaxAccuracyM:   50,
		MaxSpeedMps:    30,
		SmoothingAlpha: defaultSmoothingAlpha,
	}
}

// Filter drops GPS noise and keeps an exponentially smoothed speed.
// It remembers the last accepted point so implied speed is always measured
// between consecutive accepted fixes.
type Filter struct {
	cfg      FilterConfig
	last     *RoutePoint
	smoothed float64
}

func NewFilter(cfg FilterConfig) *Filter {
	if cfg.SmoothingAlpha <= 0 || cfg.SmoothingAlpha > 1 {
		cfg.SmoothingAlpha = defaultSmoothingAlpha
	}
	return &Filter{cfg: cfg}
}

// Apply evaluates s against the last accepted point. On acceptance it returns
// the great-circle delta in meters from that point (0 for the first point).
func (f *Filter) Apply(s Sample) (float64, RejectReason) {
	if !validCoordinate(s.Lat, s.Lon) || math.IsNaN(s.AccuracyMeters) || s.AccuracyMeters <= 0 {
		return 0, RejectInvalid
	}
	if f.cfg.MaxAccuracyM > 0 && s.AccuracyMeters > f.cfg.MaxAccuracyM {
		return 0, RejectAccuracy
	}

	at := s.Time()
	if f.last == nil {
		f.accept(s, 0)
		return 0, ""
	}

	dt := at.Sub(f.last.At).Seconds()
	if dt <= 0 {
		return 0, RejectStale
	}

	delta := geo.HaversineM(f.last.Lat, f.last.Lon, s.Lat, s.Lon)
	implied := delta / dt
	if f.cfg.MaxSpeedMps > 0 && implied > f.cfg.MaxSpeedMps {
		return 0, RejectSpeed
	}

	f.accept(s, implied)
	return delta, ""
}

// SmoothedSpeed is the current smoothed speed in m/s.
func (f *Filter) SmoothedSpeed() float64 {
	return f.smoothed
}

func (f *Filter) accept(s Sample, implied float64) {
	speed := implied
	if s.SpeedMps != nil && *s.SpeedMps >= 0 {
		speed = *s.SpeedMps
		if f.cfg.MaxSpeedMps > 0 && speed > f.cfg.MaxSpeedMps {
			speed = f.cfg.MaxSpeedMps
		}
	}

	if f.last == nil {
		f.smoothed = speed
	} else {
		f.smoothed = f.cfg.SmoothingAlpha*speed + (1-f.cfg.SmoothingAlpha)*f.smoothed
	}
	f.last = &RoutePoint{Lat: s.Lat, Lon: s.Lon, At: s.Time()}
}

func validCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
