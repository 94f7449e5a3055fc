package ride

import (
	"math"
	"time"
)

// metersPerDegreeLat matches the sphere used by geo.HaversineM.
const metersPerDegreeLat = 6371000 * math.Pi / 180

var t0 = time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC)

// northOf returns a sample d meters north of the origin, recorded at t0+offset.
func northOf(d float64, offset time.Duration) Sample {
	return Sample{
		Lat:            d / metersPerDegreeLat,
		Lon:            0,
		TimestampMs:    t0.Add(offset).UnixMilli(),
		AccuracyMeters: 5,
	}
}

func floatPtr(v float64) *float64 {
	return &v
}

func near(got, want, tol float64) bool {
	return math.Abs(got-want) <= tol
}
