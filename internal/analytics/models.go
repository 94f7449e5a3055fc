package analytics

import (
	"time"

	"backend-groupride/internal/ride"
)

// DaySummary covers every ride on one calendar day.
type DaySummary struct {
	Date                 string        `json:"date"`
	Rides                []ride.Record `json:"rides"`
	TotalDistanceMeters  float64       `json:"totalDistanceMeters"`
	TotalDurationSeconds float64       `json:"totalDurationSeconds"`
}

type WeekSummary struct {
	WeekStart            string  `json:"weekStart"`
	TotalDistanceMeters  float64 `json:"totalDistanceMeters"`
	TotalDurationSeconds float64 `json:"totalDurationSeconds"`
	TotalRides           int     `json:"totalRides"`
}

type MonthSummary struct {
	Month                 string  `json:"month"`
	TotalDistanceMeters   float64 `json:"totalDistanceMeters"`
	TotalDurationSeconds  float64 `json:"totalDurationSeconds"`
	TotalRides            int     `json:"totalRides"`
	AverageDistanceMeters float64 `json:"averageDistanceMeters"`
	AverageSpeedMps       float64 `json:"averageSpeedMps"`
	CompletedGoals        int     `json:"completedGoals"`
}

type StreakState struct {
	CurrentDays int `json:"currentDays"`
	BestDays    int `json:"bestDays"`
}

// TrendPoint is one day of the recent trend. Days without rides are zero.
type TrendPoint struct {
	Date                 time.Time `json:"date"`
	TotalDistanceMiles   float64   `json:"totalDistanceMiles"`
	TotalDurationSeconds float64   `json:"totalDurationSeconds"`
	AverageSpeedMph      float64   `json:"averageSpeedMph"`
}

type GoalProgress struct {
	Date           string  `json:"date"`
	DistanceMeters float64 `json:"distanceMeters"`
	GoalMeters     float64 `json:"goalMeters"`
	Completed      bool    `json:"completed"`
}

type WeeklyComparison struct {
	ThisWeekMiles float64 `json:"thisWeekMiles"`
	LastWeekMiles float64 `json:"lastWeekMiles"`
}
