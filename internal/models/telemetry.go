package models

import "time"

// HeatmapPoint is a binned location with its observation count.
type HeatmapPoint struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Weight float64 `json:"weight"`
}

// Bounds is the bounding box of a point set.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

type AnomalyScore string

const (
	ScoreNormal  AnomalyScore = "NORMAL"
	ScoreAnomaly AnomalyScore = "ANOMALY"
)

// HealthRecord is the classifier verdict for one observed day.
type HealthRecord struct {
	Date         time.Time    `json:"date"`
	AnomalyScore AnomalyScore `json:"anomaly_score"`
}

// HealthPoint is one bar of the health chart: +1 healthy, -1 anomaly.
type HealthPoint struct {
	Date string `json:"date"`
	Sign int    `json:"sign"`
}
