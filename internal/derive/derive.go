// Package derive turns normalized panel records into render projections.
// Every function is pure.
package derive

import (
	"fmt"
	"math"
	"sort"
	"time"

	"fleet_dashboard/internal/models"
)

const (
	day  = 24 * time.Hour
	week = 7 * day

	// quantity at or below which a spare is short
	lowStockThreshold = 10

	dateLayout      = "2006-01-02"
	usageDateLayout = "Mon Jan 02 2006"
	noDateLabel     = "N/A"
)

// HealthSeries maps anomalies to -1 and everything else to +1, keeping input order.
func HealthSeries(records []models.HealthRecord) []models.HealthPoint {
	out := make([]models.HealthPoint, 0, len(records))
	for _, r := range records {
		sign := 1
		if r.AnomalyScore == models.ScoreAnomaly {
			sign = -1
		}
		out = append(out, models.HealthPoint{Date: r.Date.Format(dateLayout), Sign: sign})
	}
	return out
}

// SeverityFor classifies stock on hand.
func SeverityFor(quantity int) models.Severity {
	switch {
	case quantity <= 0:
		return models.SeverityCritical
	case quantity <= lowStockThreshold:
		return models.SeverityWarning
	default:
		return models.SeverityNormal
	}
}

// ScheduleBars drops tasks without a forecast date. IDs come from the task's
// position in the input, so they are stable for a given payload.
func ScheduleBars(tasks []models.MaintenanceTask) []models.ScheduleBar {
	out := make([]models.ScheduleBar, 0, len(tasks))
	for i, task := range tasks {
		if task.NextReplacementAt == nil {
			continue
		}
		start := *task.NextReplacementAt
		out = append(out, models.ScheduleBar{
			ID:       fmt.Sprintf("task-%d", i),
			Task:     task,
			Start:    start,
			End:      start.Add(day),
			Severity: SeverityFor(task.QuantityAvailable),
		})
	}
	return out
}

// ZoomLevel picks the timeline zoom from the spread of bar start times.
// 1 means there is nothing to zoom to.
func ZoomLevel(bars []models.ScheduleBar) int {
	if len(bars) == 0 {
		return 1
	}
	earliest, latest := bars[0].Start, bars[0].Start
	for _, b := range bars[1:] {
		if b.Start.Before(earliest) {
			earliest = b.Start
		}
		if b.Start.After(latest) {
			latest = b.Start
		}
	}

	span := latest.Sub(earliest)
	switch {
	case span <= day:
		return 2
	case span <= week:
		return 3
	default:
		return 4
	}
}

// UsageTable projects bars one-to-one onto rows of the usage chart.
func UsageTable(bars []models.ScheduleBar) []models.UsageRow {
	out := make([]models.UsageRow, 0, len(bars))
	for _, b := range bars {
		label := noDateLabel
		if !b.Start.IsZero() {
			label = b.Start.Format(usageDateLayout)
		}
		out = append(out, models.UsageRow{
			SpareName:            b.Task.SpareName,
			UsageHours:           b.Task.UsageHoursBeforeLastReplacement,
			NextReplacementLabel: label,
		})
	}
	return out
}

// MatchHighlights returns, in ascending order, the indices of clusters whose
// label is exactly one of the predicted labels.
func MatchHighlights(clusters []models.FailureCluster, predicted []string) []int {
	out := []int{}
	if len(predicted) == 0 {
		return out
	}
	want := make(map[string]struct{}, len(predicted))
	for _, label := range predicted {
		want[label] = struct{}{}
	}
	for i, c := range clusters {
		if _, ok := want[c.Label]; ok {
			out = append(out, i)
		}
	}
	return out
}

// Bounds returns the bounding box of points. ok is false for an empty set.
func Bounds(points []models.HeatmapPoint) (b models.Bounds, ok bool) {
	if len(points) == 0 {
		return models.Bounds{}, false
	}
	b = models.Bounds{
		MinLat: math.Inf(1), MinLon: math.Inf(1),
		MaxLat: math.Inf(-1), MaxLon: math.Inf(-1),
	}
	for _, p := range points {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLon = math.Min(b.MinLon, p.Lon)
		b.MaxLon = math.Max(b.MaxLon, p.Lon)
	}
	return b, true
}

// SortHealth orders records by date, oldest first. Ties keep input order.
func SortHealth(records []models.HealthRecord) []models.HealthRecord {
	out := append([]models.HealthRecord(nil), records...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
