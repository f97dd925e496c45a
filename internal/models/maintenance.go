package models

import "time"

type Severity string

const (
	SeverityNormal   Severity = "NORMAL"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// MaintenanceTask is a predicted spare replacement for one vehicle.
type MaintenanceTask struct {
	ID                              string     `json:"id"`
	SpareName                       string     `json:"spare_name"`
	VehicleID                       string     `json:"vehicle_id"`
	NextReplacementAt               *time.Time `json:"next_replacement_at"` // nil when no forecast
	UsageHoursBeforeLastReplacement float64    `json:"usage_hours_before_last_replacement"`
	QuantityAvailable               int        `json:"quantity_available"`
	UnitPrice                       float64    `json:"unit_price,omitempty"`
	EmergencyCondition              float64    `json:"emergency_condition,omitempty"`
	TamperCondition                 float64    `json:"tamper_condition,omitempty"`
}

// ScheduleBar is a one-day bar on the replacement timeline.
type ScheduleBar struct {
	ID       string          `json:"id"`
	Task     MaintenanceTask `json:"task"`
	Start    time.Time       `json:"start"`
	End      time.Time       `json:"end"`
	Severity Severity        `json:"severity"`
}

// UsageRow feeds the spare usage bar chart.
type UsageRow struct {
	SpareName            string  `json:"spare_name"`
	UsageHours           float64 `json:"usage_hours"`
	NextReplacementLabel string  `json:"next_replacement_label"`
}
