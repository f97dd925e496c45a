package models

import "time"

// Token identifies the selection generation a fetch was launched under.
type Token uint64

// DateRange bounds the heatmap query. Zero times mean no bound.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Selection is the (vehicle, date range) pair every panel is filtered by.
type Selection struct {
	EntityID  string    `json:"entity_id"`
	DateRange DateRange `json:"date_range"`
}

// IsIdle reports whether the selection names no vehicle.
func (s Selection) IsIdle() bool {
	return s.EntityID == ""
}

// VehicleSummary is one entry of the vehicle directory.
type VehicleSummary struct {
	ID            string `json:"id"`
	DisplayNumber string `json:"display_number"`
}
