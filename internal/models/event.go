package models

import "time"

const (
	EventSelectionChanged = "SELECTION_CHANGED"
	EventPanelFailed      = "PANEL_FAILED"
	EventReportSent       = "REPORT_SENT"
	EventReportFailed     = "REPORT_FAILED"
)

// DashboardEvent is a single activity log entry.
type DashboardEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"` // SELECTION_CHANGED | PANEL_FAILED | REPORT_SENT | REPORT_FAILED
	EntityID    string    `json:"entity_id,omitempty"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
