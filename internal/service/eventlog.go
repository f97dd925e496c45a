package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"fleet_dashboard/internal/models"
	"fleet_dashboard/internal/repository"
)

const (
	defaultLogLimit = 200
	maxLogLimit     = 1000
)

// LogFilter narrows the activity log. Zero values do not filter.
type LogFilter struct {
	From     time.Time // inclusive
	To       time.Time // inclusive
	Type     string    // SELECTION_CHANGED | PANEL_FAILED | REPORT_SENT | REPORT_FAILED
	EntityID string
	Limit    int
}

var (
	errInvalidTimeRange = errors.New("invalid time range: from must be <= to")
	errUnknownEventType = errors.New("unknown event type")
)

var knownEventTypes = map[string]struct{}{
	models.EventSelectionChanged: {},
	models.EventPanelFailed:      {},
	models.EventReportSent:       {},
	models.EventReportFailed:     {},
}

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeFilter validates f and maps it onto the repository filter.
func normalizeFilter(f LogFilter) (repository.EventFilter, error) {
	out := repository.EventFilter{
		From:     normalizeToUTC(f.From),
		To:       normalizeToUTC(f.To),
		Type:     strings.ToUpper(strings.TrimSpace(f.Type)),
		EntityID: strings.TrimSpace(f.EntityID),
		Limit:    f.Limit,
	}
	if !out.From.IsZero() && !out.To.IsZero() && out.From.After(out.To) {
		return repository.EventFilter{}, errInvalidTimeRange
	}
	if out.Type != "" {
		if _, ok := knownEventTypes[out.Type]; !ok {
			return repository.EventFilter{}, errUnknownEventType
		}
	}
	switch {
	case out.Limit <= 0:
		out.Limit = defaultLogLimit
	case out.Limit > maxLogLimit:
		out.Limit = maxLogLimit
	}
	return out, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.DashboardEvent, error) {
	rf, err := normalizeFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, rf)
}

// IsFilterError reports whether err comes from an invalid LogFilter.
func IsFilterError(err error) bool {
	return errors.Is(err, errInvalidTimeRange) || errors.Is(err, errUnknownEventType)
}
