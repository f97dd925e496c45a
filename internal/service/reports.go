package service

import (
	"context"

	"fleet_dashboard/internal/models"
)

// ReportSender asks the analytics backend to send the failure report.
type ReportSender interface {
	SendFailureReport(ctx context.Context) (string, error)
}

// Recorder takes activity events without blocking.
type Recorder interface {
	Record(ev models.DashboardEvent)
}

type ReportService struct {
	backend  ReportSender
	recorder Recorder
}

func NewReportService(backend ReportSender, recorder Recorder) *ReportService {
	return &ReportService{backend: backend, recorder: recorder}
}

func (s *ReportService) SendFailureReport(ctx context.Context) (string, error) {
	msg, err := s.backend.SendFailureReport(ctx)
	if err != nil {
		s.record(models.DashboardEvent{Type: models.EventReportFailed, Description: err.Error()})
		return "", err
	}
	s.record(models.DashboardEvent{Type: models.EventReportSent, Description: msg})
	return msg, nil
}

func (s *ReportService) record(ev models.DashboardEvent) {
	if s.recorder != nil {
		s.recorder.Record(ev)
	}
}
