package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fleet_dashboard/internal/models"
)

type fakeSender struct {
	msg string
	err error
}

func (f fakeSender) SendFailureReport(context.Context) (string, error) { return f.msg, f.err }

type captureRecorder struct {
	mu     sync.Mutex
	events []models.DashboardEvent
}

func (r *captureRecorder) Record(ev models.DashboardEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func TestReportService(t *testing.T) {
	tests := []struct {
		name     string
		sender   fakeSender
		wantMsg  string
		wantType string
	}{
		{"sent", fakeSender{msg: "Failure report sent successfully"}, "Failure report sent successfully", models.EventReportSent},
		{"rejected", fakeSender{err: errors.New("smtp down")}, "", models.EventReportFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := &captureRecorder{}
			msg, err := NewReportService(tc.sender, rec).SendFailureReport(context.Background())
			if (err != nil) != (tc.sender.err != nil) {
				t.Fatalf("err = %v", err)
			}
			if msg != tc.wantMsg {
				t.Fatalf("msg = %q, want %q", msg, tc.wantMsg)
			}
			if len(rec.events) != 1 || rec.events[0].Type != tc.wantType {
				t.Fatalf("recorded %+v, want one %s", rec.events, tc.wantType)
			}
		})
	}
}

func TestReportService_NilRecorder(t *testing.T) {
	if _, err := NewReportService(fakeSender{msg: "ok"}, nil).SendFailureReport(context.Background()); err != nil {
		t.Fatalf("SendFailureReport: %v", err)
	}
}
