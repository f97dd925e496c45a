package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fleet_dashboard/internal/logger"
	"fleet_dashboard/internal/metrics"
	"fleet_dashboard/internal/models"
	"fleet_dashboard/internal/repository"
)

// ActivityRecorder buffers dashboard events and appends them to the event
// log from a single goroutine. Record never blocks: a full buffer drops the
// event and counts it.
type ActivityRecorder struct {
	repo repository.EventRepo
	ch   chan models.DashboardEvent
	log  *logger.Logger
}

func NewActivityRecorder(repo repository.EventRepo, buffer int, log *logger.Logger) *ActivityRecorder {
	if buffer < 1 {
		buffer = 1
	}
	return &ActivityRecorder{repo: repo, ch: make(chan models.DashboardEvent, buffer), log: log}
}

func (r *ActivityRecorder) Record(ev models.DashboardEvent) {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	select {
	case r.ch <- ev:
	default:
		metrics.ActivityDropped.Inc()
	}
}

// Run writes buffered events until ctx is cancelled, then flushes what is
// already queued.
func (r *ActivityRecorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return
		case ev := <-r.ch:
			r.write(ctx, ev)
		}
	}
}

func (r *ActivityRecorder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case ev := <-r.ch:
			r.write(ctx, ev)
		default:
			return
		}
	}
}

func (r *ActivityRecorder) write(ctx context.Context, ev models.DashboardEvent) {
	if err := r.repo.Append(ctx, ev); err != nil && r.log != nil {
		r.log.Warnw("activity_append_failed", "type", ev.Type, "error", err)
	}
}
