package service

import (
	"context"
	"fmt"

	"fleet_dashboard/internal/logger"
	"fleet_dashboard/internal/models"
	"fleet_dashboard/internal/repository"
)

// SelectionSnapshots persists the latest selection so a restart resumes
// where operators left off. Only the newest unsaved selection is kept.
type SelectionSnapshots struct {
	repo repository.SelectionRepo
	ch   chan models.Selection
	log  *logger.Logger
}

func NewSelectionSnapshots(repo repository.SelectionRepo, log *logger.Logger) *SelectionSnapshots {
	return &SelectionSnapshots{repo: repo, ch: make(chan models.Selection, 1), log: log}
}

// Observe matches selection.Subscriber and never blocks.
func (s *SelectionSnapshots) Observe(sel models.Selection, _ models.Token) {
	select {
	case s.ch <- sel:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- sel:
	default:
	}
}

// Run saves observed selections until ctx is cancelled.
func (s *SelectionSnapshots) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			select {
			case sel := <-s.ch:
				s.save(context.Background(), sel)
			default:
			}
			return
		case sel := <-s.ch:
			s.save(ctx, sel)
		}
	}
}

func (s *SelectionSnapshots) save(ctx context.Context, sel models.Selection) {
	if err := s.repo.Save(ctx, sel); err != nil && s.log != nil {
		s.log.Warnw("selection_save_failed", "entity", sel.EntityID, "error", err)
	}
}

// InitialSelection picks the selection to start with: the saved one if any,
// else the first vehicle of the fleet when autoSelect is set. ok is false
// when the dashboard should start idle.
func InitialSelection(ctx context.Context, snapshots repository.SelectionRepo, vehicles VehicleSource, autoSelect bool) (models.Selection, bool, error) {
	saved, ok, err := snapshots.Load(ctx)
	if err != nil {
		return models.Selection{}, false, fmt.Errorf("restore selection: %w", err)
	}
	if ok && !saved.IsIdle() {
		return saved, true, nil
	}
	if !autoSelect {
		return models.Selection{}, false, nil
	}
	list, err := vehicles.Vehicles(ctx)
	if err != nil {
		return models.Selection{}, false, fmt.Errorf("list vehicles: %w", err)
	}
	if len(list) == 0 {
		return models.Selection{}, false, nil
	}
	return models.Selection{EntityID: list[0].DisplayNumber}, true, nil
}
