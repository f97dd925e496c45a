package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleet_dashboard/internal/models"
)

var (
	ErrUnknownVehicle   = errors.New("unknown vehicle")
	ErrInvalidDateRange = errors.New("invalid date range: start must be <= end")
)

// SelectionController is the part of the dashboard controller that owns
// the selection.
type SelectionController interface {
	Selection() (models.Selection, models.Token)
	SetEntity(id string) models.Token
	SetDateRange(start, end time.Time) models.Token
	Set(sel models.Selection) models.Token
}

// SelectionService validates selection changes before publishing them.
type SelectionService struct {
	ctrl      SelectionController
	directory *DirectoryService
}

func NewSelectionService(ctrl SelectionController, directory *DirectoryService) *SelectionService {
	return &SelectionService{ctrl: ctrl, directory: directory}
}

func (s *SelectionService) Current() (models.Selection, models.Token) {
	return s.ctrl.Selection()
}

// SelectEntity switches the dashboard to vehicle id. An empty id idles it.
func (s *SelectionService) SelectEntity(ctx context.Context, id string) (models.Token, error) {
	id = strings.TrimSpace(id)
	if err := s.checkVehicle(ctx, id); err != nil {
		return 0, err
	}
	return s.ctrl.SetEntity(id), nil
}

func (s *SelectionService) SelectDateRange(_ context.Context, start, end time.Time) (models.Token, error) {
	if err := checkRange(start, end); err != nil {
		return 0, err
	}
	return s.ctrl.SetDateRange(start, end), nil
}

// Select replaces vehicle and range as one change.
func (s *SelectionService) Select(ctx context.Context, sel models.Selection) (models.Token, error) {
	sel.EntityID = strings.TrimSpace(sel.EntityID)
	if err := s.checkVehicle(ctx, sel.EntityID); err != nil {
		return 0, err
	}
	if err := checkRange(sel.DateRange.Start, sel.DateRange.End); err != nil {
		return 0, err
	}
	return s.ctrl.Set(sel), nil
}

func (s *SelectionService) checkVehicle(ctx context.Context, id string) error {
	if id == "" || s.directory == nil {
		return nil
	}
	// an unreachable directory does not block selection
	if _, err := s.directory.Vehicles(ctx); err != nil {
		return nil
	}
	if !s.directory.Known(id) {
		return fmt.Errorf("%w: %s", ErrUnknownVehicle, id)
	}
	return nil
}

func checkRange(start, end time.Time) error {
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return ErrInvalidDateRange
	}
	return nil
}
