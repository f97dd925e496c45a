package service

import (
	"context"
	"sync"
	"time"

	"fleet_dashboard/internal/logger"
	"fleet_dashboard/internal/models"
)

// VehicleSource fetches the fleet list.
type VehicleSource interface {
	Vehicles(ctx context.Context) ([]models.VehicleSummary, error)
}

// DirectoryService caches the vehicle list. It is fetched on first use and
// refreshed by Run.
type DirectoryService struct {
	src VehicleSource
	log *logger.Logger

	mu       sync.RWMutex
	vehicles []models.VehicleSummary
	loaded   bool
}

func NewDirectoryService(src VehicleSource, log *logger.Logger) *DirectoryService {
	return &DirectoryService{src: src, log: log}
}

// Vehicles returns the cached list, fetching it if it was never loaded.
func (s *DirectoryService) Vehicles(ctx context.Context) ([]models.VehicleSummary, error) {
	s.mu.RLock()
	if s.loaded {
		out := s.vehicles
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()
	return s.Refresh(ctx)
}

// Refresh replaces the cache with a fresh fetch. On error the cache is kept.
func (s *DirectoryService) Refresh(ctx context.Context) ([]models.VehicleSummary, error) {
	vehicles, err := s.src.Vehicles(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.vehicles = vehicles
	s.loaded = true
	s.mu.Unlock()
	return vehicles, nil
}

// Known reports whether number is a vehicle of the cached fleet. With no
// cached list every number is accepted.
func (s *DirectoryService) Known(number string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded || len(s.vehicles) == 0 {
		return true
	}
	for _, v := range s.vehicles {
		if v.DisplayNumber == number {
			return true
		}
	}
	return false
}

// Run refreshes the list every interval until ctx is cancelled. A failed
// refresh is logged and the previous list stays in use.
func (s *DirectoryService) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil && s.log != nil {
				s.log.Warnw("directory_refresh_failed", "error", err)
			}
		}
	}
}
