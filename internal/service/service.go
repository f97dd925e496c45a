package service

import (
	"context"
	"time"

	"fleet_dashboard/internal/dashboard"
	"fleet_dashboard/internal/logger"
	"fleet_dashboard/internal/models"
	"fleet_dashboard/internal/repository"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Selection changes what every panel shows.
type Selection interface {
	Current() (models.Selection, models.Token)
	SelectEntity(ctx context.Context, id string) (models.Token, error)
	SelectDateRange(ctx context.Context, start, end time.Time) (models.Token, error)
	Select(ctx context.Context, sel models.Selection) (models.Token, error)
}

// Dashboard exposes the rendered panels.
type Dashboard interface {
	View() dashboard.View
	Subscribe() (<-chan dashboard.View, func())
}

// Directory lists the fleet.
type Directory interface {
	Vehicles(ctx context.Context) ([]models.VehicleSummary, error)
	Run(ctx context.Context, every time.Duration)
}

// Reports forwards operator requests to the analytics backend.
type Reports interface {
	SendFailureReport(ctx context.Context) (string, error)
}

// EventLog exposes the activity log with filtering.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.DashboardEvent, error)
}

// Service aggregates everything the HTTP layer needs.
type Service struct {
	Authorization
	Selection
	Dashboard
	Directory
	Reports
	EventLog
}

// Deps are the non-repository collaborators of the services.
type Deps struct {
	Controller *dashboard.Controller
	Vehicles   VehicleSource
	Backend    ReportSender
	Activity   *ActivityRecorder
	Auth       AuthConfig
	Log        *logger.Logger
}

func NewService(repos *repository.Repository, deps Deps) *Service {
	directory := NewDirectoryService(deps.Vehicles, deps.Log.Named("directory"))
	var recorder Recorder
	if deps.Activity != nil {
		recorder = deps.Activity
	}
	return &Service{
		Authorization: NewAuthService(repos.Auth, deps.Auth),
		Selection:     NewSelectionService(deps.Controller, directory),
		Dashboard:     deps.Controller,
		Directory:     directory,
		Reports:       NewReportService(deps.Backend, recorder),
		EventLog:      NewEventLogService(repos.EventRepo),
	}
}
