package repository

import (
	"context"
	"database/sql"
	"time"

	"fleet_dashboard/internal/models"
)

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// SelectionRepo keeps the last dashboard selection across restarts.
type SelectionRepo interface {
	Save(ctx context.Context, sel models.Selection) error
	Load(ctx context.Context) (models.Selection, bool, error)
}

// EventFilter narrows List. Zero values do not filter.
type EventFilter struct {
	From     time.Time
	To       time.Time
	Type     string
	EntityID string
	Limit    int
}

type EventRepo interface {
	Append(ctx context.Context, e models.DashboardEvent) error
	List(ctx context.Context, f EventFilter) ([]models.DashboardEvent, error)
}

type Repository struct {
	SelectionRepo SelectionRepo
	EventRepo     EventRepo
	Auth          Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		SelectionRepo: NewSelectionSQLite(db),
		EventRepo:     NewEventSQLite(db),
		Auth:          NewUserRepository(db),
	}
}
