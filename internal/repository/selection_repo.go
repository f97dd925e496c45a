package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fleet_dashboard/internal/models"
)

const (
	selectionRowID = 1
	dateLayout     = "2006-01-02"

	upsertSelectionSQL = `
		INSERT INTO dashboard_selection (id, entity_id, start_date, end_date, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			entity_id=excluded.entity_id,
			start_date=excluded.start_date,
			end_date=excluded.end_date,
			updated_at=excluded.updated_at
	`

	selectSelectionSQL = `SELECT entity_id, start_date, end_date FROM dashboard_selection WHERE id=?`
)

type SelectionSQLite struct {
	db *sql.DB
}

func NewSelectionSQLite(db *sql.DB) *SelectionSQLite {
	return &SelectionSQLite{db: db}
}

var _ SelectionRepo = (*SelectionSQLite)(nil)

func nullDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(dateLayout), Valid: true}
}

func parseNullDate(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dateLayout, s.String, time.UTC)
}

// Save overwrites the single selection row (id always 1).
func (r *SelectionSQLite) Save(ctx context.Context, sel models.Selection) error {
	_, err := r.db.ExecContext(ctx, upsertSelectionSQL,
		selectionRowID,
		sel.EntityID,
		nullDate(sel.DateRange.Start),
		nullDate(sel.DateRange.End),
		time.Now().UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("save selection: %w", err)
	}
	return nil
}

// Load returns the saved selection. ok is false when nothing was saved yet.
func (r *SelectionSQLite) Load(ctx context.Context) (models.Selection, bool, error) {
	var (
		sel        models.Selection
		start, end sql.NullString
	)
	err := r.db.QueryRowContext(ctx, selectSelectionSQL, selectionRowID).Scan(&sel.EntityID, &start, &end)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Selection{}, false, nil
		}
		return models.Selection{}, false, fmt.Errorf("load selection: %w", err)
	}
	if sel.DateRange.Start, err = parseNullDate(start); err != nil {
		return models.Selection{}, false, fmt.Errorf("load selection start: %w", err)
	}
	if sel.DateRange.End, err = parseNullDate(end); err != nil {
		return models.Selection{}, false, fmt.Errorf("load selection end: %w", err)
	}
	return sel, true, nil
}
