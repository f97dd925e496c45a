package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fleet_dashboard/internal/models"
	"fleet_dashboard/internal/repository/db"
)

func TestSQLite_RoundTrip(t *testing.T) {
	conn, err := db.InitDB(filepath.Join(t.TempDir(), "dashboard.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	defer conn.Close()

	repos := NewRepository(conn)
	ctx := context.Background()

	if _, ok, err := repos.SelectionRepo.Load(ctx); err != nil || ok {
		t.Fatalf("fresh database must have no selection, got ok=%v err=%v", ok, err)
	}
	sel := models.Selection{EntityID: "KA01", DateRange: models.DateRange{Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}}
	if err := repos.SelectionRepo.Save(ctx, sel); err != nil {
		t.Fatalf("Save: %v", err)
	}
	sel.EntityID = "KA02"
	if err := repos.SelectionRepo.Save(ctx, sel); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	got, ok, err := repos.SelectionRepo.Load(ctx)
	if err != nil || !ok || got.EntityID != "KA02" || !got.DateRange.Start.Equal(sel.DateRange.Start) {
		t.Fatalf("Load = %+v, %v, %v", got, ok, err)
	}

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, typ := range []string{models.EventSelectionChanged, models.EventPanelFailed, models.EventSelectionChanged} {
		err := repos.EventRepo.Append(ctx, models.DashboardEvent{
			OccurredAt:  base.Add(time.Duration(i) * time.Minute),
			Type:        typ,
			EntityID:    "KA01",
			Description: typ,
			Metadata:    map[string]any{"i": i},
		})
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	events, err := repos.EventRepo.List(ctx, EventFilter{Type: models.EventSelectionChanged, From: base.Add(30 * time.Second)})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 1 || !events[0].OccurredAt.Equal(base.Add(2*time.Minute)) {
		t.Fatalf("unexpected events %+v", events)
	}

	if _, err := repos.Auth.Create(ctx, "alice", "hash"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repos.Auth.Create(ctx, "alice", "hash"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("want ErrUserExists, got %v", err)
	}
	u, err := repos.Auth.GetByUsername(ctx, "alice")
	if err != nil || u == nil || u.PasswordHash != "hash" {
		t.Fatalf("GetByUsername = %+v, %v", u, err)
	}
}
