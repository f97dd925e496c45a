package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"fleet_dashboard/internal/models"
	"fleet_dashboard/internal/overlay"
	"fleet_dashboard/internal/selection"
)

// fakeSource answers every domain with data tagged by the vehicle. Fetches
// for a gated vehicle block until the gate is closed, ignoring cancellation
// so late completions can be simulated.
type fakeSource struct {
	mu       sync.Mutex
	gates    map[string]chan struct{}
	failures map[models.Domain]error
}

func newFakeSource() *fakeSource {
	return &fakeSource{gates: make(map[string]chan struct{}), failures: make(map[models.Domain]error)}
}

func (f *fakeSource) gate(id string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := make(chan struct{})
	f.gates[id] = g
	return g
}

func (f *fakeSource) fail(d models.Domain, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[d] = err
}

func (f *fakeSource) wait(id string, d models.Domain) error {
	f.mu.Lock()
	g := f.gates[id]
	err := f.failures[d]
	f.mu.Unlock()
	if g != nil {
		<-g
	}
	return err
}

func weightOf(id string) float64 {
	return float64(len(id)*10 + int(id[len(id)-1]))
}

func (f *fakeSource) Heatmap(_ context.Context, sel models.Selection) ([]models.HeatmapPoint, error) {
	if err := f.wait(sel.EntityID, models.DomainHeatmap); err != nil {
		return nil, err
	}
	return []models.HeatmapPoint{{Lat: 12, Lon: 77, Weight: weightOf(sel.EntityID)}}, nil
}

func (f *fakeSource) Health(_ context.Context, sel models.Selection) ([]models.HealthRecord, error) {
	if err := f.wait(sel.EntityID, models.DomainHealth); err != nil {
		return nil, err
	}
	return []models.HealthRecord{
		{Date: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), AnomalyScore: models.ScoreAnomaly},
		{Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), AnomalyScore: models.ScoreNormal},
	}, nil
}

func (f *fakeSource) Schedule(_ context.Context, sel models.Selection) ([]models.MaintenanceTask, error) {
	if err := f.wait(sel.EntityID, models.DomainSchedule); err != nil {
		return nil, err
	}
	at := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	return []models.MaintenanceTask{
		{SpareName: "brake pad " + sel.EntityID, VehicleID: sel.EntityID, NextReplacementAt: &at, QuantityAvailable: 2},
		{SpareName: "filter", VehicleID: sel.EntityID},
	}, nil
}

func (f *fakeSource) FailureAnalysis(_ context.Context, sel models.Selection) (models.FailureAnalysis, error) {
	if err := f.wait(sel.EntityID, models.DomainClusters); err != nil {
		return models.FailureAnalysis{}, err
	}
	return models.FailureAnalysis{
		Clusters:  []models.FailureCluster{{Label: "brake wear", Size: 3}, {Label: sel.EntityID, Size: 1}},
		Predicted: []string{sel.EntityID},
	}, nil
}

// fakeOverlay records attached layers. onPrepare, when set, runs inside
// Prepare.
type fakeOverlay struct {
	mu        sync.Mutex
	syncs     [][]models.HeatmapPoint
	active    []models.HeatmapPoint
	unmounted bool
	onPrepare func()
}

func (o *fakeOverlay) Prepare(points []models.HeatmapPoint) (*overlay.Layer, error) {
	if o.onPrepare != nil {
		o.onPrepare()
	}
	if len(points) == 0 {
		return nil, nil
	}
	return &overlay.Layer{ID: "fake", Points: points}, nil
}

func (o *fakeOverlay) Attach(layer *overlay.Layer) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.unmounted {
		return nil
	}
	var points []models.HeatmapPoint
	if layer != nil {
		points = layer.Points
	}
	o.syncs = append(o.syncs, points)
	o.active = points
	return nil
}

func (o *fakeOverlay) Unmount() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.unmounted = true
	o.active = nil
}

func (o *fakeOverlay) ActiveLayer() (overlay.Layer, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.active) == 0 {
		return overlay.Layer{}, false
	}
	return overlay.Layer{ID: "fake", Points: o.active}, true
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []models.DashboardEvent
}

func (r *fakeRecorder) Record(ev models.DashboardEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *fakeRecorder) count(typ string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func newTestController(t *testing.T, src Source) (*Controller, *selection.Store, *fakeOverlay, *fakeRecorder) {
	t.Helper()
	store := selection.NewStore()
	ov := &fakeOverlay{}
	rec := &fakeRecorder{}
	c := New(store, src, ov, Options{FetchTimeout: time.Second, Recorder: rec})
	c.Start(context.Background())
	t.Cleanup(c.Close)
	return c, store, ov, rec
}

func allSettled(v View) bool {
	for _, st := range v.States() {
		if st.Status == models.StatusLoading {
			return false
		}
	}
	return true
}

// waitFor reads views until ok returns true.
func waitFor(t *testing.T, c *Controller, ok func(View) bool) View {
	t.Helper()
	views, cancel := c.Subscribe()
	defer cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case v := <-views:
			if ok(v) {
				return v
			}
		case <-deadline:
			t.Fatalf("timed out, last view %+v", c.View())
			return View{}
		}
	}
}

func TestController_LoadsAllPanels(t *testing.T) {
	c, store, ov, rec := newTestController(t, newFakeSource())

	tok := store.SetEntity("KA01")
	v := waitFor(t, c, func(v View) bool { return v.Token == tok && allSettled(v) })

	for _, st := range v.States() {
		if st.Status != models.StatusLoaded {
			t.Fatalf("panel %s: status %s", st.Domain, st.Status)
		}
	}
	if len(v.Heatmap.Points) != 1 || v.Heatmap.Bounds == nil || !v.Heatmap.HasOverlay {
		t.Fatalf("unexpected heatmap panel %+v", v.Heatmap)
	}
	if v.Health.Series[0].Date != "2025-03-01" || v.Health.Series[1].Sign != -1 {
		t.Fatalf("health series must be date ordered, got %+v", v.Health.Series)
	}
	if len(v.Schedule.Bars) != 1 || v.Schedule.ZoomLevel != 2 || len(v.Schedule.Usage) != 1 {
		t.Fatalf("unexpected schedule panel %+v", v.Schedule)
	}
	if v.Schedule.Bars[0].Severity != models.SeverityWarning {
		t.Fatalf("unexpected severity %s", v.Schedule.Bars[0].Severity)
	}
	if fmt.Sprint(v.Clusters.Highlighted) != "[1]" {
		t.Fatalf("unexpected highlights %v", v.Clusters.Highlighted)
	}
	if _, ok := c.ActiveLayer(); !ok {
		t.Fatalf("overlay must be bound")
	}
	if len(ov.syncs) == 0 {
		t.Fatalf("overlay was never synced")
	}
	if rec.count(models.EventSelectionChanged) != 1 {
		t.Fatalf("want one selection event, got %d", rec.count(models.EventSelectionChanged))
	}
}

func TestController_LatestSelectionWins(t *testing.T) {
	src := newFakeSource()
	c, store, ov, _ := newTestController(t, src)

	slow := src.gate("KA01")
	store.SetEntity("KA01")
	tok2 := store.SetEntity("KA02")

	waitFor(t, c, func(v View) bool { return v.Token == tok2 && allSettled(v) })

	// the older generation completes after the newer one
	close(slow)
	c.Close()

	v := c.View()
	if v.Selection.EntityID != "KA02" || v.Token != tok2 {
		t.Fatalf("view moved off the latest selection: %+v", v.Selection)
	}
	for _, st := range v.States() {
		if st.Token != tok2 || st.Status != models.StatusLoaded {
			t.Fatalf("panel %s: token %d status %s", st.Domain, st.Token, st.Status)
		}
	}
	if v.Heatmap.Points[0].Weight != weightOf("KA02") {
		t.Fatalf("heatmap shows stale data: %+v", v.Heatmap.Points)
	}
	if v.Clusters.Predicted[0] != "KA02" {
		t.Fatalf("clusters show stale data: %+v", v.Clusters.Predicted)
	}
	for _, pts := range ov.syncs {
		for _, p := range pts {
			if p.Weight == weightOf("KA01") {
				t.Fatalf("overlay was bound to a superseded selection")
			}
		}
	}
}

func TestController_RapidChanges(t *testing.T) {
	src := newFakeSource()
	c, store, _, _ := newTestController(t, src)

	ids := []string{"KA01", "KA02", "KA03", "KA04", "KA05"}
	gates := make([]chan struct{}, 0, len(ids)-1)
	for _, id := range ids[:len(ids)-1] {
		gates = append(gates, src.gate(id))
	}
	var last models.Token
	for _, id := range ids {
		last = store.SetEntity(id)
	}
	waitFor(t, c, func(v View) bool { return v.Token == last && allSettled(v) })

	for i := len(gates) - 1; i >= 0; i-- {
		close(gates[i])
	}
	c.Close()

	if v := c.View(); v.Selection.EntityID != "KA05" || v.Heatmap.Points[0].Weight != weightOf("KA05") {
		t.Fatalf("want KA05 visible, got %+v", v.Selection)
	}
}

func TestController_FailedPanelDoesNotBlockOthers(t *testing.T) {
	src := newFakeSource()
	src.fail(models.DomainClusters, fmt.Errorf("%w: connection reset", models.ErrNetworkFailure))
	c, store, _, rec := newTestController(t, src)

	tok := store.SetEntity("KA01")
	v := waitFor(t, c, func(v View) bool { return v.Token == tok && allSettled(v) })

	if v.Clusters.Status != models.StatusFailed || v.Clusters.ErrorKind != models.KindNetworkFailure || v.Clusters.Error == "" {
		t.Fatalf("unexpected clusters panel %+v", v.Clusters.PanelState)
	}
	if v.Health.Status != models.StatusLoaded || v.Schedule.Status != models.StatusLoaded {
		t.Fatalf("health %s schedule %s", v.Health.Status, v.Schedule.Status)
	}
	if rec.count(models.EventPanelFailed) != 1 {
		t.Fatalf("want one panel failure event, got %d", rec.count(models.EventPanelFailed))
	}
}

func TestController_MalformedHeatmapLeavesOverlayDown(t *testing.T) {
	src := newFakeSource()
	src.fail(models.DomainHeatmap, fmt.Errorf("%w: bad row", models.ErrMalformedResponse))
	c, store, _, _ := newTestController(t, src)

	tok := store.SetEntity("KA01")
	v := waitFor(t, c, func(v View) bool { return v.Token == tok && allSettled(v) })

	if v.Heatmap.ErrorKind != models.KindMalformedResponse || v.Heatmap.HasOverlay {
		t.Fatalf("unexpected heatmap panel %+v", v.Heatmap)
	}
	if _, ok := c.ActiveLayer(); ok {
		t.Fatalf("no overlay expected after a failed heatmap")
	}
}

func TestController_IdleSelection(t *testing.T) {
	c, store, _, rec := newTestController(t, newFakeSource())

	tok := store.SetEntity("KA01")
	waitFor(t, c, func(v View) bool { return v.Token == tok && allSettled(v) })

	idle := store.SetEntity("  ")
	v := waitFor(t, c, func(v View) bool { return v.Token == idle })
	for _, st := range v.States() {
		if st.Status != models.StatusIdle {
			t.Fatalf("panel %s: want idle, got %s", st.Domain, st.Status)
		}
	}
	if len(v.Heatmap.Points) != 0 || len(v.Schedule.Bars) != 0 {
		t.Fatalf("idle view must carry no data")
	}
	if _, ok := c.ActiveLayer(); ok {
		t.Fatalf("overlay must be torn down when idle")
	}
	if rec.count(models.EventSelectionChanged) != 1 {
		t.Fatalf("idle selection must not be recorded as a change")
	}
}

func TestController_IgnoresOlderNotifications(t *testing.T) {
	c, store, _, _ := newTestController(t, newFakeSource())

	tok := store.SetEntity("KA02")
	waitFor(t, c, func(v View) bool { return v.Token == tok && allSettled(v) })

	c.OnChange(models.Selection{EntityID: "KA01"}, tok-1)
	if v := c.View(); v.Selection.EntityID != "KA02" || !allSettled(v) {
		t.Fatalf("older notification changed the view: %+v", v.Selection)
	}
}

func TestController_DelegatesSelection(t *testing.T) {
	c, _, _, _ := newTestController(t, newFakeSource())

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	c.SetEntity("KA01")
	tok := c.SetDateRange(start, time.Time{})

	sel, got := c.Selection()
	if got != tok || sel.EntityID != "KA01" || !sel.DateRange.Start.Equal(start) {
		t.Fatalf("unexpected selection %+v (token %d)", sel, got)
	}
	tok = c.Set(models.Selection{EntityID: "KA02"})
	if sel, got = c.Selection(); got != tok || !sel.DateRange.Start.IsZero() {
		t.Fatalf("Set must replace the whole selection, got %+v", sel)
	}
}

func TestController_CloseUnmountsAndClosesListeners(t *testing.T) {
	store := selection.NewStore()
	ov := &fakeOverlay{}
	c := New(store, newFakeSource(), ov, Options{})
	c.Start(context.Background())

	views, _ := c.Subscribe()
	<-views
	c.Close()
	c.Close()

	if _, ok := <-views; ok {
		t.Fatalf("listener channel must be closed")
	}
	if !ov.unmounted {
		t.Fatalf("overlay must be unmounted")
	}
	store.SetEntity("KA01")
	if v := c.View(); v.Selection.EntityID != "" {
		t.Fatalf("closed controller must ignore the store")
	}
}

func TestController_SourceErrorsAreWrapped(t *testing.T) {
	src := newFakeSource()
	src.fail(models.DomainHealth, errors.New("socket closed"))
	c, store, _, _ := newTestController(t, src)

	tok := store.SetEntity("KA01")
	v := waitFor(t, c, func(v View) bool { return v.Token == tok && allSettled(v) })
	if v.Health.ErrorKind != models.KindNetworkFailure {
		t.Fatalf("unclassified error must count as a network failure, got %s", v.Health.ErrorKind)
	}
}

func TestController_LayerIsPreparedOutsideTheStoreLock(t *testing.T) {
	store := selection.NewStore()
	var (
		mu      sync.Mutex
		blocked bool
	)
	ov := &fakeOverlay{}
	ov.onPrepare = func() {
		done := make(chan struct{})
		go func() {
			store.Current()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			mu.Lock()
			blocked = true
			mu.Unlock()
		}
	}
	c := New(store, newFakeSource(), ov, Options{FetchTimeout: 5 * time.Second})
	c.Start(context.Background())
	t.Cleanup(c.Close)

	tok := store.SetEntity("KA01")
	v := waitFor(t, c, func(v View) bool { return v.Token == tok && v.Heatmap.Status == models.StatusLoaded })
	if !v.Heatmap.HasOverlay {
		t.Fatalf("prepared layer must be attached on commit")
	}
	mu.Lock()
	defer mu.Unlock()
	if blocked {
		t.Fatalf("selection reads blocked while the layer was being prepared")
	}
}
