// Package dashboard keeps the four panels consistent with the shared
// selection.
package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fleet_dashboard/internal/derive"
	"fleet_dashboard/internal/logger"
	"fleet_dashboard/internal/metrics"
	"fleet_dashboard/internal/models"
	"fleet_dashboard/internal/overlay"
	"fleet_dashboard/internal/pipeline"
	"fleet_dashboard/internal/selection"
)

// Source loads the panel domains for a selection.
type Source interface {
	Heatmap(ctx context.Context, sel models.Selection) ([]models.HeatmapPoint, error)
	Health(ctx context.Context, sel models.Selection) ([]models.HealthRecord, error)
	Schedule(ctx context.Context, sel models.Selection) ([]models.MaintenanceTask, error)
	FailureAnalysis(ctx context.Context, sel models.Selection) (models.FailureAnalysis, error)
}

// Overlay is the heatmap layer owner. Prepare does the encoding work and
// runs outside any lock; Attach only swaps the layer on the widget.
type Overlay interface {
	Prepare(points []models.HeatmapPoint) (*overlay.Layer, error)
	Attach(layer *overlay.Layer) error
	Unmount()
	ActiveLayer() (overlay.Layer, bool)
}

// Recorder receives activity events. Record must not block.
type Recorder interface {
	Record(ev models.DashboardEvent)
}

type Options struct {
	// FetchTimeout bounds each backend call.
	FetchTimeout time.Duration
	Recorder     Recorder
	Log          *logger.Logger
}

type Controller struct {
	store   *selection.Store
	overlay Overlay
	opts    Options

	heatmap  *pipeline.Pipeline[heatmapLoad]
	health   *pipeline.Pipeline[[]models.HealthRecord]
	schedule *pipeline.Pipeline[[]models.MaintenanceTask]
	clusters *pipeline.Pipeline[models.FailureAnalysis]

	// mu guards the fields below. It may be taken while the store lock is
	// held (commits), never the other way round.
	mu          sync.Mutex
	view        View
	token       models.Token
	parent      context.Context
	cancel      context.CancelFunc
	listeners   map[int]chan View
	nextID      int
	unsubscribe func()
	closed      bool

	inflight sync.WaitGroup
}

func New(store *selection.Store, src Source, ov Overlay, opts Options) *Controller {
	c := &Controller{
		store:     store,
		overlay:   ov,
		opts:      opts,
		view:      resetView(models.Selection{}, 0, models.StatusIdle),
		parent:    context.Background(),
		listeners: make(map[int]chan View),
	}

	c.heatmap = pipeline.New(models.DomainHeatmap, c.fetchHeatmap(src), store,
		pipeline.Options[heatmapLoad]{Timeout: opts.FetchTimeout, OnCommit: c.applyHeatmap, Log: opts.Log})
	c.health = pipeline.New(models.DomainHealth, src.Health, store,
		pipeline.Options[[]models.HealthRecord]{Timeout: opts.FetchTimeout, OnCommit: c.applyHealth, Log: opts.Log})
	c.schedule = pipeline.New(models.DomainSchedule, src.Schedule, store,
		pipeline.Options[[]models.MaintenanceTask]{Timeout: opts.FetchTimeout, OnCommit: c.applySchedule, Log: opts.Log})
	c.clusters = pipeline.New(models.DomainClusters, src.FailureAnalysis, store,
		pipeline.Options[models.FailureAnalysis]{Timeout: opts.FetchTimeout, OnCommit: c.applyClusters, Log: opts.Log})
	return c
}

// Start subscribes to the store and acts on the current selection. Fetches
// are cancelled when ctx is done or Close is called.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	c.parent = ctx
	c.mu.Unlock()

	unsubscribe := c.store.Subscribe(c.OnChange)

	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.mu.Unlock()

	c.OnChange(c.store.Current())
}

// Close stops reacting to the store, cancels in-flight fetches, waits for
// them and tears the overlay down.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsubscribe := c.unsubscribe
	if c.cancel != nil {
		c.cancel()
	}
	for id, ch := range c.listeners {
		delete(c.listeners, id)
		close(ch)
	}
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.inflight.Wait()
	c.overlay.Unmount()
}

// OnChange reacts to a published selection. Notifications older than the
// last one seen are ignored.
func (c *Controller) OnChange(sel models.Selection, token models.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || token <= c.token {
		return
	}
	c.token = token
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	metrics.SelectionGeneration.Set(float64(token))

	if sel.IsIdle() {
		c.view = resetView(sel, token, models.StatusIdle)
		c.attachOverlay(nil, 0)
		c.publishLocked()
		if c.opts.Log != nil {
			c.opts.Log.Debugw("selection_idle", "token", token)
		}
		return
	}

	c.view = resetView(sel, token, models.StatusLoading)
	c.attachOverlay(nil, 0)
	c.publishLocked()
	c.record(models.DashboardEvent{
		Type:        models.EventSelectionChanged,
		EntityID:    sel.EntityID,
		Description: describeSelection(sel),
		Metadata:    map[string]any{"token": token},
	})
	if c.opts.Log != nil {
		c.opts.Log.Infow("selection_changed", "entity", sel.EntityID, "token", token)
	}

	ctx, cancel := context.WithCancel(c.parent)
	c.cancel = cancel
	c.inflight.Add(1)
	go c.fanOut(ctx, sel, token)
}

// fanOut loads every domain in parallel. A failed domain does not cancel
// the others.
func (c *Controller) fanOut(ctx context.Context, sel models.Selection, token models.Token) {
	defer c.inflight.Done()

	var g errgroup.Group
	g.Go(func() error { c.heatmap.Load(ctx, sel, token); return nil })
	g.Go(func() error { c.health.Load(ctx, sel, token); return nil })
	g.Go(func() error { c.schedule.Load(ctx, sel, token); return nil })
	g.Go(func() error { c.clusters.Load(ctx, sel, token); return nil })
	_ = g.Wait()
}

// heatmapLoad is a fetched heatmap with its overlay layer already built.
type heatmapLoad struct {
	Points []models.HeatmapPoint
	Layer  *overlay.Layer
}

func (c *Controller) fetchHeatmap(src Source) pipeline.FetchFunc[heatmapLoad] {
	return func(ctx context.Context, sel models.Selection) (heatmapLoad, error) {
		points, err := src.Heatmap(ctx, sel)
		if err != nil {
			return heatmapLoad{}, err
		}
		layer, err := c.overlay.Prepare(points)
		if err != nil {
			return heatmapLoad{}, fmt.Errorf("%w: %v", models.ErrMalformedResponse, err)
		}
		return heatmapLoad{Points: points, Layer: layer}, nil
	}
}

// applyX run under the store lock for results of the current generation.

func (c *Controller) applyHeatmap(res pipeline.Result[heatmapLoad]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acceptLocked(res.Token) {
		return
	}
	p := &c.view.Heatmap
	p.PanelState = stateOf(res.Domain, res.Status, res.Token, res.Kind, res.Summary(), len(res.Data.Points))
	if res.Status == models.StatusLoaded {
		p.Points = res.Data.Points
		if b, ok := derive.Bounds(res.Data.Points); ok {
			p.Bounds = &b
		}
		c.attachOverlay(res.Data.Layer, len(res.Data.Points))
		_, p.HasOverlay = c.overlay.ActiveLayer()
	}
	c.finishLocked(res.Domain, res.Status, res.Summary())
}

func (c *Controller) applyHealth(res pipeline.Result[[]models.HealthRecord]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acceptLocked(res.Token) {
		return
	}
	p := &c.view.Health
	p.PanelState = stateOf(res.Domain, res.Status, res.Token, res.Kind, res.Summary(), len(res.Data))
	if res.Status == models.StatusLoaded {
		p.Series = derive.HealthSeries(derive.SortHealth(res.Data))
	}
	c.finishLocked(res.Domain, res.Status, res.Summary())
}

func (c *Controller) applySchedule(res pipeline.Result[[]models.MaintenanceTask]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acceptLocked(res.Token) {
		return
	}
	p := &c.view.Schedule
	if res.Status == models.StatusLoaded {
		p.Bars = derive.ScheduleBars(res.Data)
		p.ZoomLevel = derive.ZoomLevel(p.Bars)
		p.Usage = derive.UsageTable(p.Bars)
	}
	p.PanelState = stateOf(res.Domain, res.Status, res.Token, res.Kind, res.Summary(), len(p.Bars))
	c.finishLocked(res.Domain, res.Status, res.Summary())
}

func (c *Controller) applyClusters(res pipeline.Result[models.FailureAnalysis]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acceptLocked(res.Token) {
		return
	}
	p := &c.view.Clusters
	p.PanelState = stateOf(res.Domain, res.Status, res.Token, res.Kind, res.Summary(), len(res.Data.Clusters))
	if res.Status == models.StatusLoaded {
		p.Clusters = res.Data.Clusters
		p.Predicted = res.Data.Predicted
		p.Highlighted = derive.MatchHighlights(res.Data.Clusters, res.Data.Predicted)
		p.Silhouette = res.Data.Silhouette
	}
	c.finishLocked(res.Domain, res.Status, res.Summary())
}

func (c *Controller) acceptLocked(token models.Token) bool {
	return !c.closed && token == c.token
}

func (c *Controller) finishLocked(domain models.Domain, status models.Status, summary string) {
	if status == models.StatusFailed {
		c.record(models.DashboardEvent{
			Type:        models.EventPanelFailed,
			EntityID:    c.view.Selection.EntityID,
			Description: summary,
			Metadata:    map[string]any{"domain": domain, "token": c.token},
		})
	}
	c.publishLocked()
}

func stateOf(domain models.Domain, status models.Status, token models.Token, kind models.ErrorKind, summary string, count int) PanelState {
	ps := PanelState{Domain: domain, Status: status, Token: token, Count: count}
	if status == models.StatusFailed {
		ps.ErrorKind = kind
		ps.Error = summary
		ps.Count = 0
	}
	return ps
}

func (c *Controller) attachOverlay(layer *overlay.Layer, points int) {
	if err := c.overlay.Attach(layer); err != nil && c.opts.Log != nil {
		c.opts.Log.Warnw("overlay_sync_failed", "points", points, "error", err)
	}
}

func (c *Controller) record(ev models.DashboardEvent) {
	if c.opts.Recorder != nil {
		c.opts.Recorder.Record(ev)
	}
}

// publishLocked hands the view to every listener. A listener keeps only the
// latest view it has not read yet.
func (c *Controller) publishLocked() {
	v := c.view
	for _, ch := range c.listeners {
		select {
		case ch <- v:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

// Subscribe returns a channel that receives the view after every change,
// starting with the current one.
func (c *Controller) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	if c.closed {
		close(ch)
		c.mu.Unlock()
		return ch, func() {}
	}
	c.listeners[id] = ch
	ch <- c.view
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.listeners[id]; ok {
				delete(c.listeners, id)
				close(ch)
			}
		})
	}
}

// View returns the current view.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// ActiveLayer returns the heatmap layer currently on the map.
func (c *Controller) ActiveLayer() (overlay.Layer, bool) {
	return c.overlay.ActiveLayer()
}

func (c *Controller) Selection() (models.Selection, models.Token) {
	return c.store.Current()
}

func (c *Controller) SetEntity(id string) models.Token {
	return c.store.SetEntity(id)
}

func (c *Controller) SetDateRange(start, end time.Time) models.Token {
	return c.store.SetDateRange(start, end)
}

func (c *Controller) Set(sel models.Selection) models.Token {
	return c.store.Set(sel)
}

func describeSelection(sel models.Selection) string {
	r := sel.DateRange
	switch {
	case r.Start.IsZero() && r.End.IsZero():
		return fmt.Sprintf("selected %s, all dates", sel.EntityID)
	case r.End.IsZero():
		return fmt.Sprintf("selected %s from %s", sel.EntityID, r.Start.Format("2006-01-02"))
	case r.Start.IsZero():
		return fmt.Sprintf("selected %s until %s", sel.EntityID, r.End.Format("2006-01-02"))
	default:
		return fmt.Sprintf("selected %s, %s to %s", sel.EntityID, r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
	}
}
