// Package overlay owns the heatmap layer bound to the map widget.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"fleet_dashboard/internal/logger"
	"fleet_dashboard/internal/metrics"
	"fleet_dashboard/internal/models"
)

const (
	StateUnbound = "unbound"
	StateBound   = "bound"

	EventBind   = "bind"
	EventUnbind = "unbind"
)

// MapWidget is the external map the overlay is drawn on.
type MapWidget interface {
	AddLayer(layer *Layer) error
	RemoveLayer(id string)
	InvalidateSize()
	FitBounds(b models.Bounds)
}

// Scheduler runs fn once after d. The returned stop function cancels it and
// reports whether it was still pending.
type Scheduler func(d time.Duration, fn func()) (stop func() bool)

func afterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

type Options struct {
	// FitDelay is how long to wait for the widget layout to settle before
	// fitting the viewport.
	FitDelay time.Duration
	Heat     HeatOptions
	Schedule Scheduler
	Log      *logger.Logger
}

// Manager holds at most one layer on the widget at any time.
type Manager struct {
	widget MapWidget
	opts   Options
	fsm    *fsm.FSM

	mu        sync.Mutex
	layer     *Layer
	stopFit   func() bool
	unmounted bool
}

func NewManager(widget MapWidget, opts Options) *Manager {
	if opts.Schedule == nil {
		opts.Schedule = afterFunc
	}
	if opts.Heat == (HeatOptions{}) {
		opts.Heat = DefaultHeatOptions
	}
	m := &Manager{widget: widget, opts: opts}

	events := fsm.Events{
		{Name: EventBind, Src: []string{StateUnbound}, Dst: StateBound},
		{Name: EventUnbind, Src: []string{StateBound}, Dst: StateUnbound},
	}
	callbacks := fsm.Callbacks{
		"before_" + EventBind: wrapEvent(m.attach),
		"enter_" + StateBound: wrapEvent(m.scheduleFit),
		"enter_" + StateUnbound: wrapEvent(m.detach),
	}
	m.fsm = fsm.NewFSM(StateUnbound, events, callbacks)
	return m
}

func wrapEvent(fn func(ctx context.Context, e *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, e *fsm.Event) {
		if err := fn(ctx, e); err != nil {
			e.Err = err
		}
	}
}

// Prepare builds and encodes the layer for points without touching the
// widget. It returns nil for an empty set.
func (m *Manager) Prepare(points []models.HeatmapPoint) (*Layer, error) {
	if len(points) == 0 {
		return nil, nil
	}
	layer := newLayer(points, m.opts.Heat)
	raw, err := layer.GeoJSON().MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode layer: %w", err)
	}
	layer.encoded = raw
	return layer, nil
}

// Attach replaces the overlay with layer. A nil layer only tears the
// current overlay down. Calls after Unmount are ignored.
func (m *Manager) Attach(layer *Layer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unmounted {
		return nil
	}
	if err := m.unbindLocked(); err != nil {
		return err
	}
	if layer == nil {
		return nil
	}
	err := m.fsm.Event(context.Background(), EventBind, layer)
	if isRealError(err) {
		return fmt.Errorf("bind overlay: %w", err)
	}
	return nil
}

// Sync is Prepare followed by Attach.
func (m *Manager) Sync(points []models.HeatmapPoint) error {
	layer, err := m.Prepare(points)
	if err != nil {
		return err
	}
	return m.Attach(layer)
}

// Unmount tears the overlay down for good.
func (m *Manager) Unmount() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unmounted {
		return
	}
	m.unmounted = true
	if err := m.unbindLocked(); err != nil && m.opts.Log != nil {
		m.opts.Log.Warnw("overlay_unmount_failed", "error", err)
	}
}

// ActiveLayer returns the attached layer, if any.
func (m *Manager) ActiveLayer() (Layer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.layer == nil {
		return Layer{}, false
	}
	return *m.layer, true
}

func (m *Manager) State() string {
	return m.fsm.Current()
}

func (m *Manager) unbindLocked() error {
	if !m.fsm.Is(StateBound) {
		return nil
	}
	if err := m.fsm.Event(context.Background(), EventUnbind); isRealError(err) {
		return fmt.Errorf("unbind overlay: %w", err)
	}
	return nil
}

// attach adds the layer before the transition, so a widget error leaves
// the manager unbound.
func (m *Manager) attach(_ context.Context, e *fsm.Event) error {
	layer := e.Args[0].(*Layer)
	if err := m.widget.AddLayer(layer); err != nil {
		e.Cancel(err)
		return nil
	}
	m.layer = layer
	metrics.OverlayActive.Set(1)
	if m.opts.Log != nil {
		m.opts.Log.Debugw("overlay_bound", "layer", layer.ID, "points", len(layer.Points))
	}
	return nil
}

func (m *Manager) scheduleFit(_ context.Context, _ *fsm.Event) error {
	id := m.layer.ID
	m.stopFit = m.opts.Schedule(m.opts.FitDelay, func() { m.fit(id) })
	return nil
}

// fit runs after the layout delay. A layer replaced or removed in the
// meantime is not fitted.
func (m *Manager) fit(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unmounted || m.layer == nil || m.layer.ID != id {
		return
	}
	m.stopFit = nil
	m.widget.InvalidateSize()
	m.widget.FitBounds(m.layer.Bounds)
}

func (m *Manager) detach(_ context.Context, _ *fsm.Event) error {
	if m.stopFit != nil {
		m.stopFit()
		m.stopFit = nil
	}
	if m.layer != nil {
		m.widget.RemoveLayer(m.layer.ID)
		if m.opts.Log != nil {
			m.opts.Log.Debugw("overlay_unbound", "layer", m.layer.ID)
		}
		m.layer = nil
	}
	metrics.OverlayActive.Set(0)
	return nil
}

func isRealError(err error) bool {
	if err == nil {
		return false
	}
	var noTransition fsm.NoTransitionError
	var canceled fsm.CanceledError
	if errors.As(err, &canceled) {
		return canceled.Err != nil
	}
	return !errors.As(err, &noTransition)
}
