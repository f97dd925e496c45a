package stream

import (
	"encoding/json"
	"testing"
	"time"

	"fleet_dashboard/internal/models"
	"fleet_dashboard/internal/overlay"
)

func TestHub_BroadcastAndCancel(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe()
	b, cancelB := h.Subscribe()
	defer cancelB()

	h.Broadcast(Envelope{Type: TypeView, Data: 1})
	if got := <-a; got.Type != TypeView {
		t.Fatalf("a got %+v", got)
	}
	if got := <-b; got.Type != TypeView {
		t.Fatalf("b got %+v", got)
	}

	cancelA()
	cancelA()
	if _, ok := <-a; ok {
		t.Fatalf("cancelled channel must be closed")
	}
	if h.Clients() != 1 {
		t.Fatalf("want 1 client, got %d", h.Clients())
	}
}

func TestHub_SlowClientDoesNotBlock(t *testing.T) {
	h := NewHub()
	_, cancel := h.Subscribe()
	defer cancel()

	for i := 0; i < clientBuffer*3; i++ {
		h.Broadcast(Envelope{Type: TypeView, Data: i})
	}
	if h.Clients() != 1 {
		t.Fatalf("missed views must not drop the client")
	}
}

func noFit(time.Duration, func()) func() bool { return func() bool { return true } }

func TestHub_DropsClientThatMissesMapCommand(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe()
	defer cancel()
	mgr := overlay.NewManager(NewWidget(h), overlay.Options{Schedule: noFit})

	for i := 0; i < clientBuffer-1; i++ {
		h.Broadcast(Envelope{Type: TypeView, Data: i})
	}
	// the add for the first layer takes the last free slot, the second
	// sync's remove and add cannot be delivered
	if err := mgr.Sync([]models.HeatmapPoint{{Lat: 1, Lon: 1, Weight: 1}}); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := mgr.Sync([]models.HeatmapPoint{{Lat: 2, Lon: 2, Weight: 2}}); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	active, ok := mgr.ActiveLayer()
	if !ok {
		t.Fatalf("manager must hold a layer")
	}

	if h.Clients() != 0 {
		t.Fatalf("client that missed a map command must be dropped, %d left", h.Clients())
	}
	n := 0
	for range ch {
		n++
	}
	if n != clientBuffer {
		t.Fatalf("buffered messages must still drain before close, got %d", n)
	}

	// reconnecting replays exactly the layer the manager holds
	again, cancelAgain := h.Subscribe()
	defer cancelAgain()
	got := <-again
	payload, ok := got.Data.(layerPayload)
	if got.Type != TypeLayerAdd || !ok || payload.ID != active.ID {
		t.Fatalf("replay %s %+v, want layer %s", got.Type, got.Data, active.ID)
	}
	select {
	case extra := <-again:
		t.Fatalf("only the current layer is replayed, got %s", extra.Type)
	default:
	}
}

func TestWidget_Commands(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe()
	defer cancel()
	w := NewWidget(h)

	layer := &overlay.Layer{ID: "l1", Points: []models.HeatmapPoint{{Lat: 1, Lon: 2, Weight: 3}}, Options: overlay.DefaultHeatOptions}
	if err := w.AddLayer(layer); err != nil {
		t.Fatalf("AddLayer: %v", err)
	}
	add := <-ch
	if add.Type != TypeLayerAdd {
		t.Fatalf("want layer add, got %s", add.Type)
	}
	raw, _ := json.Marshal(add.Data)
	var payload struct {
		ID      string `json:"id"`
		GeoJSON struct {
			Type     string `json:"type"`
			Features []any  `json:"features"`
		} `json:"geojson"`
		Options overlay.HeatOptions `json:"options"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.ID != "l1" || payload.GeoJSON.Type != "FeatureCollection" || len(payload.GeoJSON.Features) != 1 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.Options != overlay.DefaultHeatOptions {
		t.Fatalf("unexpected options %+v", payload.Options)
	}

	// late subscribers see the active layer
	late, cancelLate := h.Subscribe()
	if got := <-late; got.Type != TypeLayerAdd {
		t.Fatalf("late subscriber got %s", got.Type)
	}
	cancelLate()

	w.RemoveLayer("l1")
	if got := <-ch; got.Type != TypeLayerRemove {
		t.Fatalf("want remove, got %s", got.Type)
	}
	late, cancelLate = h.Subscribe()
	defer cancelLate()
	select {
	case got := <-late:
		t.Fatalf("nothing to replay after removal, got %s", got.Type)
	default:
	}

	w.FitBounds(models.Bounds{MinLat: 1, MinLon: 2, MaxLat: 3, MaxLon: 4})
	fit := <-ch
	if fit.Data != [2][2]float64{{1, 2}, {3, 4}} {
		t.Fatalf("unexpected fit payload %+v", fit.Data)
	}
}
