package stream

import (
	"fmt"

	"fleet_dashboard/internal/models"
	"fleet_dashboard/internal/overlay"
)

// Widget drives the browser map through the hub.
type Widget struct {
	hub *Hub
}

var _ overlay.MapWidget = (*Widget)(nil)

func NewWidget(hub *Hub) *Widget {
	return &Widget{hub: hub}
}

func (w *Widget) AddLayer(layer *overlay.Layer) error {
	raw, err := layer.Encoded()
	if err != nil {
		return fmt.Errorf("encode layer %s: %w", layer.ID, err)
	}
	w.hub.Broadcast(Envelope{Type: TypeLayerAdd, Data: layerPayload{
		ID:      layer.ID,
		GeoJSON: raw,
		Options: layer.Options,
	}})
	return nil
}

func (w *Widget) RemoveLayer(id string) {
	w.hub.Broadcast(Envelope{Type: TypeLayerRemove, Data: map[string]string{"id": id}})
}

func (w *Widget) InvalidateSize() {
	w.hub.Broadcast(Envelope{Type: TypeMapInvalidate})
}

func (w *Widget) FitBounds(b models.Bounds) {
	// [[south, west], [north, east]]
	w.hub.Broadcast(Envelope{Type: TypeMapFit, Data: [2][2]float64{
		{b.MinLat, b.MinLon},
		{b.MaxLat, b.MaxLon},
	}})
}
