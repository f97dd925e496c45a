// Package stream fans dashboard updates and map commands out to websocket
// clients.
package stream

import (
	"encoding/json"
	"strings"
	"sync"

	"fleet_dashboard/internal/metrics"
)

// Message types pushed to clients.
const (
	TypeView          = "view"
	TypeLayerAdd      = "map.layer.add"
	TypeLayerRemove   = "map.layer.remove"
	TypeMapInvalidate = "map.invalidate"
	TypeMapFit        = "map.fit"
)

// Envelope is the wire format of every websocket message.
type Envelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

const clientBuffer = 32

// Hub delivers envelopes to every subscriber without blocking the sender.
// A subscriber that falls behind loses views, which are resent
// periodically. Map commands are not resent, so a subscriber that cannot
// take one is dropped: its channel is closed and on reconnect it gets the
// current layer replayed.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan Envelope
	nextID int
	last   map[string]Envelope
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Envelope), last: make(map[string]Envelope)}
}

// Subscribe returns a channel of envelopes and a cancel function that
// closes it. The current map layer, if any, is replayed first.
func (h *Hub) Subscribe() (<-chan Envelope, func()) {
	ch := make(chan Envelope, clientBuffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	if env, ok := h.last[TypeLayerAdd]; ok {
		ch <- env
	}
	n := len(h.subs)
	h.mu.Unlock()
	metrics.StreamClients.Set(float64(n))

	return ch, func() { h.remove(id) }
}

// remove closes the subscriber's channel unless Broadcast already did.
func (h *Hub) remove(id int) {
	h.mu.Lock()
	ch, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		close(ch)
	}
	n := len(h.subs)
	h.mu.Unlock()
	if ok {
		metrics.StreamClients.Set(float64(n))
	}
}

// Broadcast never blocks.
func (h *Hub) Broadcast(env Envelope) {
	h.mu.Lock()
	switch env.Type {
	case TypeLayerAdd:
		h.last[TypeLayerAdd] = env
	case TypeLayerRemove:
		delete(h.last, TypeLayerAdd)
	}
	dropped := 0
	for id, ch := range h.subs {
		select {
		case ch <- env:
		default:
			if isMapCommand(env.Type) {
				delete(h.subs, id)
				close(ch)
				dropped++
			}
		}
	}
	n := len(h.subs)
	h.mu.Unlock()

	if dropped > 0 {
		metrics.StreamClients.Set(float64(n))
	}
}

func isMapCommand(typ string) bool {
	return strings.HasPrefix(typ, "map.")
}

// Clients reports the number of subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// layerPayload carries the overlay as GeoJSON plus its heat options.
type layerPayload struct {
	ID      string          `json:"id"`
	GeoJSON json.RawMessage `json:"geojson"`
	Options interface{}     `json:"options"`
}
