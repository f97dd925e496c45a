package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"fleet_dashboard/internal/dashboard"
	"fleet_dashboard/internal/stream"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB
	defaultInterval  = 15 * time.Second
	maxInterval      = 60 * time.Second
	maxIntervalMilli = 60_000
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConnect streams dashboard views and map commands. A view is pushed after
// every change and re-sent every interval so late renderers converge.
func (h *Handler) wsConnect(c *gin.Context) {
	interval := h.parseInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go h.startReader(conn, done)

	views, stopViews := h.services.Dashboard.Subscribe()
	defer stopViews()

	var commands <-chan stream.Envelope
	if h.stream != nil {
		ch, stopCommands := h.stream.Subscribe()
		defer stopCommands()
		commands = ch
	}

	ticker := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
	}()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case v, ok := <-views:
			if !ok {
				return
			}
			if err := h.sendView(conn, v); err != nil {
				return
			}
		case env, ok := <-commands:
			if !ok {
				// dropped by the hub; the client reconnects and is replayed
				// the current layer
				if h.log != nil {
					h.log.Infow("ws_dropped_slow_client")
				}
				return
			}
			if err := h.send(conn, env); err != nil {
				return
			}
		case <-ticker.C:
			if err := h.sendView(conn, h.services.Dashboard.View()); err != nil {
				return
			}
		}
	}
}

// parseInterval reads ?interval=30s or ?interval_ms=30000 with bounds.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}

	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}

	return defaultInterval
}

// startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.log != nil {
				h.log.Debugw("ws_read_closed", "err", err)
			}
			return
		}
	}
}

func (h *Handler) sendView(conn *websocket.Conn, v dashboard.View) error {
	return h.send(conn, stream.Envelope{Type: stream.TypeView, Data: v})
}

func (h *Handler) send(conn *websocket.Conn, env stream.Envelope) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(env); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed", "type", env.Type, "err", err)
		}
		return err
	}
	return nil
}
