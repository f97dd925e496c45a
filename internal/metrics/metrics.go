package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every dashboard collector and is served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// FetchTotal counts completed panel fetches.
	// status: loaded/failed/stale
	FetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetdash_fetch_total",
			Help: "Panel fetches by domain and outcome.",
		},
		[]string{"domain", "status"},
	)

	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetdash_fetch_duration_seconds",
			Help:    "Latency of analytics backend calls per domain.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"domain"},
	)

	// SelectionGeneration is the token of the selection the dashboard last acted on.
	SelectionGeneration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetdash_selection_generation",
			Help: "Generation token of the current dashboard selection.",
		},
	)

	// OverlayActive is 1 while a heatmap layer is attached to the map, else 0.
	OverlayActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetdash_overlay_active",
			Help: "Heatmap overlay layers currently attached (0 or 1).",
		},
	)

	ActivityDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetdash_activity_dropped_total",
			Help: "Activity log events dropped because the buffer was full.",
		},
	)

	StreamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetdash_stream_clients",
			Help: "Connected websocket clients.",
		},
	)
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	Registry.MustRegister(FetchTotal)
	Registry.MustRegister(FetchDuration)
	Registry.MustRegister(SelectionGeneration)
	Registry.MustRegister(OverlayActive)
	Registry.MustRegister(ActivityDropped)
	Registry.MustRegister(StreamClients)
}

// Handler exposes Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
