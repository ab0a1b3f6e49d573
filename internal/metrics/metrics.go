package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SamplesIngested counts prices accepted into the history window.
	SamplesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goldwatch_samples_ingested_total",
		Help: "The total number of gold price samples ingested.",
	})

	// NoSignal counts fetch attempts that produced no usable price.
	NoSignal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goldwatch_source_no_signal_total",
		Help: "The total number of price fetches that returned no signal.",
	})

	// IngestErrors counts samples rejected by the engine or the store.
	IngestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goldwatch_ingest_errors_total",
		Help: "The total number of failed ingests by stage.",
	}, []string{"stage"})

	// TicksSkipped counts sampler ticks skipped, e.g. while the schedule is closed.
	TicksSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goldwatch_ticks_skipped_total",
		Help: "The total number of sampler ticks skipped by reason.",
	}, []string{"reason"})

	// LatestPrice mirrors the newest sample.
	LatestPrice = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "goldwatch_latest_price_rupiah",
		Help: "The most recently ingested gold price in Rupiah.",
	})

	// AlertsTriggered counts trigger events by side.
	AlertsTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goldwatch_alerts_triggered_total",
		Help: "The total number of alert triggers by kind.",
	}, []string{"kind"})

	// AlertsSuppressed counts triggers held back by the cooldown.
	AlertsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goldwatch_alerts_suppressed_total",
		Help: "The total number of alert triggers suppressed by cooldown.",
	})

	// ConnectedClients is the number of live websocket subscribers.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "goldwatch_websocket_connected_clients",
		Help: "The current number of connected WebSocket clients.",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "goldwatch_http_request_duration_seconds",
			Help: "Duration of HTTP requests.",
		},
		[]string{"path", "status"},
	)
)
