// Package metrics exposes Prometheus counters and histograms for the relay,
// served at GET /metrics, per SPEC_FULL.md §13.1. Grounded on
// _examples/chidi150c-coinbase/metrics.go's registered-package-variables
// pattern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

var (
	SignalsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_signals_ingested_total",
			Help: "Webhook signals accepted into the PENDING state, by action.",
		},
		[]string{"action"},
	)

	SignalsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_signals_rejected_total",
			Help: "Signals rejected, by gate and reason.",
		},
		[]string{"gate", "reason"},
	)

	SignalsExecuted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_signals_executed_total",
			Help: "Signals that reached the EXECUTED state.",
		},
	)

	KillSwitchActivations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_killswitch_activations_total",
			Help: "Kill-switch activations, by actor (manual|auto_trigger).",
		},
		[]string{"actor"},
	)

	DispatchPollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_dispatch_poll_duration_seconds",
			Help:    "Latency of GET /api/signals/pending, including pre-dispatch validation.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(SignalsIngested, SignalsRejected, SignalsExecuted)
	prometheus.MustRegister(KillSwitchActivations, DispatchPollDuration)
}

// Handler returns the Prometheus text-exposition HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
