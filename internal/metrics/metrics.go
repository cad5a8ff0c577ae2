// Package metrics exposes Prometheus instrumentation on a dedicated registry.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is the dedicated registry for the delivery engine.
	Registry = prometheus.NewRegistry()

	// DeliveryAttempts counts individual HTTP delivery attempts by outcome.
	DeliveryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_delivery_attempts_total", Help: "Webhook delivery attempts by outcome."},
		[]string{"outcome"},
	)

	// DeliveryLatency tracks per-attempt delivery latency in seconds.
	DeliveryLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_duration_seconds", Help: "Webhook delivery attempt duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"outcome"},
	)

	// TerminalOutcomes counts callback-reported terminal outcomes by event and status.
	TerminalOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_terminal_outcomes_total", Help: "Terminal delivery outcomes reported via callback."},
		[]string{"event", "status"},
	)

	// Submissions counts dispatcher queue submissions by result.
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_submissions_total", Help: "Delivery job submissions to the queue."},
		[]string{"result"},
	)
)

var registerOnce sync.Once

// Register installs all collectors plus the Go and process collectors.
func Register() {
	registerOnce.Do(func() {
		Registry.MustRegister(DeliveryAttempts)
		Registry.MustRegister(DeliveryLatency)
		Registry.MustRegister(TerminalOutcomes)
		Registry.MustRegister(Submissions)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
