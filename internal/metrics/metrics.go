// Package metrics exposes Prometheus instruments for the orchestration layer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "productreel"

// Metrics holds the orchestration instruments.
type Metrics struct {
	PipelineRuns     *prometheus.CounterVec
	ProductsScraped  prometheus.Counter
	VideoStarts      *prometheus.CounterVec
	VideoReconciles  *prometheus.CounterVec
	PublishOutcomes  *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the instruments on reg. A nil reg uses a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		PipelineRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Domain pipeline runs by final status.",
		}, []string{"status"}),
		ProductsScraped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "products_persisted_total",
			Help:      "Products persisted by the domain pipeline.",
		}),
		VideoStarts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "video",
			Name:      "starts_total",
			Help:      "Video generation start attempts by outcome.",
		}, []string{"outcome"}),
		VideoReconciles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "video",
			Name:      "reconciles_total",
			Help:      "Video status reconciliations by outcome.",
		}, []string{"outcome"}),
		PublishOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "attempts_total",
			Help:      "Publish attempts by outcome.",
		}, []string{"outcome"}),
		ProviderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "Latency of external provider calls.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"provider", "operation", "result"}),
		gatherer: reg,
	}
}

// Nop returns instruments registered on a throwaway registry.
func Nop() *Metrics {
	return New(nil)
}

// ObserveProvider records one provider call that started at start.
func (m *Metrics) ObserveProvider(provider, operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ProviderDuration.WithLabelValues(provider, operation, result).Observe(time.Since(start).Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
