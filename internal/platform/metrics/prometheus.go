// Package metrics exports dispatcher metrics to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bandkeeper/internal/core"
)

var _ core.MetricsRecorder = (*Recorder)(nil)

// Recorder counts commands by outcome and observes their latency.
type Recorder struct {
	registry *prometheus.Registry
	total    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	bands    prometheus.GaugeFunc
}

// NewRecorder registers the command metrics on a fresh registry together with
// the Go runtime and process collectors. size, when non-nil, backs the
// collection size gauge.
func NewRecorder(size func() int) *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bandkeeper",
			Name:      "commands_total",
			Help:      "Dispatched commands by name and outcome.",
		}, []string{"command", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bandkeeper",
			Name:      "command_duration_seconds",
			Help:      "Command handling latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"command"}),
	}
	reg.MustRegister(r.total, r.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if size != nil {
		r.bands = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "bandkeeper",
			Name:      "collection_bands",
			Help:      "Bands currently held in the collection.",
		}, func() float64 { return float64(size()) })
		reg.MustRegister(r.bands)
	}
	return r
}

// Observe implements core.MetricsRecorder.
func (r *Recorder) Observe(_ context.Context, command string, success bool, duration time.Duration) {
	outcome := "error"
	if success {
		outcome = "success"
	}
	r.total.WithLabelValues(command, outcome).Inc()
	r.latency.WithLabelValues(command).Observe(duration.Seconds())
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
