package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromSink exports run metrics through a Prometheus registry.
type PromSink struct {
	registry *prometheus.Registry

	runs           *prometheus.CounterVec
	events         *prometheus.CounterVec
	responseLength prometheus.Histogram
}

func NewPromSink() *PromSink {
	registry := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transcript_runs_total",
		Help: "Completed transcript runs.",
	}, []string{"method"})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transcript_events_total",
		Help: "Events consumed across all runs.",
	}, []string{"method"})
	responseLength := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "transcript_response_length_chars",
		Help:    "Length of the normalized final output, in characters.",
		Buckets: prometheus.ExponentialBuckets(64, 4, 10),
	})

	registry.MustRegister(runs, events, responseLength)
	return &PromSink{
		registry:       registry,
		runs:           runs,
		events:         events,
		responseLength: responseLength,
	}
}

func (s *PromSink) RecordRun(m RunMetrics) {
	method := m.Method
	if method == "" {
		method = MethodEventStream
	}
	s.runs.WithLabelValues(method).Inc()
	s.events.WithLabelValues(method).Add(float64(m.EventCount))
	s.responseLength.Observe(float64(m.TotalResponseLength))
}

// Handler serves the registry in Prometheus exposition format.
func (s *PromSink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
