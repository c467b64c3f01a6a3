// Package telemetry reports run-level completion metrics. Writes are
// fire-and-forget: sinks never return errors and never block run teardown.
package telemetry

// MethodEventStream labels runs reconstructed from a live event stream.
const MethodEventStream = "event-stream"

// RunMetrics is emitted once per completed run.
type RunMetrics struct {
	EventCount          int
	TotalResponseLength int
	Method              string
}

// Sink consumes run completion metrics.
type Sink interface {
	RecordRun(m RunMetrics)
}

// NopSink discards all metrics.
type NopSink struct{}

func (NopSink) RecordRun(RunMetrics) {}
