package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/flitsinc/go-transcript/internal/event"
	"github.com/flitsinc/go-transcript/internal/history"
	"github.com/flitsinc/go-transcript/internal/output"
	"github.com/flitsinc/go-transcript/internal/telemetry"
)

// EventSource delivers one run's ordered event stream. Next blocks until an
// event is available, returns io.EOF when the source is exhausted, and any
// other error when the source itself fails.
type EventSource interface {
	Next(ctx context.Context) (event.Event, error)
}

// StreamError wraps a failure of the event source itself. It is the only
// error a run surfaces to its caller; everything else is recovered locally.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string { return "event stream failed: " + e.Err.Error() }
func (e *StreamError) Unwrap() error { return e.Err }

// Result summarizes one consumed run.
type Result struct {
	EventCount  int
	FinalOutput string
	Calls       []history.ToolCall
	Results     []history.ToolResult
}

// Orchestrator drives one pass over one event stream: validate each event,
// feed the correlator, normalize the final output, flush the transcript
// through the assembler, and report completion metrics. Each run owns its
// correlation state exclusively; an Orchestrator value may be shared across
// concurrent runs.
type Orchestrator struct {
	Assembler *history.Assembler
	Telemetry telemetry.Sink
	Logger    *slog.Logger
}

// Consume pulls events from source one at a time until a run_end event,
// io.EOF, or a source failure. Malformed events and correlation anomalies
// are logged and skipped. On source failure (including cancellation) the
// already-resolved records are still flushed to history before the
// StreamError is returned.
func (o *Orchestrator) Consume(ctx context.Context, source EventSource, runID, query string) (Result, error) {
	logger := o.logger().With("run_id", runID)
	corr := NewCorrelator(logger)

	var (
		eventCount   int
		finalPayload any
		streamErr    error
	)

loop:
	for {
		evt, err := source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			streamErr = &StreamError{Err: err}
			break
		}
		eventCount++
		if err := event.Validate(evt); err != nil {
			logger.Warn("dropping malformed event", "error", err)
			continue
		}
		switch evt.Kind {
		case event.KindToolStart:
			corr.Start(evt)
		case event.KindToolEnd:
			corr.End(evt)
		case event.KindRunEnd:
			finalPayload = evt.Payload
			break loop
		}
	}

	corr.Finish()
	finalOutput := output.Normalize(finalPayload, logger)
	res := Result{
		EventCount:  eventCount,
		FinalOutput: finalOutput,
		Calls:       corr.Calls(),
		Results:     corr.Results(),
	}

	// Flush whatever resolved before any failure; a partial transcript
	// beats a lost one. Detached from ctx so cancellation of the stream
	// does not also cancel the flush.
	if o.Assembler != nil {
		o.Assembler.Assemble(context.WithoutCancel(ctx), runID, query, finalOutput, res.Calls, res.Results)
	}
	if o.Telemetry != nil {
		o.Telemetry.RecordRun(telemetry.RunMetrics{
			EventCount:          eventCount,
			TotalResponseLength: len(finalOutput),
			Method:              telemetry.MethodEventStream,
		})
	}

	if streamErr != nil {
		return res, streamErr
	}
	return res, nil
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
