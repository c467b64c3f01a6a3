package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/flitsinc/go-transcript/internal/event"
	"github.com/flitsinc/go-transcript/internal/history"
	"github.com/flitsinc/go-transcript/internal/telemetry"
)

type captureSink struct {
	mu      sync.Mutex
	metrics []telemetry.RunMetrics
}

func (s *captureSink) RecordRun(m telemetry.RunMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, m)
}

func TestConsumeFullRun(t *testing.T) {
	store := &history.MemoryAppender{}
	sink := &captureSink{}
	orch := &Orchestrator{
		Assembler: &history.Assembler{Store: store, MemoryEnabled: true},
		Telemetry: sink,
	}

	source := NewSliceSource([]event.Event{
		{Kind: event.KindToolStart, RunID: "r1", Name: "search", Payload: map[string]any{"query": "x"}},
		{Kind: event.KindToolEnd, RunID: "r1", Name: "search", Payload: "result text"},
		{Kind: event.KindRunEnd, Payload: map[string]any{"output": "Final answer"}},
	})
	res, err := orch.Consume(context.Background(), source, "run-1", "find x")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if res.EventCount != 3 || res.FinalOutput != "Final answer" {
		t.Fatalf("unexpected result: %+v", res)
	}

	msgs := store.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 history messages, got %d", len(msgs))
	}
	if msgs[0].Role != history.RoleUser || msgs[0].Content != "find x" {
		t.Fatalf("unexpected user message: %+v", msgs[0])
	}
	if msgs[1].Content != "Final answer" || len(msgs[1].ToolCalls) != 1 {
		t.Fatalf("unexpected assistant message: %+v", msgs[1])
	}
	callID := msgs[1].ToolCalls[0].ID
	if callID == "" || msgs[2].ToolCallID != callID {
		t.Fatalf("expected correlated tool result, got call %q result %q", callID, msgs[2].ToolCallID)
	}
	if msgs[2].Content != "result text" {
		t.Fatalf("unexpected tool result content: %q", msgs[2].Content)
	}

	if len(sink.metrics) != 1 {
		t.Fatalf("expected one telemetry record, got %d", len(sink.metrics))
	}
	m := sink.metrics[0]
	if m.EventCount != 3 || m.TotalResponseLength != len("Final answer") || m.Method != telemetry.MethodEventStream {
		t.Fatalf("unexpected metrics: %+v", m)
	}
}

func TestConsumeSkipsMalformedEvents(t *testing.T) {
	store := &history.MemoryAppender{}
	orch := &Orchestrator{Assembler: &history.Assembler{Store: store, MemoryEnabled: true}}

	source := NewSliceSource([]event.Event{
		{Kind: "bogus"},
		{Kind: event.KindToolStart, Name: "search"}, // missing run id
		{Kind: event.KindToolStart, RunID: "r1", Name: "search"},
		{Kind: event.KindToolEnd, RunID: "r1", Name: "search", Payload: "ok"},
		{Kind: event.KindRunEnd, Payload: "done"},
	})
	res, err := orch.Consume(context.Background(), source, "run-1", "q")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(res.Calls) != 1 {
		t.Fatalf("expected malformed events skipped, got %d calls", len(res.Calls))
	}
	if res.FinalOutput != "done" {
		t.Fatalf("unexpected final output: %q", res.FinalOutput)
	}
}

func TestConsumeOrphansCompleteNormally(t *testing.T) {
	store := &history.MemoryAppender{}
	orch := &Orchestrator{Assembler: &history.Assembler{Store: store, MemoryEnabled: true}}

	source := NewSliceSource([]event.Event{
		{Kind: event.KindToolStart, RunID: "r1", Name: "hang"},
		{Kind: event.KindToolEnd, RunID: "r9", Name: "ghost", Payload: "ignored"},
		{Kind: event.KindRunEnd, Payload: "done"},
	})
	res, err := orch.Consume(context.Background(), source, "run-1", "q")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(res.Calls) != 0 || len(res.Results) != 0 {
		t.Fatalf("expected no records from orphans, got %+v", res)
	}
	msgs := store.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected user and assistant messages, got %d", len(msgs))
	}
}

func TestConsumeEOFWithoutRunEnd(t *testing.T) {
	store := &history.MemoryAppender{}
	orch := &Orchestrator{Assembler: &history.Assembler{Store: store, MemoryEnabled: true}}

	source := NewSliceSource([]event.Event{
		{Kind: event.KindToolStart, RunID: "r1", Name: "search"},
		{Kind: event.KindToolEnd, RunID: "r1", Name: "search", Payload: "partial"},
	})
	res, err := orch.Consume(context.Background(), source, "run-1", "q")
	if err != nil {
		t.Fatalf("expected EOF treated as stream end, got %v", err)
	}
	if res.FinalOutput != "" || len(res.Calls) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	// No final text but one tool call: placeholder applies.
	msgs := store.Messages()
	if msgs[1].Content != history.DefaultNoFinalResponseText {
		t.Fatalf("expected placeholder assistant text, got %q", msgs[1].Content)
	}
}

type failingSource struct {
	events []event.Event
	next   int
	err    error
}

func (s *failingSource) Next(ctx context.Context) (event.Event, error) {
	if s.next >= len(s.events) {
		return event.Event{}, s.err
	}
	evt := s.events[s.next]
	s.next++
	return evt, nil
}

func TestConsumeStreamFailureFlushesResolvedPairs(t *testing.T) {
	store := &history.MemoryAppender{}
	orch := &Orchestrator{Assembler: &history.Assembler{Store: store, MemoryEnabled: true}}

	source := &failingSource{
		events: []event.Event{
			{Kind: event.KindToolStart, RunID: "r1", Name: "search"},
			{Kind: event.KindToolEnd, RunID: "r1", Name: "search", Payload: "kept"},
		},
		err: fmt.Errorf("connection reset"),
	}
	res, err := orch.Consume(context.Background(), source, "run-1", "q")
	var streamErr *StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("expected StreamError, got %v", err)
	}
	if len(res.Calls) != 1 {
		t.Fatalf("expected resolved pair retained, got %d", len(res.Calls))
	}

	msgs := store.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected flushed transcript despite stream failure, got %d messages", len(msgs))
	}
	if msgs[2].Content != "kept" {
		t.Fatalf("expected tool result flushed, got %q", msgs[2].Content)
	}
}

func TestConsumeCancellationFlushes(t *testing.T) {
	store := &history.MemoryAppender{}
	orch := &Orchestrator{Assembler: &history.Assembler{Store: store, MemoryEnabled: true}}

	events := make(chan event.Event)
	source := NewChanSource(events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		events <- event.Event{Kind: event.KindToolStart, RunID: "r1", Name: "search"}
		events <- event.Event{Kind: event.KindToolEnd, RunID: "r1", Name: "search", Payload: "before cancel"}
		cancel()
	}()

	_, err := orch.Consume(ctx, source, "run-1", "q")
	var streamErr *StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("expected StreamError on cancellation, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected wrapped context.Canceled, got %v", err)
	}

	msgs := store.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected flush on cancel, got %d messages", len(msgs))
	}
	if !strings.Contains(msgs[2].Content, "before cancel") {
		t.Fatalf("expected resolved result flushed, got %q", msgs[2].Content)
	}
}

func TestConsumeStopsAtRunEnd(t *testing.T) {
	orch := &Orchestrator{}
	source := NewSliceSource([]event.Event{
		{Kind: event.KindRunEnd, Payload: "first"},
		{Kind: event.KindToolStart, RunID: "r1", Name: "late"},
	})
	res, err := orch.Consume(context.Background(), source, "run-1", "q")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if res.EventCount != 1 || res.FinalOutput != "first" {
		t.Fatalf("expected consumption to stop at run_end, got %+v", res)
	}
}
