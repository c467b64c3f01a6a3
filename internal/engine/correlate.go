package engine

import (
	"log/slog"
	"sort"

	"github.com/flitsinc/go-transcript/internal/event"
	"github.com/flitsinc/go-transcript/internal/history"
	"github.com/flitsinc/go-transcript/internal/idgen"
)

// pendingInvocation is a tool_start waiting for its tool_end. Owned
// exclusively by the Correlator and destroyed on match or at run end.
type pendingInvocation struct {
	name     string
	args     any
	callID   string // engine-supplied correlation id, may be empty
	startSeq int
}

// Correlator matches tool_start and tool_end events by the engine's
// per-invocation run identifier and turns each matched pair into one tool
// call record and one tool result record sharing a correlation id.
// Anomalies (duplicate starts, ends with no start, starts never ended)
// are logged and skipped, never raised.
type Correlator struct {
	logger *slog.Logger

	pending map[string]pendingInvocation
	seq     int

	calls   []orderedCall
	results []history.ToolResult
}

type orderedCall struct {
	call     history.ToolCall
	startSeq int
}

func NewCorrelator(logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{
		logger:  logger,
		pending: map[string]pendingInvocation{},
	}
}

// Start records an accepted tool_start. A duplicate run identifier
// overwrites the previous pending entry (most-recent-wins) with a warning.
func (c *Correlator) Start(evt event.Event) {
	if _, dup := c.pending[evt.RunID]; dup {
		c.logger.Warn("duplicate tool_start, keeping most recent", "run_id", evt.RunID, "tool", evt.Name)
	}
	c.pending[evt.RunID] = pendingInvocation{
		name:     evt.Name,
		args:     evt.Payload,
		callID:   evt.CallID,
		startSeq: c.seq,
	}
	c.seq++
}

// End resolves an accepted tool_end against its pending start. An orphaned
// end (no pending start) is logged once and produces no record.
func (c *Correlator) End(evt event.Event) {
	p, ok := c.pending[evt.RunID]
	if !ok {
		c.logger.Warn("orphaned tool_end, no matching start", "run_id", evt.RunID, "tool", evt.Name)
		return
	}
	delete(c.pending, evt.RunID)

	id := idgen.Resolve(p.callID)
	c.calls = append(c.calls, orderedCall{
		call:     history.ToolCall{ID: id, Name: p.name, Args: p.args},
		startSeq: p.startSeq,
	})
	c.results = append(c.results, history.ToolResult{
		ToolCallID: id,
		Name:       p.name,
		Output:     evt.Payload,
		IsError:    evt.IsError,
	})
}

// Finish discards entries still pending at run end, logging one warning
// per orphaned start.
func (c *Correlator) Finish() {
	for runID, p := range c.pending {
		c.logger.Warn("orphaned tool_start, never ended", "run_id", runID, "tool", p.name)
		delete(c.pending, runID)
	}
}

// Calls returns the resolved tool calls ordered by tool_start arrival.
func (c *Correlator) Calls() []history.ToolCall {
	ordered := make([]orderedCall, len(c.calls))
	copy(ordered, c.calls)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].startSeq < ordered[j].startSeq })

	out := make([]history.ToolCall, len(ordered))
	for i, oc := range ordered {
		out[i] = oc.call
	}
	return out
}

// Results returns the resolved tool results ordered by tool_end arrival.
func (c *Correlator) Results() []history.ToolResult {
	out := make([]history.ToolResult, len(c.results))
	copy(out, c.results)
	return out
}
