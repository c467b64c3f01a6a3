package engine

import (
	"testing"

	"github.com/flitsinc/go-transcript/internal/event"
)

func TestCorrelatorResolvesPair(t *testing.T) {
	corr := NewCorrelator(nil)
	corr.Start(event.Event{Kind: event.KindToolStart, RunID: "r1", Name: "search", Payload: map[string]any{"query": "x"}})
	corr.End(event.Event{Kind: event.KindToolEnd, RunID: "r1", Name: "search", Payload: "result text"})
	corr.Finish()

	calls := corr.Calls()
	results := corr.Results()
	if len(calls) != 1 || len(results) != 1 {
		t.Fatalf("expected one pair, got %d calls, %d results", len(calls), len(results))
	}
	if calls[0].ID == "" {
		t.Fatalf("expected generated id")
	}
	if results[0].ToolCallID != calls[0].ID {
		t.Fatalf("expected shared correlation id, got %q vs %q", results[0].ToolCallID, calls[0].ID)
	}
	if calls[0].Name != "search" || results[0].Output != "result text" {
		t.Fatalf("unexpected records: %+v / %+v", calls[0], results[0])
	}
}

func TestCorrelatorPreservesSuppliedID(t *testing.T) {
	corr := NewCorrelator(nil)
	corr.Start(event.Event{Kind: event.KindToolStart, RunID: "r1", Name: "search", CallID: "call-42"})
	corr.End(event.Event{Kind: event.KindToolEnd, RunID: "r1", Name: "search"})

	calls := corr.Calls()
	results := corr.Results()
	if calls[0].ID != "call-42" || results[0].ToolCallID != "call-42" {
		t.Fatalf("expected supplied id on both records, got %q / %q", calls[0].ID, results[0].ToolCallID)
	}
}

func TestCorrelatorOrphanedEndProducesNothing(t *testing.T) {
	corr := NewCorrelator(nil)
	corr.End(event.Event{Kind: event.KindToolEnd, RunID: "never-started", Name: "search"})
	corr.Finish()

	if len(corr.Calls()) != 0 || len(corr.Results()) != 0 {
		t.Fatalf("expected no records for orphaned end")
	}
}

func TestCorrelatorOrphanedStartDiscardedAtFinish(t *testing.T) {
	corr := NewCorrelator(nil)
	corr.Start(event.Event{Kind: event.KindToolStart, RunID: "r1", Name: "hang"})
	corr.Finish()

	if len(corr.Calls()) != 0 || len(corr.Results()) != 0 {
		t.Fatalf("expected orphaned start to produce no records")
	}
	// A late end after finish is itself an orphan.
	corr.End(event.Event{Kind: event.KindToolEnd, RunID: "r1", Name: "hang"})
	if len(corr.Results()) != 0 {
		t.Fatalf("expected no record after run end")
	}
}

func TestCorrelatorDuplicateStartMostRecentWins(t *testing.T) {
	corr := NewCorrelator(nil)
	corr.Start(event.Event{Kind: event.KindToolStart, RunID: "r1", Name: "search", Payload: map[string]any{"query": "old"}})
	corr.Start(event.Event{Kind: event.KindToolStart, RunID: "r1", Name: "search", Payload: map[string]any{"query": "new"}})
	corr.End(event.Event{Kind: event.KindToolEnd, RunID: "r1", Name: "search"})

	calls := corr.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected single call, got %d", len(calls))
	}
	args := calls[0].Args.(map[string]any)
	if args["query"] != "new" {
		t.Fatalf("expected most recent start kept, got %v", args)
	}
}

func TestCorrelatorInterleavedOrdering(t *testing.T) {
	corr := NewCorrelator(nil)
	// Starts arrive a, b, c; ends arrive c, a, b.
	corr.Start(event.Event{Kind: event.KindToolStart, RunID: "a", Name: "alpha"})
	corr.Start(event.Event{Kind: event.KindToolStart, RunID: "b", Name: "beta"})
	corr.Start(event.Event{Kind: event.KindToolStart, RunID: "c", Name: "gamma"})
	corr.End(event.Event{Kind: event.KindToolEnd, RunID: "c", Name: "gamma"})
	corr.End(event.Event{Kind: event.KindToolEnd, RunID: "a", Name: "alpha"})
	corr.End(event.Event{Kind: event.KindToolEnd, RunID: "b", Name: "beta"})
	corr.Finish()

	calls := corr.Calls()
	results := corr.Results()
	wantCalls := []string{"alpha", "beta", "gamma"}
	for i, name := range wantCalls {
		if calls[i].Name != name {
			t.Fatalf("expected calls in start order %v, got %v at %d", wantCalls, calls[i].Name, i)
		}
	}
	byID := map[string]string{}
	for _, c := range calls {
		byID[c.ID] = c.Name
	}
	wantResults := []string{"gamma", "alpha", "beta"}
	for i, name := range wantResults {
		if byID[results[i].ToolCallID] != name {
			t.Fatalf("expected results in end order %v, got %v at %d", wantResults, byID[results[i].ToolCallID], i)
		}
	}
}

func TestCorrelatorIDUniqueness(t *testing.T) {
	corr := NewCorrelator(nil)
	for _, id := range []string{"a", "b", "c", "d"} {
		corr.Start(event.Event{Kind: event.KindToolStart, RunID: id, Name: "tool-" + id})
		corr.End(event.Event{Kind: event.KindToolEnd, RunID: id, Name: "tool-" + id})
	}
	seen := map[string]struct{}{}
	for _, c := range corr.Calls() {
		if _, dup := seen[c.ID]; dup {
			t.Fatalf("duplicate correlation id %q", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
}
