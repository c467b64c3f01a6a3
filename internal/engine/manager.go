package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/flitsinc/go-transcript/internal/history"
	"github.com/flitsinc/go-transcript/internal/idgen"
	"github.com/flitsinc/go-transcript/internal/state"
	"github.com/flitsinc/go-transcript/internal/telemetry"
)

// Manager executes runs. Each run gets its own correlation state; the
// manager only tracks run rows and which runs are currently in flight.
type Manager struct {
	Runs      *state.Store
	Assembler *history.Assembler
	Telemetry telemetry.Sink
	Logger    *slog.Logger

	mu     sync.RWMutex
	active map[string]struct{}
}

func NewManager(runs *state.Store, assembler *history.Assembler, sink telemetry.Sink, logger *slog.Logger) *Manager {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		Runs:      runs,
		Assembler: assembler,
		Telemetry: sink,
		Logger:    logger,
		active:    map[string]struct{}{},
	}
}

// Execute consumes one event stream to completion and returns the finished
// run row. id may be empty (a fresh one is generated) or a caller-chosen
// custom id. Only a stream failure is returned as an error; the run row
// records it either way.
func (m *Manager) Execute(ctx context.Context, id, query string, source EventSource) (state.Run, error) {
	if id == "" {
		id = idgen.New()
	} else if err := idgen.ValidateCustomID(id); err != nil {
		return state.Run{}, err
	}

	run, err := m.Runs.CreateRun(ctx, id, query)
	if err != nil {
		return state.Run{}, fmt.Errorf("create run: %w", err)
	}
	m.setActive(id, true)
	defer m.setActive(id, false)

	orch := &Orchestrator{Assembler: m.Assembler, Telemetry: m.Telemetry, Logger: m.Logger}
	res, runErr := orch.Consume(ctx, source, id, query)

	status := state.RunStatusCompleted
	errText := ""
	if runErr != nil {
		status = state.RunStatusFailed
		errText = runErr.Error()
	}
	metrics := state.RunMetrics{
		EventCount:     res.EventCount,
		ToolCallCount:  len(res.Calls),
		ResponseLength: len(res.FinalOutput),
	}
	// Finishing the row is best-effort; the transcript is already flushed.
	if err := m.Runs.FinishRun(context.WithoutCancel(ctx), id, status, errText, metrics); err != nil {
		m.Logger.Error("finish run failed", "run_id", id, "error", err)
	}

	finished, err := m.Runs.GetRun(context.WithoutCancel(ctx), id)
	if err != nil {
		finished = run
		finished.Status = status
	}
	return finished, runErr
}

// Active lists the ids of runs currently consuming their streams.
func (m *Manager) Active() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.active))
	for id := range m.active {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) setActive(id string, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if on {
		m.active[id] = struct{}{}
	} else {
		delete(m.active, id)
	}
}
