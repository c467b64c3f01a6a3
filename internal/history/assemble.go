package history

import (
	"context"
	"log/slog"

	"github.com/flitsinc/go-transcript/internal/output"
	"github.com/flitsinc/go-transcript/internal/truncate"
)

// DefaultNoFinalResponseText substitutes for the assistant message body
// when tool calls occurred but the engine produced no final text.
const DefaultNoFinalResponseText = "The agent finished without producing further output."

// Assembler writes one run's reconstructed transcript to the history store:
// the user message, the assistant message carrying every tool call, and one
// size-bounded tool-result message per invocation. Each append is isolated;
// a failed write is logged and the remaining messages are still written.
type Assembler struct {
	Store Appender

	// MemoryEnabled gates all writes. When false, Assemble is a no-op.
	MemoryEnabled bool

	// Truncation is the run-default size budget for stored tool output.
	// ToolTruncation overrides it per tool name. A zero MaxCharacters
	// disables truncation for that scope.
	Truncation     truncate.Config
	ToolTruncation map[string]truncate.Config

	// NoFinalResponseText overrides DefaultNoFinalResponseText.
	NoFinalResponseText string

	Logger *slog.Logger
}

// Assemble appends the run's messages in order: user, assistant, then tool
// results in end-arrival order. Tool call order and tool result order are
// walked independently; they diverge when the engine interleaves
// invocations.
func (a *Assembler) Assemble(ctx context.Context, runID, query, finalOutput string, calls []ToolCall, results []ToolResult) {
	if !a.MemoryEnabled {
		return
	}
	logger := a.logger()

	a.append(ctx, Message{RunID: runID, Role: RoleUser, Content: query})

	assistantText := finalOutput
	if assistantText == "" && len(calls) > 0 {
		assistantText = a.placeholder()
	}
	a.append(ctx, Message{RunID: runID, Role: RoleAssistant, Content: assistantText, ToolCalls: calls})

	for _, res := range results {
		content := a.truncateOutput(res.Name, output.Render(res.Output), logger)
		a.append(ctx, Message{
			RunID:      runID,
			Role:       RoleTool,
			Content:    content,
			ToolCallID: res.ToolCallID,
			IsError:    res.IsError,
		})
	}
}

func (a *Assembler) append(ctx context.Context, msg Message) {
	if _, err := a.Store.Append(ctx, msg); err != nil {
		a.logger().Error("history append failed", "run_id", msg.RunID, "role", msg.Role, "error", err)
	}
}

func (a *Assembler) truncateOutput(toolName, content string, logger *slog.Logger) string {
	cfg := a.Truncation
	if override, ok := a.ToolTruncation[toolName]; ok {
		cfg = override
	}
	if cfg.MaxCharacters <= 0 {
		return content
	}
	tr, known := truncate.ForMethod(cfg.Method)
	if !known {
		logger.Warn("unknown truncation method, falling back to end-trim", "method", cfg.Method, "tool", toolName)
	}
	return tr.Truncate(content, cfg)
}

func (a *Assembler) placeholder() string {
	if a.NoFinalResponseText != "" {
		return a.NoFinalResponseText
	}
	return DefaultNoFinalResponseText
}

func (a *Assembler) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
