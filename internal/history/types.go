package history

import (
	"context"
	"time"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one reconstructed tool invocation, carried on the assistant
// message that made it. ID is shared with exactly one tool-result message
// of the same run.
type ToolCall struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Args any    `json:"args,omitempty"`
}

// ToolResult is the raw outcome of one tool invocation, prior to size
// bounding. Output holds whatever the engine returned and is serialized and
// truncated at assembly time.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Output     any    `json:"output,omitempty"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Message is one append-only transcript entry. The store assigns ID and
// CreatedAt; messages are never mutated after being handed to an Appender.
type Message struct {
	ID         string     `json:"id"`
	RunID      string     `json:"run_id"`
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	IsError    bool       `json:"is_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Appender is the write side of a history store.
type Appender interface {
	Append(ctx context.Context, msg Message) (Message, error)
}
