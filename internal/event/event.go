package event

// Kind tags the three event shapes an execution engine emits during a run.
type Kind string

const (
	KindToolStart Kind = "tool_start"
	KindToolEnd   Kind = "tool_end"
	KindRunEnd    Kind = "run_end"
)

// Event is one item of the ordered stream produced by the execution engine.
// Tool events carry the engine's per-invocation run identifier; the matching
// tool_start and tool_end share it. CallID is the engine-assigned correlation
// id, when the engine assigns one. The run_end payload is the raw final
// output in whatever shape the engine produced it.
type Event struct {
	Kind    Kind   `json:"kind"`
	RunID   string `json:"run_id,omitempty"`
	Name    string `json:"name,omitempty"`
	CallID  string `json:"call_id,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
	Payload any    `json:"payload,omitempty"`
}
