package event

import (
	"fmt"
	"strings"
)

// ValidationError reports a malformed event. Callers log it and skip the
// event; the stream itself keeps going.
type ValidationError struct {
	Kind   Kind
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Kind == "" {
		return "invalid event: " + e.Reason
	}
	return fmt.Sprintf("invalid %s event: %s", e.Kind, e.Reason)
}

// Validate returns nil when evt is well-formed: the kind is recognized and,
// for tool events, both the run identifier and tool name are non-empty.
func Validate(evt Event) error {
	switch evt.Kind {
	case KindToolStart, KindToolEnd:
		if strings.TrimSpace(evt.RunID) == "" {
			return &ValidationError{Kind: evt.Kind, Reason: "run_id is required"}
		}
		if strings.TrimSpace(evt.Name) == "" {
			return &ValidationError{Kind: evt.Kind, Reason: "name is required"}
		}
		return nil
	case KindRunEnd:
		return nil
	default:
		return &ValidationError{Kind: evt.Kind, Reason: "unrecognized kind"}
	}
}
