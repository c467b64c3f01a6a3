// Package output canonicalizes the heterogeneous final-output payloads an
// execution engine hands back at the end of a run.
package output

import (
	"log/slog"
	"strings"
)

// Shape classifies a raw final-output payload.
type Shape int

const (
	// ShapeEmpty is a nil payload.
	ShapeEmpty Shape = iota
	// ShapeText is a plain string.
	ShapeText
	// ShapeSegments is a sequence of segments, each possibly carrying a
	// text field.
	ShapeSegments
	// ShapeFields is an object exposing one of the conventional output
	// field names.
	ShapeFields
	// ShapeUnknown is anything else.
	ShapeUnknown
)

// fieldPriority lists the conventional output field names, highest
// priority first.
var fieldPriority = []string{"output", "answer", "text", "content"}

// Classify inspects the payload's shape. A map only classifies as
// ShapeFields when at least one conventional field is present.
func Classify(payload any) Shape {
	switch v := payload.(type) {
	case nil:
		return ShapeEmpty
	case string:
		return ShapeText
	case []any:
		return ShapeSegments
	case map[string]any:
		for _, field := range fieldPriority {
			if val, ok := v[field]; ok && val != nil {
				return ShapeFields
			}
		}
		return ShapeUnknown
	default:
		return ShapeUnknown
	}
}

// Normalize reduces the raw final-output payload to one canonical string.
// It never fails; unrecognized shapes degrade to a textual rendering of the
// payload with a logged warning.
func Normalize(payload any, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}
	switch Classify(payload) {
	case ShapeEmpty:
		return ""
	case ShapeText:
		return payload.(string)
	case ShapeSegments:
		var b strings.Builder
		for _, segment := range payload.([]any) {
			b.WriteString(segmentText(segment))
		}
		return b.String()
	case ShapeFields:
		fields := payload.(map[string]any)
		for _, field := range fieldPriority {
			val, ok := fields[field]
			if !ok || val == nil {
				continue
			}
			if s, isString := val.(string); isString {
				return s
			}
			return Render(val)
		}
		return Render(fields)
	default:
		logger.Warn("unexpected output format", "type", typeName(payload))
		return Render(payload)
	}
}

// segmentText extracts a segment's text-like field, falling back to a
// structured-text rendering of the whole segment.
func segmentText(segment any) string {
	switch v := segment.(type) {
	case string:
		return v
	case map[string]any:
		if text, ok := v["text"].(string); ok {
			return text
		}
	}
	return Render(segment)
}
