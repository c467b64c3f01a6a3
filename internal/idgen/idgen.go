package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a UUIDv7 identifier string.
// If UUIDv7 generation fails, it falls back to a random UUIDv4.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Resolve returns supplied unchanged when it is non-empty, preserving
// identifiers assigned upstream (e.g. embedded in the execution engine's
// own protocol). Otherwise it generates a fresh identifier. The returned
// value links a tool call record to its result record, so callers resolve
// exactly once per pair and reuse the value on both sides.
func Resolve(supplied string) string {
	if s := strings.TrimSpace(supplied); s != "" {
		return s
	}
	return New()
}
