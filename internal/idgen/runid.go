package idgen

import (
	"fmt"
	"regexp"
)

var customIDPattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// InvalidIDError reports a rejected caller-provided identifier. Callers can
// match it with errors.As to tell bad input apart from infrastructure
// failures.
type InvalidIDError struct {
	ID     string
	Reason string
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("custom id %q is invalid: %s", e.ID, e.Reason)
}

// ValidateCustomID checks that id is a valid caller-provided run ID.
// Rules: lowercase letters, digits, and dashes; must start with a letter and
// end with a letter or digit; max 64 characters.
func ValidateCustomID(id string) error {
	if len(id) > 64 {
		return &InvalidIDError{ID: id, Reason: "too long (max 64 characters)"}
	}
	if !customIDPattern.MatchString(id) {
		return &InvalidIDError{ID: id, Reason: "must match " + customIDPattern.String()}
	}
	return nil
}
