package output

import (
	"encoding/json"
	"fmt"
)

// Render produces a structured-text rendering of an arbitrary value. Values
// that cannot be serialized (cyclic graphs, channels, functions) degrade to
// a best-effort textual coercion; Render never fails.
func Render(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
