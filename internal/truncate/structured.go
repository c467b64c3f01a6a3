package truncate

import "encoding/json"

// elementMarker is the single synthetic element appended to a truncated
// array in place of the dropped suffix.
type elementMarker struct {
	Truncated      bool `json:"_truncated"`
	OriginalLength int  `json:"_originalLength"`
}

// StructurePreserving truncates JSON-array content without breaking its
// parseability: it keeps a prefix of elements whose cumulative serialized
// size stays under the budget, then appends exactly one marker element
// recording the original element count. Content that does not parse as an
// array falls back to end-trimming.
type StructurePreserving struct{}

func (StructurePreserving) Truncate(content string, cfg Config) string {
	if len(content) <= cfg.MaxCharacters {
		return content
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(content), &elems); err != nil {
		return EndTrim{}.Truncate(content, cfg)
	}

	kept := make([]json.RawMessage, 0, len(elems))
	size := len("[]")
	for _, el := range elems {
		next := size + len(el) + len(",")
		if next >= cfg.MaxCharacters {
			break
		}
		kept = append(kept, el)
		size = next
	}

	marker, err := json.Marshal(elementMarker{Truncated: true, OriginalLength: len(elems)})
	if err != nil {
		return EndTrim{}.Truncate(content, cfg)
	}
	kept = append(kept, marker)

	out, err := json.Marshal(kept)
	if err != nil {
		return EndTrim{}.Truncate(content, cfg)
	}
	return string(out)
}
