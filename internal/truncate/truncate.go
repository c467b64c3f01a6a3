package truncate

import (
	"fmt"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

// Method selects a truncation strategy by name.
type Method string

const (
	// MethodEnd trims content to the budget and appends a visible marker.
	MethodEnd Method = "end"
	// MethodStructured keeps a prefix of a JSON array's elements so the
	// result still parses as an array.
	MethodStructured Method = "structured"
)

// Config bounds the size of stored content.
type Config struct {
	MaxCharacters   int    `json:"max_characters" yaml:"max_characters"`
	Method          Method `json:"method" yaml:"method"`
	IncludeSizeInfo bool   `json:"include_size_info" yaml:"include_size_info"`
}

// Truncator bounds content to a configured budget. Implementations never
// fail: every path degrades to shorter, valid text. Content at or under the
// budget is always returned unchanged.
type Truncator interface {
	Truncate(content string, cfg Config) string
}

// ForMethod returns the strategy registered for m. Unknown methods fall
// back to end-trimming; the second return value reports whether m was
// recognized so callers can log the fallback.
func ForMethod(m Method) (Truncator, bool) {
	switch m {
	case MethodEnd, "":
		return EndTrim{}, true
	case MethodStructured:
		return StructurePreserving{}, true
	}
	return EndTrim{}, false
}

// markerPrefix opens every end-trim marker block.
const markerPrefix = "[truncated"

// EndTrim keeps content up to the budget and appends a marker block. With
// IncludeSizeInfo set, the marker carries the original and kept lengths
// with digit grouping. The result never exceeds the budget plus the
// marker's own length.
type EndTrim struct{}

func (EndTrim) Truncate(content string, cfg Config) string {
	if len(content) <= cfg.MaxCharacters {
		return content
	}
	cut := cfg.MaxCharacters
	if cut < 0 {
		cut = 0
	}
	// Back off to a rune boundary so the kept prefix stays valid UTF-8.
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	kept := content[:cut]
	if cfg.IncludeSizeInfo {
		return kept + fmt.Sprintf("\n\n%s: %s chars -> %s chars]",
			markerPrefix, humanize.Comma(int64(len(content))), humanize.Comma(int64(len(kept))))
	}
	return kept + "\n\n" + markerPrefix + "]"
}
