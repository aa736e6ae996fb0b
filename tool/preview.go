package tool

import (
	"encoding/json"
	"fmt"
	"strings"
)

// maxPreviewRunes bounds a tool result preview embedded in a
// FunctionResponse so a single verbose tool doesn't dominate the model's
// context window.
const maxPreviewRunes = 2000

// Preview renders a clamped, whitespace-normalized preview of v suitable for
// embedding in a FunctionResponse. Struct and map values are JSON-encoded
// first; strings are used as-is.
func Preview(v any) string {
	var raw string
	switch val := v.(type) {
	case string:
		raw = val
	case fmt.Stringer:
		raw = val.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			raw = fmt.Sprintf("%v", v)
		} else {
			raw = string(b)
		}
	}
	return clamp(raw, maxPreviewRunes)
}

// clamp normalizes runs of whitespace to a single space and truncates to at
// most max runes.
func clamp(in string, max int) string {
	if in == "" {
		return ""
	}
	out := make([]rune, 0, len(in))
	prevSpace := false
	for _, r := range in {
		switch r {
		case '\n', '\r', '\t', ' ':
			if !prevSpace {
				out = append(out, ' ')
			}
			prevSpace = true
		default:
			out = append(out, r)
			prevSpace = false
		}
	}
	if len(out) <= max {
		return strings.TrimSpace(string(out))
	}
	return strings.TrimSpace(string(out[:max]))
}
