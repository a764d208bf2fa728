package security

import "strings"

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// SanitizeString escapes the characters that break out of HTML contexts.
// The ampersand is replaced first by the replacer so already-escaped
// entities are not double-mangled into validity.
func SanitizeString(s string) string {
	return htmlEscaper.Replace(s)
}

// Sanitize walks v and escapes every string it finds, recursing into maps
// and slices. Map keys are escaped as well as values. Non-string leaves are
// returned unchanged; the input is never mutated.
func Sanitize(v any) any {
	switch val := v.(type) {
	case string:
		return SanitizeString(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[SanitizeString(k)] = Sanitize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Sanitize(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = SanitizeString(item)
		}
		return out
	default:
		return v
	}
}
