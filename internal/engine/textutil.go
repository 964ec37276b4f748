package engine

import "strings"

// NormaliseLanguage picks the first non-blank candidate, falling back to
// "auto".
func NormaliseLanguage(candidate, fallback string) string {
	if trimmed := strings.TrimSpace(candidate); trimmed != "" {
		return strings.ToLower(trimmed)
	}
	if trimmed := strings.TrimSpace(fallback); trimmed != "" {
		return strings.ToLower(trimmed)
	}
	return "auto"
}

// IsAutoLanguage reports whether lang requests language detection.
func IsAutoLanguage(lang string) bool {
	trimmed := strings.TrimSpace(lang)
	return trimmed == "" || strings.EqualFold(trimmed, "auto")
}

// JoinSegments concatenates segment text verbatim, in emission order.
func JoinSegments(segments []Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(seg.Text)
	}
	return b.String()
}
