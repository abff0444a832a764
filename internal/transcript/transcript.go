// Package transcript assembles and normalizes recognized speech segments.
package transcript

import "strings"

// Normalize collapses runs of whitespace and trims the ends.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	return strings.Join(strings.Fields(raw), " ")
}

// Assemble joins recognized segments in order, merging continuation
// segments so growing partial results never duplicate transcript text.
func Assemble(segments []string) string {
	merged := make([]string, 0, len(segments))
	for _, segment := range segments {
		merged = MergeSegment(merged, segment)
	}
	return Normalize(strings.Join(merged, " "))
}

// MergeSegment appends a segment, collapsing prefix continuations of the
// previous segment instead of growing the transcript twice.
func MergeSegment(segments []string, segment string) []string {
	segment = Normalize(segment)
	if segment == "" {
		return segments
	}
	if len(segments) == 0 {
		return append(segments, segment)
	}

	last := Normalize(segments[len(segments)-1])
	switch {
	case segment == last:
		return segments
	case strings.HasPrefix(segment, last):
		segments[len(segments)-1] = segment
		return segments
	case strings.HasPrefix(last, segment):
		return segments
	default:
		return append(segments, segment)
	}
}

// ContainsPhrase reports whether phrase occurs in text, case-insensitive,
// after whitespace normalization of both sides.
func ContainsPhrase(text string, phrase string) bool {
	phrase = strings.ToLower(Normalize(phrase))
	if phrase == "" {
		return false
	}
	return strings.Contains(strings.ToLower(Normalize(text)), phrase)
}
