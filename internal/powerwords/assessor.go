// Package powerwords extracts configured command phrases from transcribed
// text, assesses their danger level, obtains confirmation, and delegates
// execution so commands never leak into dictation output.
package powerwords

import (
	"regexp"
	"strings"
)

// Classification is the danger level assigned to a resolved command.
type Classification string

const (
	ClassSafe      Classification = "safe"
	ClassDangerous Classification = "dangerous"
	ClassUnknown   Classification = "unknown"
)

// commands matching these shapes are considered safe without an allowlist hit:
// shortcuts, URLs, and plain application launches
var safePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\.lnk$`),
	regexp.MustCompile(`^https?://`),
	regexp.MustCompile(`explorer\.exe`),
	regexp.MustCompile(`notepad`),
	regexp.MustCompile(`chrome\.exe`),
	regexp.MustCompile(`start menu`),
}

// Assessor classifies commands deterministically from configured keyword sets.
type Assessor struct {
	dangerous []string
	allowed   []string
}

// NewAssessor lowercases the configured keyword sets once up front.
func NewAssessor(dangerousKeywords, allowedCommands []string) *Assessor {
	return &Assessor{
		dangerous: lowerAll(dangerousKeywords),
		allowed:   lowerAll(allowedCommands),
	}
}

// Classify returns Dangerous on a dangerous-keyword hit, Safe on a safe
// pattern or allowlist hit, and Unknown otherwise.
func (a *Assessor) Classify(command string) Classification {
	lowered := strings.ToLower(command)

	for _, keyword := range a.dangerous {
		if keyword != "" && strings.Contains(lowered, keyword) {
			return ClassDangerous
		}
	}

	for _, pattern := range safePatterns {
		if pattern.MatchString(lowered) {
			return ClassSafe
		}
	}

	for _, allowed := range a.allowed {
		if allowed != "" && strings.Contains(lowered, allowed) {
			return ClassSafe
		}
	}

	return ClassUnknown
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToLower(strings.TrimSpace(v)))
	}
	return out
}
