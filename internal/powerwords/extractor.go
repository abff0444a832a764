package powerwords

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/voxscribe/voxscribe/internal/config"
	"github.com/voxscribe/voxscribe/internal/observe"
)

// Confirmer decides whether one detected command may execute.
type Confirmer interface {
	Request(ctx context.Context, command string, class Classification) bool
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(ctx context.Context, command string, class Classification) bool

func (f ConfirmFunc) Request(ctx context.Context, command string, class Classification) bool {
	return f(ctx, command, class)
}

// phrasePattern is one compiled mapping entry, longest phrase first.
type phrasePattern struct {
	phrase  string
	command string
	re      *regexp.Regexp
}

// span is one claimed match region in the processed text.
type span struct {
	start   int
	end     int
	phrase  string
	command string
}

// Extractor scans transcribed text for mapped phrases and routes each match
// through validation, classification, confirmation, and execution.
type Extractor struct {
	enabled             bool
	requireConfirmation bool
	retainDenied        bool
	maxCommandLength    int
	blocked             []string

	patterns  []phrasePattern
	assessor  *Assessor
	confirmer Confirmer
	executor  Executor
	logger    *slog.Logger
	metrics   *observe.Metrics
}

// NewExtractor compiles the configured phrase mappings into word-boundary
// patterns ordered longest-first so shorter phrases never corrupt longer
// overlapping ones.
func NewExtractor(
	cfg config.PowerWordsConfig,
	confirmer Confirmer,
	executor Executor,
	logger *slog.Logger,
	metrics *observe.Metrics,
) (*Extractor, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if executor == nil {
		executor = ShellExecutor{Logger: logger}
	}

	e := &Extractor{
		enabled:             cfg.Enabled,
		requireConfirmation: cfg.RequireConfirmation,
		retainDenied:        cfg.RetainDeniedPhrase,
		maxCommandLength:    cfg.MaxCommandLength,
		blocked:             lowerAll(cfg.BlockedCommands),
		assessor:            NewAssessor(cfg.DangerousKeywords, cfg.AllowedCommands),
		confirmer:           confirmer,
		executor:            executor,
		logger:              logger,
		metrics:             metrics,
	}

	for phrase, command := range cfg.Mappings {
		normalized := strings.ToLower(strings.Join(strings.Fields(phrase), " "))
		if normalized == "" || strings.TrimSpace(command) == "" {
			continue
		}
		re, err := compilePhrase(normalized)
		if err != nil {
			return nil, fmt.Errorf("compile phrase %q: %w", phrase, err)
		}
		e.patterns = append(e.patterns, phrasePattern{phrase: normalized, command: command, re: re})
	}

	// longest phrase first; ties broken alphabetically for determinism
	sort.Slice(e.patterns, func(i, j int) bool {
		if len(e.patterns[i].phrase) != len(e.patterns[j].phrase) {
			return len(e.patterns[i].phrase) > len(e.patterns[j].phrase)
		}
		return e.patterns[i].phrase < e.patterns[j].phrase
	})

	return e, nil
}

// compilePhrase builds a case-insensitive word-boundary pattern tolerant of
// arbitrary whitespace between phrase words.
func compilePhrase(phrase string) (*regexp.Regexp, error) {
	words := strings.Fields(phrase)
	escaped := make([]string, len(words))
	for i, word := range words {
		escaped[i] = regexp.QuoteMeta(word)
	}
	return regexp.Compile(`(?i)\b` + strings.Join(escaped, `\s+`) + `\b`)
}

// ProcessText extracts every mapped phrase from text, confirms and executes
// matches in order of appearance, and returns the residual dictation with
// whitespace collapsed. Text without matches passes through unchanged.
func (e *Extractor) ProcessText(ctx context.Context, text string) (string, error) {
	if !e.enabled || len(e.patterns) == 0 || strings.TrimSpace(text) == "" {
		return text, nil
	}

	matches := e.findMatches(text)
	if len(matches) == 0 {
		return text, nil
	}

	var removed []span
	for _, match := range matches {
		e.logger.Info("power word detected", "phrase", match.phrase, "command", match.command)
		if e.metrics != nil {
			e.metrics.PowerWordsDetected.Inc()
		}

		if err := e.validate(match.command); err != nil {
			e.logger.Warn("command failed validation", "command", match.command, "error", err)
			if e.metrics != nil {
				e.metrics.PowerWordsDenied.Inc()
			}
			if !e.retainDenied {
				removed = append(removed, match)
			}
			continue
		}

		class := e.assessor.Classify(match.command)
		approved := true
		if e.requireConfirmation && e.confirmer != nil {
			approved = e.confirmer.Request(ctx, match.command, class)
		}

		if !approved {
			e.logger.Info("command denied", "phrase", match.phrase, "command", match.command, "class", string(class))
			if e.metrics != nil {
				e.metrics.PowerWordsDenied.Inc()
			}
			if !e.retainDenied {
				removed = append(removed, match)
			}
			continue
		}

		// the phrase is stripped even when execution fails, so a stale
		// command is never re-offered as dictation
		removed = append(removed, match)
		if err := e.executor.Execute(ctx, match.command); err != nil {
			e.logger.Error("command execution failed", "command", match.command, "error", err)
			continue
		}
		e.logger.Info("command executed", "phrase", match.phrase, "command", match.command, "class", string(class))
		if e.metrics != nil {
			e.metrics.PowerWordsExecuted.Inc()
		}
	}

	return stripSpans(text, removed), ctx.Err()
}

// findMatches claims disjoint spans longest-phrase-first, then returns them
// in order of appearance.
func (e *Extractor) findMatches(text string) []span {
	var claimed []span
	for _, pattern := range e.patterns {
		for _, loc := range pattern.re.FindAllStringIndex(text, -1) {
			candidate := span{start: loc[0], end: loc[1], phrase: pattern.phrase, command: pattern.command}
			if overlapsAny(candidate, claimed) {
				continue
			}
			claimed = append(claimed, candidate)
		}
	}

	sort.Slice(claimed, func(i, j int) bool { return claimed[i].start < claimed[j].start })
	return claimed
}

// validate applies the security checks that run before confirmation.
func (e *Extractor) validate(command string) error {
	if e.maxCommandLength > 0 && len(command) > e.maxCommandLength {
		return fmt.Errorf("command too long: %d > %d", len(command), e.maxCommandLength)
	}
	lowered := strings.ToLower(command)
	for _, blocked := range e.blocked {
		if blocked != "" && strings.Contains(lowered, blocked) {
			return fmt.Errorf("command contains blocked term %q", blocked)
		}
	}
	return nil
}

func overlapsAny(candidate span, claimed []span) bool {
	for _, existing := range claimed {
		if candidate.start < existing.end && existing.start < candidate.end {
			return true
		}
	}
	return false
}

// stripSpans removes the given regions and collapses the residual whitespace.
func stripSpans(text string, removed []span) string {
	if len(removed) == 0 {
		return text
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].start < removed[j].start })

	var b strings.Builder
	cursor := 0
	for _, s := range removed {
		if s.start > cursor {
			b.WriteString(text[cursor:s.start])
		}
		b.WriteString(" ")
		cursor = s.end
	}
	if cursor < len(text) {
		b.WriteString(text[cursor:])
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
