// Package wake detects configured wake phrases in transcribed audio windows.
package wake

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Detection describes one matched wake keyword.
type Detection struct {
	Keyword string
	Index   int
	Score   float64
}

// Matcher scores transcribed text against configured wake keywords using
// exact containment, Jaro-Winkler similarity, and Double Metaphone overlap.
type Matcher struct {
	keywords          []keyword
	fuzzyThreshold    float64
	phoneticThreshold float64
}

type keyword struct {
	text   string
	tokens []string
	codes  map[string]struct{}
}

// NewMatcher normalizes keywords and precomputes their phonetic codes.
// Threshold is the minimum Jaro-Winkler similarity for a fuzzy match;
// phonetically overlapping windows are accepted slightly below it.
func NewMatcher(keywords []string, threshold float64) *Matcher {
	phonetic := threshold - 0.1
	if phonetic < 0 {
		phonetic = 0
	}

	m := &Matcher{
		fuzzyThreshold:    threshold,
		phoneticThreshold: phonetic,
	}
	for _, raw := range keywords {
		text := strings.ToLower(strings.Join(strings.Fields(raw), " "))
		if text == "" {
			continue
		}
		tokens := strings.Fields(text)
		m.keywords = append(m.keywords, keyword{
			text:   text,
			tokens: tokens,
			codes:  codesForTokens(tokens),
		})
	}
	return m
}

// Match reports the best keyword detection in text, if any.
func (m *Matcher) Match(text string) (Detection, bool) {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	if normalized == "" {
		return Detection{}, false
	}
	tokens := strings.Fields(normalized)

	var (
		best      Detection
		bestExact bool
		bestFound bool
	)
	for i, kw := range m.keywords {
		score, exact, ok := m.scoreKeyword(normalized, tokens, kw)
		if !ok {
			continue
		}
		// an exact containment hit always beats a fuzzy one
		better := !bestFound ||
			(exact && !bestExact) ||
			(exact == bestExact && score > best.Score)
		if better {
			best = Detection{Keyword: kw.text, Index: i, Score: score}
			bestExact = exact
			bestFound = true
		}
	}
	return best, bestFound
}

// scoreKeyword checks exact containment first, then fuzzy/phonetic windows.
func (m *Matcher) scoreKeyword(normalized string, tokens []string, kw keyword) (float64, bool, bool) {
	if strings.Contains(normalized, kw.text) {
		return 1.0, true, true
	}

	windowLen := len(kw.tokens)
	if windowLen == 0 || len(tokens) < windowLen {
		return 0, false, false
	}

	var (
		bestScore float64
		found     bool
	)
	for start := 0; start+windowLen <= len(tokens); start++ {
		window := tokens[start : start+windowLen]
		score := bestJWScore(window, kw.tokens)

		phonetic := codesOverlap(codesForTokens(window), kw.codes)
		threshold := m.fuzzyThreshold
		if phonetic {
			threshold = m.phoneticThreshold
		}
		if score >= threshold && (!found || score > bestScore) {
			bestScore = score
			found = true
		}
	}
	return bestScore, false, found
}

// bestJWScore compares a token window against keyword tokens as full
// strings, space-stripped strings, and token alignment. A single shared
// token must not carry a multi-token keyword, so the alignment pass
// averages the best match per keyword token instead of taking a bare max.
func bestJWScore(window, kwTokens []string) float64 {
	score := matchr.JaroWinkler(strings.Join(window, " "), strings.Join(kwTokens, " "), false)

	if len(window) > 1 || len(kwTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(window, ""), strings.Join(kwTokens, ""), false); s > score {
			score = s
		}
	}

	var sum float64
	for _, kt := range kwTokens {
		var best float64
		for _, wt := range window {
			if s := matchr.JaroWinkler(wt, kt, false); s > best {
				best = s
			}
		}
		sum += best
	}
	if s := sum / float64(len(kwTokens)); s > score {
		score = s
	}
	return score
}

// codesForTokens returns the union of Double Metaphone codes for tokens.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap reports whether the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
