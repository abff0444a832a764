package wake

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchExactContainment(t *testing.T) {
	m := NewMatcher([]string{"hey voxscribe", "voxscribe"}, 0.7)

	det, ok := m.Match("ok HEY VOXSCRIBE what's up")
	require.True(t, ok)
	require.Equal(t, "hey voxscribe", det.Keyword)
	require.Equal(t, 1.0, det.Score)
}

func TestMatchPrefersHigherScore(t *testing.T) {
	m := NewMatcher([]string{"hey voxscribe", "voxscribe"}, 0.7)

	det, ok := m.Match("voxscribe please")
	require.True(t, ok)
	require.Equal(t, "voxscribe", det.Keyword)
	require.Equal(t, 1.0, det.Score)
}

func TestMatchSingleSharedTokenDoesNotCarryPhrase(t *testing.T) {
	m := NewMatcher([]string{"hey voxscribe"}, 0.95)

	_, ok := m.Match("voxscribe please")
	require.False(t, ok)
}

func TestMatchFuzzyMisrecognition(t *testing.T) {
	m := NewMatcher([]string{"hey voxscribe"}, 0.7)

	det, ok := m.Match("hey vox scribe open the door")
	require.True(t, ok)
	require.GreaterOrEqual(t, det.Score, 0.6)
}

func TestMatchRejectsUnrelatedText(t *testing.T) {
	m := NewMatcher([]string{"hey voxscribe"}, 0.7)

	_, ok := m.Match("completely unrelated chatter")
	require.False(t, ok)
}

func TestMatchEmptyText(t *testing.T) {
	m := NewMatcher([]string{"hey voxscribe"}, 0.7)

	_, ok := m.Match("   ")
	require.False(t, ok)
}

func TestMatchIgnoresBlankKeywords(t *testing.T) {
	m := NewMatcher([]string{"  ", "computer"}, 0.7)

	det, ok := m.Match("computer run")
	require.True(t, ok)
	require.Equal(t, "computer", det.Keyword)
	require.Equal(t, 0, det.Index)
}

func TestMatchNormalizesWhitespaceInKeywords(t *testing.T) {
	m := NewMatcher([]string{"  hey   computer "}, 0.7)

	det, ok := m.Match("well hey computer")
	require.True(t, ok)
	require.Equal(t, "hey computer", det.Keyword)
}
