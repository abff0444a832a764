package stt

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/voxscribe/voxscribe/internal/audio"
)

func TestNewSegmentTagsSequenceRange(t *testing.T) {
	format := audio.Format{SampleRate: 16000, Channels: 1, ChunkMS: 20}
	chunks := []audio.Chunk{
		{Seq: 7, Data: []byte{1, 2}},
		{Seq: 8, Data: []byte{3, 4}},
		{Seq: 9, Data: []byte{5, 6}},
	}

	segment := NewSegment(chunks, format)
	require.NotEqual(t, uuid.Nil, segment.ID)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, segment.PCM)
	require.Equal(t, uint64(7), segment.FirstSeq)
	require.Equal(t, uint64(9), segment.LastSeq)
	require.Equal(t, 16000, segment.SampleRate)
	require.Equal(t, 1, segment.Channels)
}

func TestNewSegmentEmptyChunks(t *testing.T) {
	segment := NewSegment(nil, audio.Format{SampleRate: 16000, Channels: 1})
	require.Empty(t, segment.PCM)
	require.Zero(t, segment.FirstSeq)
	require.Zero(t, segment.LastSeq)
}

func TestSegmentDuration(t *testing.T) {
	segment := Segment{PCM: make([]byte, 32000), SampleRate: 16000, Channels: 1}
	require.InDelta(t, 1.0, segment.Duration(), 0.001)

	require.Zero(t, Segment{}.Duration())
}
