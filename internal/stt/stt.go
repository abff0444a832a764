// Package stt defines the transcription engine contract and the PCM segment
// payloads submitted to it.
package stt

import (
	"context"

	"github.com/google/uuid"

	"github.com/voxscribe/voxscribe/internal/audio"
)

// Segment is one buffered audio span submitted for transcription exactly once.
type Segment struct {
	ID         uuid.UUID
	PCM        []byte
	SampleRate int
	Channels   int
	FirstSeq   uint64
	LastSeq    uint64
}

// Result is the text produced for one segment.
type Result struct {
	SegmentID uuid.UUID
	Text      string
	Partial   bool
}

// Engine transcribes PCM segments to text.
type Engine interface {
	Transcribe(ctx context.Context, segment Segment) (Result, error)
	Close() error
}

// NewSegment assembles drained capture chunks into a single segment.
func NewSegment(chunks []audio.Chunk, format audio.Format) Segment {
	segment := Segment{
		ID:         uuid.New(),
		PCM:        audio.PCM(chunks),
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
	}
	if len(chunks) > 0 {
		segment.FirstSeq = chunks[0].Seq
		segment.LastSeq = chunks[len(chunks)-1].Seq
	}
	return segment
}

// Duration reports the stream time covered by the segment's PCM.
func (s Segment) Duration() float64 {
	bytesPerSecond := s.SampleRate * s.Channels * 2
	if bytesPerSecond == 0 {
		return 0
	}
	return float64(len(s.PCM)) / float64(bytesPerSecond)
}
