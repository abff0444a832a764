// Package audio handles device discovery, selection, and PCM capture streams.
package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Chunk is one fixed-size PCM capture unit tagged with a monotonic sequence.
type Chunk struct {
	Seq        uint64
	Data       []byte
	CapturedAt time.Time
}

// Format describes the little-endian s16 PCM stream shape shared by capture
// and transcription.
type Format struct {
	SampleRate int
	Channels   int
	ChunkMS    int
}

// ChunkBytes returns the byte size of one capture chunk.
func (f Format) ChunkBytes() int {
	return f.SampleRate * f.Channels * 2 * f.ChunkMS / 1000
}

// BytesDuration converts a PCM byte count to stream time.
func (f Format) BytesDuration(n int) time.Duration {
	bytesPerSecond := f.SampleRate * f.Channels * 2
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bytesPerSecond)
}

// Source is a single-consumer PCM chunk stream.
type Source interface {
	Chunks() <-chan Chunk
	Device() Device
	BytesCaptured() int64
	Stop() error
}

// SourceFactory opens a fresh capture stream, used where an isolated
// microphone instance is needed alongside the session stream.
type SourceFactory func(ctx context.Context) (Source, error)

// Open resolves the configured device and starts a capture stream on the
// selected backend.
func Open(ctx context.Context, backend, input, fallback string, format Format) (Source, Selection, error) {
	switch backend {
	case "pulse":
		selection, err := SelectDevice(ctx, input, fallback)
		if err != nil {
			return nil, Selection{}, err
		}
		capture, err := StartCapture(ctx, selection.Device, format)
		if err != nil {
			return nil, Selection{}, err
		}
		return capture, selection, nil
	case "portaudio":
		capture, err := StartPortAudioCapture(ctx, format)
		if err != nil {
			return nil, Selection{}, err
		}
		return capture, Selection{Device: capture.Device()}, nil
	default:
		return nil, Selection{}, fmt.Errorf("unknown audio backend %q", backend)
	}
}

// RMS returns the root-mean-square amplitude of little-endian s16 PCM,
// normalized to [0, 1].
func RMS(pcm []byte) float64 {
	sampleCount := len(pcm) / 2
	if sampleCount == 0 {
		return 0
	}

	var sum float64
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := float64(int16(binary.LittleEndian.Uint16(pcm[i:]))) / 32768.0
		sum += sample * sample
	}
	return math.Sqrt(sum / float64(sampleCount))
}
