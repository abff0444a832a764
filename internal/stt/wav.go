package stt

import (
	"encoding/binary"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV wraps little-endian s16 PCM in a 16-bit WAV container.
func EncodeWAV(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid wav format: sample_rate=%d channels=%d", sampleRate, channels)
	}

	var out seekableBuffer
	enc := wav.NewEncoder(&out, sampleRate, 16, channels, 1)

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(pcm)/2),
		SourceBitDepth: 16,
	}
	for i := range buf.Data {
		buf.Data[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("encode wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize wav: %w", err)
	}

	return out.data, nil
}

// PCMToFloat32 converts little-endian s16 PCM to mono float32 samples in
// [-1, 1], averaging channels when the stream is stereo.
func PCMToFloat32(pcm []byte, channels int) []float32 {
	if channels <= 0 {
		channels = 1
	}
	frameCount := len(pcm) / 2 / channels
	samples := make([]float32, 0, frameCount)
	for frame := 0; frame < frameCount; frame++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			offset := (frame*channels + ch) * 2
			sum += float32(int16(binary.LittleEndian.Uint16(pcm[offset:]))) / 32768.0
		}
		samples = append(samples, sum/float32(channels))
	}
	return samples
}

// seekableBuffer is an in-memory io.WriteSeeker for the wav encoder, which
// rewinds to patch RIFF sizes on Close.
type seekableBuffer struct {
	data []byte
	pos  int
}

func (b *seekableBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		grown := make([]byte, need)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekableBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(b.pos) + offset
	case io.SeekEnd:
		next = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("negative seek position %d", next)
	}
	b.pos = int(next)
	return next, nil
}

var _ io.WriteSeeker = (*seekableBuffer)(nil)
