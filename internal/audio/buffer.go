package audio

import (
	"sync"
	"time"
)

// Buffer accumulates capture chunks between transcription flushes. All
// methods are safe for concurrent use; DrainAll empties the buffer
// atomically so each chunk is handed to exactly one caller.
type Buffer struct {
	mu     sync.Mutex
	chunks []Chunk
	bytes  int
}

// Append adds one chunk to the buffer.
func (b *Buffer) Append(chunk Chunk) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = append(b.chunks, chunk)
	b.bytes += len(chunk.Data)
}

// DrainAll returns every buffered chunk and resets the buffer in one step.
func (b *Buffer) DrainAll() []Chunk {
	b.mu.Lock()
	defer b.mu.Unlock()
	drained := b.chunks
	b.chunks = nil
	b.bytes = 0
	return drained
}

// Len reports the number of buffered chunks.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// Bytes reports the total buffered PCM byte count.
func (b *Buffer) Bytes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bytes
}

// Duration reports the stream time covered by buffered PCM.
func (b *Buffer) Duration(format Format) time.Duration {
	return format.BytesDuration(b.Bytes())
}

// Silent reports whether all buffered PCM sits below the RMS threshold.
func (b *Buffer) Silent(threshold float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, chunk := range b.chunks {
		if RMS(chunk.Data) >= threshold {
			return false
		}
	}
	return true
}

// PCM concatenates chunk payloads into one PCM byte slice.
func PCM(chunks []Chunk) []byte {
	var total int
	for _, chunk := range chunks {
		total += len(chunk.Data)
	}
	out := make([]byte, 0, total)
	for _, chunk := range chunks {
		out = append(out, chunk.Data...)
	}
	return out
}
