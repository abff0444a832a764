// Package sttmock provides a scriptable transcription engine for tests and
// the mock provider mode.
package sttmock

import (
	"context"
	"sync"

	"github.com/voxscribe/voxscribe/internal/stt"
)

// Engine returns queued texts in order, then the Fallback text. It records
// every submitted segment.
type Engine struct {
	Fallback string

	mu       sync.Mutex
	queue    []response
	segments []stt.Segment
	closed   bool
}

type response struct {
	text string
	err  error
}

var _ stt.Engine = (*Engine)(nil)

// Enqueue scripts the next successful transcription text.
func (e *Engine) Enqueue(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = append(e.queue, response{text: text})
}

// EnqueueErr scripts the next transcription failure.
func (e *Engine) EnqueueErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = append(e.queue, response{err: err})
}

// Transcribe pops the next scripted response.
func (e *Engine) Transcribe(ctx context.Context, segment stt.Segment) (stt.Result, error) {
	if err := ctx.Err(); err != nil {
		return stt.Result{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.segments = append(e.segments, segment)

	if len(e.queue) == 0 {
		return stt.Result{SegmentID: segment.ID, Text: e.Fallback}, nil
	}
	next := e.queue[0]
	e.queue = e.queue[1:]
	if next.err != nil {
		return stt.Result{}, next.err
	}
	return stt.Result{SegmentID: segment.ID, Text: next.text}, nil
}

// Segments returns a copy of every segment submitted so far.
func (e *Engine) Segments() []stt.Segment {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]stt.Segment, len(e.segments))
	copy(out, e.segments)
	return out
}

// Closed reports whether Close has been called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Close marks the engine closed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
