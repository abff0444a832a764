package wake

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/voxscribe/voxscribe/internal/audio"
	"github.com/voxscribe/voxscribe/internal/stt"
)

// windows quieter than this RMS are skipped without transcription
const silenceRMS = 0.01

// Engine accumulates listening-phase audio into rolling windows, transcribes
// each window, and reports wake keyword detections through a callback.
type Engine struct {
	matcher     *Matcher
	transcriber stt.Engine
	format      audio.Format
	logger      *slog.Logger

	windowBytes  int
	overlapBytes int

	queue    chan audio.Chunk
	onDetect func(Detection)

	// mu guards window; Reset is called from the session loop goroutine
	// while Run keeps draining the queue
	mu     sync.Mutex
	window []audio.Chunk
}

// EngineConfig wires an Engine's collaborators and window geometry.
type EngineConfig struct {
	Matcher       *Matcher
	Transcriber   stt.Engine
	Format        audio.Format
	Logger        *slog.Logger
	ChunkDuration time.Duration
	Overlap       time.Duration
	QueueSize     int
	OnDetect      func(Detection)
}

// NewEngine builds a wake engine; Run must be started for Offer to drain.
func NewEngine(cfg EngineConfig) *Engine {
	bytesPerSecond := cfg.Format.SampleRate * cfg.Format.Channels * 2
	windowBytes := int(cfg.ChunkDuration.Seconds() * float64(bytesPerSecond))
	overlapBytes := int(cfg.Overlap.Seconds() * float64(bytesPerSecond))
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}

	return &Engine{
		matcher:      cfg.Matcher,
		transcriber:  cfg.Transcriber,
		format:       cfg.Format,
		logger:       cfg.Logger,
		windowBytes:  windowBytes,
		overlapBytes: overlapBytes,
		queue:        make(chan audio.Chunk, cfg.QueueSize),
		onDetect:     cfg.OnDetect,
	}
}

// Offer enqueues one listening-phase chunk without blocking; chunks are
// dropped with a warning when the queue is full.
func (e *Engine) Offer(chunk audio.Chunk) bool {
	select {
	case e.queue <- chunk:
		return true
	default:
		e.logger.Warn("wake queue full; dropping chunk", "seq", chunk.Seq)
		return false
	}
}

// Reset discards the rolling window, used when the session leaves the
// listening state.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.window = nil
	e.mu.Unlock()
	for {
		select {
		case <-e.queue:
		default:
			return
		}
	}
}

// Run drains the queue until ctx is cancelled, transcribing each full window.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case chunk := <-e.queue:
			if e.appendChunk(chunk) < e.windowBytes {
				continue
			}
			e.processWindow(ctx)
		}
	}
}

// appendChunk adds one chunk to the window and reports the accumulated
// PCM byte count.
func (e *Engine) appendChunk(chunk audio.Chunk) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.window = append(e.window, chunk)
	var total int
	for _, c := range e.window {
		total += len(c.Data)
	}
	return total
}

// processWindow transcribes the current window and fires onDetect on a match.
// The tail overlap is retained so phrases spanning window boundaries still hit.
func (e *Engine) processWindow(ctx context.Context) {
	e.mu.Lock()
	chunks := e.window
	e.window = e.retainOverlap(chunks)
	e.mu.Unlock()

	pcm := audio.PCM(chunks)
	if audio.RMS(pcm) < silenceRMS {
		return
	}

	segment := stt.NewSegment(chunks, e.format)
	result, err := e.transcriber.Transcribe(ctx, segment)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Warn("wake window transcription failed", "error", err)
		}
		return
	}

	detection, ok := e.matcher.Match(result.Text)
	if !ok {
		return
	}

	e.logger.Info("wake keyword detected",
		"keyword", detection.Keyword,
		"score", detection.Score,
		"text", result.Text,
	)
	e.Reset()
	if e.onDetect != nil {
		e.onDetect(detection)
	}
}

// retainOverlap keeps the trailing chunks covering the configured overlap.
func (e *Engine) retainOverlap(chunks []audio.Chunk) []audio.Chunk {
	if e.overlapBytes <= 0 {
		return nil
	}
	var kept []audio.Chunk
	var total int
	for i := len(chunks) - 1; i >= 0; i-- {
		if total >= e.overlapBytes {
			break
		}
		total += len(chunks[i].Data)
		kept = append([]audio.Chunk{chunks[i]}, kept...)
	}
	return kept
}
