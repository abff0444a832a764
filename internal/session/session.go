// Package session coordinates the dictation lifecycle: wake listening,
// active transcription, command extraction, and output dispatch.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/voxscribe/voxscribe/internal/audio"
	"github.com/voxscribe/voxscribe/internal/config"
	"github.com/voxscribe/voxscribe/internal/fsm"
	"github.com/voxscribe/voxscribe/internal/ipc"
	"github.com/voxscribe/voxscribe/internal/observe"
	"github.com/voxscribe/voxscribe/internal/output"
	"github.com/voxscribe/voxscribe/internal/powerwords"
	"github.com/voxscribe/voxscribe/internal/stt"
	"github.com/voxscribe/voxscribe/internal/transcript"
)

type action int

const (
	actionStart action = iota + 1
	actionStop
)

// chunks quieter than this RMS do not count as voice activity
const voiceRMS = 0.01

// errHalted signals a clean stop-phrase or stop-command shutdown.
var errHalted = errors.New("session halted")

// Result is the complete lifecycle output returned by one Run invocation.
type Result struct {
	State          fsm.State
	Utterances     int
	LastTranscript string
	Err            error
	StartedAt      time.Time
	FinishedAt     time.Time
}

// WakeDetector is the session-facing subset of wake engine behavior.
type WakeDetector interface {
	Offer(chunk audio.Chunk) bool
	Reset()
	Run(ctx context.Context)
}

// noopWake preserves session flow when no wake detector is wired.
type noopWake struct{}

func (noopWake) Offer(audio.Chunk) bool  { return true }
func (noopWake) Reset()                  {}
func (noopWake) Run(ctx context.Context) { <-ctx.Done() }

// Observer receives session lifecycle notifications.
type Observer interface {
	StateChanged(old, new fsm.State)
	WakeDetected(keyword string)
	TranscriptionResult(result stt.Result)
}

// NoopObserver ignores every notification.
type NoopObserver struct{}

func (NoopObserver) StateChanged(fsm.State, fsm.State) {}
func (NoopObserver) WakeDetected(string)               {}
func (NoopObserver) TranscriptionResult(stt.Result)    {}

// Controller orchestrates session state transitions and the audio pipeline.
type Controller struct {
	logger    *slog.Logger
	cfg       config.Config
	source    audio.Source
	wake      WakeDetector
	engine    stt.Engine
	extractor *powerwords.Extractor
	sink      output.Sink
	metrics   *observe.Metrics
	observer  Observer

	mu    sync.RWMutex
	state fsm.State

	queue  chan audio.Chunk
	buffer audio.Buffer

	episodeMu   sync.Mutex
	episodeLive bool
	episodeStop context.CancelFunc

	// serializes segment submission; procSem bounds process tasks
	submitMu sync.Mutex
	procSem  *semaphore.Weighted

	voiceMu   sync.Mutex
	lastVoice time.Time

	runCtx context.Context

	actions  chan action
	wakeCh   chan string
	haltCh   chan struct{}
	haltOnce sync.Once

	utterances     int
	lastTranscript string
}

// NewController constructs a session controller with safe default fallbacks.
func NewController(
	logger *slog.Logger,
	cfg config.Config,
	source audio.Source,
	wake WakeDetector,
	engine stt.Engine,
	extractor *powerwords.Extractor,
	sink output.Sink,
	metrics *observe.Metrics,
	observer Observer,
) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if wake == nil {
		wake = noopWake{}
	}
	if sink == nil {
		sink = output.NewMulti(logger)
	}
	if observer == nil {
		observer = NoopObserver{}
	}

	queueSize := cfg.Session.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	workers := cfg.Session.Workers
	if workers <= 0 {
		workers = 2
	}

	return &Controller{
		logger:    logger,
		cfg:       cfg,
		source:    source,
		wake:      wake,
		engine:    engine,
		extractor: extractor,
		sink:      sink,
		metrics:   metrics,
		observer:  observer,
		state:     fsm.StateIdle,
		queue:     make(chan audio.Chunk, queueSize),
		procSem:   semaphore.NewWeighted(int64(workers)),
		actions:   make(chan action, 1),
		wakeCh:    make(chan string, 1),
		haltCh:    make(chan struct{}),
	}
}

// State returns the current FSM state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Utterances returns the count of finalized utterances so far.
func (c *Controller) Utterances() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.utterances
}

// transition applies one FSM event to the controller state.
func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	old := c.state
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = next
	c.mu.Unlock()

	if old != next {
		if c.metrics != nil {
			c.metrics.RecordTransition(string(old), string(next))
		}
		c.observer.StateChanged(old, next)
	}
	return nil
}

// Reset returns an errored controller to idle.
func (c *Controller) Reset() error {
	if err := c.transition(fsm.EventReset); err != nil {
		return fmt.Errorf("cannot reset from state %s", c.State())
	}
	c.logger.Info("session reset to idle")
	return nil
}

// Run executes one session lifecycle until the stop phrase, a stop command,
// or context cancellation.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{StartedAt: time.Now()}

	if err := c.transition(fsm.EventStart); err != nil {
		result.State = c.State()
		result.Err = err
		result.FinishedAt = time.Now()
		return result
	}

	if c.source == nil || c.engine == nil {
		c.toError()
		result.State = c.State()
		result.Err = fmt.Errorf("session requires an audio source and a transcription engine")
		result.FinishedAt = time.Now()
		return result
	}

	if c.metrics != nil {
		c.metrics.SessionActive.Set(1)
		defer c.metrics.SessionActive.Set(0)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.runCtx = runCtx

	c.logger.Info("session started",
		"device", c.source.Device().ID,
		"wake_keywords", c.cfg.WakeWord.Keywords,
	)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		c.wake.Run(gctx)
		return nil
	})
	g.Go(func() error { return c.route(gctx) })
	g.Go(func() error { return c.loop(gctx) })

	err := g.Wait()
	c.stopConsumer()
	if stopErr := c.source.Stop(); stopErr != nil {
		c.logger.Warn("stopping audio source failed", "error", stopErr)
	}

	switch {
	case errors.Is(err, errHalted):
		// stop phrase or stop command; state already idle
	case err != nil:
		c.toError()
		result.Err = err
	case ctx.Err() != nil:
		_ = c.transition(fsm.EventStop)
		result.Err = ctx.Err()
	default:
		_ = c.transition(fsm.EventStop)
	}

	result.State = c.State()
	c.mu.RLock()
	result.Utterances = c.utterances
	result.LastTranscript = c.lastTranscript
	c.mu.RUnlock()
	result.FinishedAt = time.Now()
	c.logger.Info("session finished",
		"state", string(result.State),
		"utterances", result.Utterances,
		"bytes_captured", c.source.BytesCaptured(),
	)
	return result
}

// route moves captured chunks to the wake detector or the episode queue
// depending on the current state.
func (c *Controller) route(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case chunk, ok := <-c.source.Chunks():
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("audio source closed unexpectedly")
			}
			if c.metrics != nil {
				c.metrics.ChunksCaptured.Inc()
			}
			switch c.State() {
			case fsm.StateListening:
				c.wake.Offer(chunk)
			case fsm.StateTranscribing, fsm.StateProcessing:
				c.enqueue(chunk)
			}
		}
	}
}

// enqueue adds a chunk to the bounded episode queue, dropping the newest
// chunk with a warning when full.
func (c *Controller) enqueue(chunk audio.Chunk) {
	select {
	case c.queue <- chunk:
	default:
		if c.metrics != nil {
			c.metrics.ChunksDropped.Inc()
		}
		c.logger.Warn("session queue full; dropping chunk", "seq", chunk.Seq)
	}
}

// loop is the single event loop: wake hits, IPC actions, and the flush /
// silence ticker all land here so processing never races itself.
func (c *Controller) loop(ctx context.Context) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.haltCh:
			return errHalted
		case keyword := <-c.wakeCh:
			c.beginEpisode(ctx, keyword)
		case a := <-c.actions:
			switch a {
			case actionStart:
				c.beginEpisode(ctx, "")
			case actionStop:
				if c.State() == fsm.StateTranscribing {
					c.finishEpisode(ctx, true)
				} else {
					_ = c.transition(fsm.EventStop)
				}
				return errHalted
			}
		case <-ticker.C:
			if c.State() != fsm.StateTranscribing {
				continue
			}
			if c.buffer.Duration(c.format()) >= c.cfg.Session.ChunkFlush.Std() {
				c.flushPartial(ctx)
			}
			// stop phrase found during the flush wins over the silence path
			if c.State() == fsm.StateTranscribing && c.silenceElapsed() {
				c.logger.Info("silence timeout; finalizing utterance")
				c.finishEpisode(ctx, false)
			}
		}
	}
}

// OnWakeDetected signals a wake keyword hit; safe to call from any goroutine.
func (c *Controller) OnWakeDetected(keyword string) {
	select {
	case c.wakeCh <- keyword:
	default:
	}
}

// OnSilenceElapsed finalizes the active utterance and resumes listening.
func (c *Controller) OnSilenceElapsed() {
	if ctx := c.runCtx; ctx != nil {
		c.finishEpisode(ctx, false)
	}
}

// OnStopPhrase flushes pending dictation and halts the session.
func (c *Controller) OnStopPhrase() {
	if ctx := c.runCtx; ctx != nil {
		c.finishEpisode(ctx, true)
		if c.State() == fsm.StateIdle {
			c.requestHalt()
		}
	}
}

// OnError moves the session to the terminal error state.
func (c *Controller) OnError(err error) {
	c.logger.Error("session error", "error", err)
	c.toError()
	c.requestHalt()
}

// beginEpisode starts active transcription after a wake hit or explicit
// start. Wake hits while already transcribing are dictation, not commands.
func (c *Controller) beginEpisode(ctx context.Context, keyword string) {
	if c.State() != fsm.StateListening {
		return
	}
	if err := c.transition(fsm.EventWake); err != nil {
		return
	}

	c.buffer.DrainAll()
	c.markVoice()
	if keyword != "" {
		if c.metrics != nil {
			c.metrics.WakeDetections.Inc()
		}
		c.observer.WakeDetected(keyword)
		c.logger.Info("active transcription started", "keyword", keyword)
	} else {
		c.logger.Info("active transcription started", "trigger", "command")
	}
	c.startConsumer(ctx)
}

// startConsumer launches the single queue-draining goroutine for the
// episode; calling it again while one is live is a no-op.
func (c *Controller) startConsumer(ctx context.Context) {
	c.episodeMu.Lock()
	defer c.episodeMu.Unlock()
	if c.episodeLive {
		return
	}
	epCtx, cancel := context.WithCancel(ctx)
	c.episodeLive = true
	c.episodeStop = cancel

	go func() {
		defer cancel()
		for {
			select {
			case <-epCtx.Done():
				return
			case chunk := <-c.queue:
				c.buffer.Append(chunk)
				if audio.RMS(chunk.Data) >= voiceRMS {
					c.markVoice()
				}
			}
		}
	}()
}

// stopConsumer cancels the episode consumer exactly once.
func (c *Controller) stopConsumer() {
	c.episodeMu.Lock()
	defer c.episodeMu.Unlock()
	if !c.episodeLive {
		return
	}
	c.episodeStop()
	c.episodeLive = false
	c.episodeStop = nil
}

// flushPartial submits the buffered audio as a rolling partial segment.
func (c *Controller) flushPartial(ctx context.Context) {
	c.processBatch(ctx, false, false)
}

// finishEpisode drains the remaining buffer as the final segment, stops the
// consumer, and either resumes listening or halts.
func (c *Controller) finishEpisode(ctx context.Context, halt bool) {
	if c.State() != fsm.StateTranscribing {
		return
	}
	c.processBatch(ctx, true, halt)
	c.stopConsumer()
	c.wake.Reset()
}

// processBatch drains the buffer, transcribes it, extracts power word
// commands, and emits the residual dictation. State transitions:
// flush -> processing, then partial_done, processed, or halt.
func (c *Controller) processBatch(ctx context.Context, final bool, halt bool) {
	chunks := c.buffer.DrainAll()

	if err := c.transition(fsm.EventFlush); err != nil {
		return
	}

	finishEvent := fsm.EventPartialDone
	if final {
		finishEvent = fsm.EventProcessed
	}
	if halt {
		finishEvent = fsm.EventHalt
	}

	if len(chunks) == 0 {
		_ = c.transition(finishEvent)
		return
	}

	text, err := c.transcribeChunks(ctx, chunks)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Error("transcription failed; dropping utterance", "error", err)
		}
		if c.metrics != nil {
			c.metrics.TranscriptionFailures.Inc()
		}
		if final {
			_ = c.transition(finishEvent)
		} else {
			// drop the failed partial but keep the episode alive
			_ = c.transition(fsm.EventPartialDone)
		}
		return
	}

	if transcript.ContainsPhrase(text, c.cfg.WakeWord.StopPhrase) {
		c.logger.Info("stop phrase detected; halting session")
		text = trimAtPhrase(text, c.cfg.WakeWord.StopPhrase)
		final = true
		finishEvent = fsm.EventHalt
	}

	residual := text
	if c.extractor != nil {
		residual, err = c.extractor.ProcessText(ctx, text)
		if err != nil {
			_ = c.transition(finishEvent)
			return
		}
	}

	if residual != "" {
		if err := c.sink.Emit(ctx, residual, !final); err != nil {
			c.logger.Error("emitting transcript failed", "error", err)
		}
		if final {
			c.mu.Lock()
			c.utterances++
			c.lastTranscript = residual
			c.mu.Unlock()
		}
	}

	_ = c.transition(finishEvent)
	if finishEvent == fsm.EventHalt {
		c.requestHalt()
	}
}

// transcribeChunks runs one bounded, serialized transcription submission.
func (c *Controller) transcribeChunks(ctx context.Context, chunks []audio.Chunk) (string, error) {
	if err := c.procSem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.procSem.Release(1)

	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	segment := stt.NewSegment(chunks, c.format())

	if c.metrics != nil {
		c.metrics.SegmentsSubmitted.Inc()
	}
	started := time.Now()
	result, err := c.engine.Transcribe(ctx, segment)
	if c.metrics != nil {
		c.metrics.TranscriptionDuration.Observe(time.Since(started).Seconds())
	}
	if err != nil {
		return "", fmt.Errorf("transcribing segment %s: %w", segment.ID, err)
	}

	c.observer.TranscriptionResult(result)
	return transcript.Normalize(result.Text), nil
}

// Handle serves IPC commands for the active session.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		return ipc.Response{OK: true, State: string(c.State()), Utterances: c.Utterances(), Message: "status"}
	case "start":
		return c.requestStart()
	case "stop":
		return c.requestStop()
	case "reset":
		if err := c.Reset(); err != nil {
			return ipc.Response{OK: false, State: string(c.State()), Error: err.Error()}
		}
		return ipc.Response{OK: true, State: string(c.State()), Message: "reset"}
	default:
		return ipc.Response{OK: false, State: string(c.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

// requestStart forces active transcription, bypassing wake detection.
func (c *Controller) requestStart() ipc.Response {
	state := c.State()
	if state == fsm.StateTranscribing || state == fsm.StateProcessing {
		return ipc.Response{OK: true, State: string(state), Message: "already transcribing"}
	}
	if state != fsm.StateListening {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot start from state %s", state)}
	}

	select {
	case c.actions <- actionStart:
		return ipc.Response{OK: true, State: string(state), Message: "start requested"}
	default:
		return ipc.Response{OK: true, State: string(state), Message: "start already requested"}
	}
}

// requestStop flushes pending dictation and halts the session.
func (c *Controller) requestStop() ipc.Response {
	state := c.State()
	if state == fsm.StateIdle || state == fsm.StateError {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot stop from state %s", state)}
	}

	select {
	case c.actions <- actionStop:
		return ipc.Response{OK: true, State: string(state), Message: "stop requested"}
	default:
		return ipc.Response{OK: true, State: string(state), Message: "stop already requested"}
	}
}

// requestHalt asks the run loop to exit exactly once.
func (c *Controller) requestHalt() {
	c.haltOnce.Do(func() { close(c.haltCh) })
}

// toError transitions to the terminal error state.
func (c *Controller) toError() {
	_ = c.transition(fsm.EventFail)
}

// format returns the session capture format snapshot.
func (c *Controller) format() audio.Format {
	return audio.Format{
		SampleRate: c.cfg.Audio.SampleRate,
		Channels:   c.cfg.Audio.Channels,
		ChunkMS:    c.cfg.Audio.ChunkMS,
	}
}

// markVoice records voice activity for the silence timer.
func (c *Controller) markVoice() {
	c.voiceMu.Lock()
	c.lastVoice = time.Now()
	c.voiceMu.Unlock()
}

// silenceElapsed reports whether the silence timeout has passed since the
// last voiced chunk.
func (c *Controller) silenceElapsed() bool {
	timeout := c.cfg.WakeWord.SilenceTimeout.Std()
	if timeout <= 0 {
		return false
	}
	c.voiceMu.Lock()
	last := c.lastVoice
	c.voiceMu.Unlock()
	return !last.IsZero() && time.Since(last) >= timeout
}

// trimAtPhrase drops phrase and everything after it, case-insensitive.
func trimAtPhrase(text string, phrase string) string {
	phrase = transcript.Normalize(phrase)
	if phrase == "" {
		return text
	}
	idx := strings.Index(strings.ToLower(text), strings.ToLower(phrase))
	if idx < 0 {
		return text
	}
	return strings.TrimSpace(text[:idx])
}
