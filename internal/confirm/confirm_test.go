package confirm

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voxscribe/voxscribe/internal/audio"
	"github.com/voxscribe/voxscribe/internal/config"
	"github.com/voxscribe/voxscribe/internal/powerwords"
	"github.com/voxscribe/voxscribe/internal/stt/sttmock"
)

type scriptedStrategy struct {
	mu      sync.Mutex
	results []scriptedResult
	calls   int
	block   chan struct{}
}

type scriptedResult struct {
	approved bool
	decided  bool
	err      error
}

func (s *scriptedStrategy) Confirm(ctx context.Context, _ string) (bool, bool, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return false, false, nil
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.results) == 0 {
		return false, false, nil
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r.approved, r.decided, r.err
}

func testConfig() config.ConfirmationConfig {
	cfg := config.Default().PowerWords.Confirmation
	cfg.Timeout = config.Duration(200 * time.Millisecond)
	cfg.Retries = 2
	return cfg
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestRequestApprovedOnFirstAttempt(t *testing.T) {
	strategy := &scriptedStrategy{results: []scriptedResult{{approved: true, decided: true}}}
	coord := NewCoordinator(testConfig(), strategy, discard(), nil)

	require.True(t, coord.Request(context.Background(), "discord", powerwords.ClassUnknown))
	require.Equal(t, 1, strategy.calls)
}

func TestRequestDeniesDangerousWithoutAsking(t *testing.T) {
	strategy := &scriptedStrategy{results: []scriptedResult{{approved: true, decided: true}}}
	coord := NewCoordinator(testConfig(), strategy, discard(), nil)

	require.False(t, coord.Request(context.Background(), "sudo reboot", powerwords.ClassDangerous))
	require.Zero(t, strategy.calls)
}

func TestRequestAutoApprovesSafe(t *testing.T) {
	cfg := testConfig()
	cfg.AutoApproveSafe = true
	strategy := &scriptedStrategy{}
	coord := NewCoordinator(cfg, strategy, discard(), nil)

	require.True(t, coord.Request(context.Background(), "notepad", powerwords.ClassSafe))
	require.Zero(t, strategy.calls)
}

func TestRequestRetriesOnUnclearAnswer(t *testing.T) {
	strategy := &scriptedStrategy{results: []scriptedResult{
		{decided: false},
		{approved: false, decided: true},
	}}
	coord := NewCoordinator(testConfig(), strategy, discard(), nil)

	require.False(t, coord.Request(context.Background(), "discord", powerwords.ClassUnknown))
	require.Equal(t, 2, strategy.calls)
}

func TestRequestDeniesWhenRetriesExhausted(t *testing.T) {
	strategy := &scriptedStrategy{}
	coord := NewCoordinator(testConfig(), strategy, discard(), nil)

	require.False(t, coord.Request(context.Background(), "discord", powerwords.ClassUnknown))
	require.Equal(t, 3, strategy.calls)
}

func TestRequestDeniesOnStrategyError(t *testing.T) {
	strategy := &scriptedStrategy{results: []scriptedResult{{err: errors.New("mic unavailable")}}}
	coord := NewCoordinator(testConfig(), strategy, discard(), nil)

	require.False(t, coord.Request(context.Background(), "discord", powerwords.ClassUnknown))
	require.Equal(t, 1, strategy.calls)
}

func TestRequestDeniesOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	strategy := &scriptedStrategy{}
	coord := NewCoordinator(testConfig(), strategy, discard(), nil)

	require.False(t, coord.Request(ctx, "discord", powerwords.ClassUnknown))
}

func TestRequestDeniesConcurrentRequest(t *testing.T) {
	block := make(chan struct{})
	strategy := &scriptedStrategy{block: block, results: []scriptedResult{{approved: true, decided: true}}}
	cfg := testConfig()
	cfg.Timeout = config.Duration(2 * time.Second)
	coord := NewCoordinator(cfg, strategy, discard(), nil)

	first := make(chan bool, 1)
	go func() {
		first <- coord.Request(context.Background(), "discord", powerwords.ClassUnknown)
	}()

	require.Eventually(t, func() bool {
		if coord.mu.TryLock() {
			coord.mu.Unlock()
			return false
		}
		return true
	}, time.Second, 5*time.Millisecond)

	require.False(t, coord.Request(context.Background(), "send email", powerwords.ClassUnknown))

	close(block)
	require.True(t, <-first)
}

func TestRequestDeniesWithNilStrategy(t *testing.T) {
	coord := NewCoordinator(testConfig(), nil, discard(), nil)
	require.False(t, coord.Request(context.Background(), "discord", powerwords.ClassUnknown))
}

func TestNewStrategyResolution(t *testing.T) {
	cfg := testConfig()

	cfg.Method = "log_only"
	cfg.LogOnlyApprove = true
	s := NewStrategy(cfg, nil, discard())
	approved, decided, err := s.Confirm(context.Background(), "discord")
	require.NoError(t, err)
	require.True(t, decided)
	require.True(t, approved)

	cfg.Method = "telepathy"
	require.Nil(t, NewStrategy(cfg, nil, discard()))

	cfg.Method = "voice"
	require.Nil(t, NewStrategy(cfg, nil, discard()))
	voice := NewVoiceStrategy(nil, nil, audio.Format{}, nil)
	require.NotNil(t, NewStrategy(cfg, voice, discard()))
}

func TestLogOnlyStrategyDeniesByDefault(t *testing.T) {
	s := &LogOnlyStrategy{Logger: discard()}
	approved, decided, err := s.Confirm(context.Background(), "discord")
	require.NoError(t, err)
	require.True(t, decided)
	require.False(t, approved)
}

type fakeSource struct {
	chunks chan audio.Chunk
	once   sync.Once
}

func newFakeSource(pcmChunks ...[]byte) *fakeSource {
	src := &fakeSource{chunks: make(chan audio.Chunk, len(pcmChunks))}
	for i, pcm := range pcmChunks {
		src.chunks <- audio.Chunk{Seq: uint64(i), Data: pcm, CapturedAt: time.Now()}
	}
	return src
}

func (s *fakeSource) Chunks() <-chan audio.Chunk { return s.chunks }
func (s *fakeSource) Device() audio.Device       { return audio.Device{ID: "fake"} }
func (s *fakeSource) BytesCaptured() int64       { return 0 }
func (s *fakeSource) Stop() error {
	s.once.Do(func() { close(s.chunks) })
	return nil
}

func voiceFormat() audio.Format {
	return audio.Format{SampleRate: 16000, Channels: 1, ChunkMS: 100}
}

// batch returns enough 100ms chunks to fill one evaluation window.
func batch(format audio.Format) [][]byte {
	chunk := make([]byte, format.ChunkBytes())
	out := make([][]byte, 16)
	for i := range out {
		out[i] = chunk
	}
	return out
}

func TestVoiceConfirmAffirmative(t *testing.T) {
	format := voiceFormat()
	engine := &sttmock.Engine{}
	engine.Enqueue("yes please")
	src := newFakeSource(batch(format)...)
	strategy := NewVoiceStrategy(func(context.Context) (audio.Source, error) { return src, nil }, engine, format, nil)

	approved, decided, err := strategy.Confirm(context.Background(), "discord")
	require.NoError(t, err)
	require.True(t, decided)
	require.True(t, approved)
}

func TestVoiceConfirmNegativeBeatsAffirmative(t *testing.T) {
	format := voiceFormat()
	engine := &sttmock.Engine{}
	engine.Enqueue("yes no wait cancel")
	src := newFakeSource(batch(format)...)
	strategy := NewVoiceStrategy(func(context.Context) (audio.Source, error) { return src, nil }, engine, format, nil)

	approved, decided, err := strategy.Confirm(context.Background(), "discord")
	require.NoError(t, err)
	require.True(t, decided)
	require.False(t, approved)
}

func TestVoiceConfirmUnclearUntilTimeout(t *testing.T) {
	format := voiceFormat()
	engine := &sttmock.Engine{Fallback: "the weather is nice"}
	src := newFakeSource(batch(format)...)
	strategy := NewVoiceStrategy(func(context.Context) (audio.Source, error) { return src, nil }, engine, format, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, decided, err := strategy.Confirm(ctx, "discord")
	require.NoError(t, err)
	require.False(t, decided)
}

func TestVoiceConfirmSourceFailure(t *testing.T) {
	strategy := NewVoiceStrategy(func(context.Context) (audio.Source, error) {
		return nil, errors.New("no microphone")
	}, &sttmock.Engine{}, voiceFormat(), nil)

	_, _, err := strategy.Confirm(context.Background(), "discord")
	require.Error(t, err)
	require.Contains(t, err.Error(), "opening confirmation capture")
}

func TestParseResponsePunctuation(t *testing.T) {
	approved, decided, err := parseResponse("okay.")
	require.NoError(t, err)
	require.True(t, decided)
	require.True(t, approved)

	approved, decided, err = parseResponse("nope!")
	require.NoError(t, err)
	require.True(t, decided)
	require.False(t, approved)

	_, decided, err = parseResponse("maybe later")
	require.NoError(t, err)
	require.False(t, decided)
}
