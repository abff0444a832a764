package confirm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxscribe/voxscribe/internal/audio"
	"github.com/voxscribe/voxscribe/internal/stt"
)

var (
	affirmativeWords = []string{"yes", "yeah", "yep", "confirm", "approve", "ok", "okay", "sure", "proceed"}
	negativeWords    = []string{"no", "nope", "cancel", "deny", "stop", "abort", "negative"}
)

// VoiceStrategy listens for a spoken yes/no on a freshly opened capture
// source, isolated from the main session pipeline.
type VoiceStrategy struct {
	Sources     audio.SourceFactory
	Transcriber stt.Engine
	Format      audio.Format
	Logger      *slog.Logger
}

// NewVoiceStrategy builds a voice strategy over an isolated source factory.
func NewVoiceStrategy(sources audio.SourceFactory, transcriber stt.Engine, format audio.Format, logger *slog.Logger) *VoiceStrategy {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &VoiceStrategy{Sources: sources, Transcriber: transcriber, Format: format, Logger: logger}
}

// Confirm captures speech in roughly 1.6 second batches and scans each
// transcript for an affirmative or negative keyword. An attempt with no
// clear answer returns decided=false so the coordinator can retry.
func (s *VoiceStrategy) Confirm(ctx context.Context, command string) (bool, bool, error) {
	if s.Sources == nil || s.Transcriber == nil {
		return false, false, fmt.Errorf("voice confirmation not configured")
	}

	src, err := s.Sources(ctx)
	if err != nil {
		return false, false, fmt.Errorf("opening confirmation capture: %w", err)
	}
	defer src.Stop()

	s.Logger.Info("awaiting voice confirmation", "command", command)

	batchBytes := s.Format.SampleRate * s.Format.Channels * 2 * 16 / 10
	var buf audio.Buffer

	for {
		select {
		case <-ctx.Done():
			return false, false, nil
		case chunk, ok := <-src.Chunks():
			if !ok {
				return false, false, nil
			}
			buf.Append(chunk)
			if buf.Bytes() < batchBytes {
				continue
			}
			chunks := buf.DrainAll()
			approved, decided, err := s.evaluate(ctx, chunks)
			if err != nil {
				if ctx.Err() != nil {
					return false, false, nil
				}
				return false, false, err
			}
			if decided {
				return approved, true, nil
			}
		}
	}
}

func (s *VoiceStrategy) evaluate(ctx context.Context, chunks []audio.Chunk) (bool, bool, error) {
	seg := stt.NewSegment(chunks, s.Format)
	if len(seg.PCM) == 0 {
		return false, false, nil
	}
	result, err := s.Transcriber.Transcribe(ctx, seg)
	if err != nil {
		return false, false, fmt.Errorf("transcribing confirmation response: %w", err)
	}
	response := strings.ToLower(strings.TrimSpace(result.Text))
	if response == "" {
		return false, false, nil
	}
	s.Logger.Debug("confirmation response heard", "text", response)
	return parseResponse(response)
}

// parseResponse scans a transcript for a decision keyword. A negative beats
// an affirmative in the same utterance.
func parseResponse(response string) (bool, bool, error) {
	tokens := strings.Fields(response)
	for _, tok := range tokens {
		tok = strings.Trim(tok, ".,!?")
		for _, w := range negativeWords {
			if tok == w {
				return false, true, nil
			}
		}
	}
	for _, tok := range tokens {
		tok = strings.Trim(tok, ".,!?")
		for _, w := range affirmativeWords {
			if tok == w {
				return true, true, nil
			}
		}
	}
	return false, false, nil
}
