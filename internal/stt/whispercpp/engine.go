// Package whispercpp transcribes segments in-process through the whisper.cpp
// CGO bindings. The whisper.cpp static library (libwhisper.a) and headers
// must be available at link time via LIBRARY_PATH and C_INCLUDE_PATH.
package whispercpp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/voxscribe/voxscribe/internal/stt"
)

// Engine is an stt.Engine backed by a locally loaded whisper.cpp model.
// The model is loaded once and shared; each Transcribe call uses a fresh
// whisper context because contexts are not thread-safe.
type Engine struct {
	language string

	mu    sync.Mutex
	model whisperlib.Model
}

var _ stt.Engine = (*Engine)(nil)

// New loads the whisper.cpp model from the given file path.
func New(modelPath, language string) (*Engine, error) {
	if modelPath == "" {
		return nil, errors.New("model path must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model %q: %w", modelPath, err)
	}
	if language == "" {
		language = "en"
	}
	return &Engine{model: model, language: language}, nil
}

// Transcribe runs whisper.cpp inference over the segment PCM.
func (e *Engine) Transcribe(ctx context.Context, segment stt.Segment) (stt.Result, error) {
	if err := ctx.Err(); err != nil {
		return stt.Result{}, err
	}

	samples := stt.PCMToFloat32(segment.PCM, segment.Channels)

	e.mu.Lock()
	model := e.model
	e.mu.Unlock()
	if model == nil {
		return stt.Result{}, errors.New("engine is closed")
	}

	wctx, err := model.NewContext()
	if err != nil {
		return stt.Result{}, fmt.Errorf("create whisper context: %w", err)
	}
	if err := wctx.SetLanguage(e.language); err != nil {
		return stt.Result{}, fmt.Errorf("set language %q: %w", e.language, err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return stt.Result{}, fmt.Errorf("process segment %s: %w", segment.ID, err)
	}

	var parts []string
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Result{}, fmt.Errorf("read segment text: %w", err)
		}
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return stt.Result{SegmentID: segment.ID, Text: strings.Join(parts, " ")}, nil
}

// Close releases the whisper model.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return nil
	}
	err := e.model.Close()
	e.model = nil
	return err
}
