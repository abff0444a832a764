// Package output routes finalized and partial transcripts to their
// configured destinations.
package output

import (
	"context"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/voxscribe/voxscribe/internal/config"
)

// Sink receives transcript text. Partial results are in-progress snapshots
// that a later emit for the same utterance supersedes.
type Sink interface {
	Emit(ctx context.Context, text string, partial bool) error
}

// Multi fans one emit out to every sink. A failing sink is logged and
// skipped; Multi itself never fails the pipeline.
type Multi struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewMulti combines sinks into one fan-out sink.
func NewMulti(logger *slog.Logger, sinks ...Sink) *Multi {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Multi{sinks: sinks, logger: logger}
}

// Emit delivers text to every sink, logging per-sink failures.
func (m *Multi) Emit(ctx context.Context, text string, partial bool) error {
	for _, sink := range m.sinks {
		if err := sink.Emit(ctx, text, partial); err != nil {
			m.logger.Error("output sink failed", "sink", sinkName(sink), "error", err)
		}
	}
	return nil
}

func sinkName(s Sink) string {
	switch s.(type) {
	case *ConsoleSink:
		return "console"
	case *FileSink:
		return "file"
	case *ClipboardSink:
		return "clipboard"
	default:
		return "unknown"
	}
}

// FromConfig assembles the configured sinks behind one Multi.
func FromConfig(cfg config.OutputConfig, fs afero.Fs, logger *slog.Logger) *Multi {
	var sinks []Sink
	if cfg.Console {
		sinks = append(sinks, NewConsoleSink(nil))
	}
	if cfg.File.Enabled {
		sinks = append(sinks, NewFileSink(fs, cfg.File.Path, cfg.File.Format))
	}
	if cfg.Clipboard.Enabled && len(cfg.Clipboard.Argv) > 0 {
		sinks = append(sinks, NewClipboardSink(cfg.Clipboard.Argv, logger))
	}
	return NewMulti(logger, sinks...)
}
