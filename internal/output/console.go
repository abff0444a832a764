package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ConsoleSink prints transcripts to a writer, one line per final result.
type ConsoleSink struct {
	Timestamps bool
	Partials   bool

	mu  sync.Mutex
	out io.Writer
}

// NewConsoleSink writes to out, defaulting to stdout.
func NewConsoleSink(out io.Writer) *ConsoleSink {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleSink{out: out}
}

// Emit prints a final transcript line. Partials are suppressed unless
// Partials is set, in which case they are marked so a reader can tell
// them from committed text.
func (s *ConsoleSink) Emit(_ context.Context, text string, partial bool) error {
	if partial && !s.Partials {
		return nil
	}

	line := text
	if partial {
		line = "… " + line
	}
	if s.Timestamps {
		line = time.Now().Format("15:04:05") + " " + line
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintln(s.out, line); err != nil {
		return fmt.Errorf("writing transcript to console: %w", err)
	}
	return nil
}
