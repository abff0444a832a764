package output

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// FileSink appends final transcripts to a log file, creating parent
// directories on first write. Format is "txt" (plain lines) or "jsonl"
// (one timestamped JSON object per line).
type FileSink struct {
	fs     afero.Fs
	path   string
	format string

	mu sync.Mutex
}

type transcriptRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

// NewFileSink builds a file sink on fs; a nil fs uses the OS filesystem.
func NewFileSink(fs afero.Fs, path, format string) *FileSink {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if format == "" {
		format = "txt"
	}
	return &FileSink{fs: fs, path: path, format: format}
}

// Emit appends one final transcript; partials are skipped.
func (s *FileSink) Emit(_ context.Context, text string, partial bool) error {
	if partial || text == "" {
		return nil
	}

	line, err := s.formatLine(text)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating transcript directory: %w", err)
		}
	}

	f, err := s.fs.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening transcript file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("appending transcript: %w", err)
	}
	return nil
}

func (s *FileSink) formatLine(text string) (string, error) {
	switch s.format {
	case "jsonl":
		data, err := json.Marshal(transcriptRecord{Timestamp: time.Now().UTC(), Text: text})
		if err != nil {
			return "", fmt.Errorf("encoding transcript record: %w", err)
		}
		return string(data), nil
	default:
		return text, nil
	}
}
