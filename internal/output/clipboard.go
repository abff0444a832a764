package output

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// ClipboardSink pipes final transcripts into an external clipboard command
// such as wl-copy or xclip.
type ClipboardSink struct {
	argv   []string
	logger *slog.Logger
}

// NewClipboardSink builds a clipboard sink around argv.
func NewClipboardSink(argv []string, logger *slog.Logger) *ClipboardSink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ClipboardSink{argv: argv, logger: logger}
}

// Emit copies a final transcript to the clipboard; partials are skipped.
func (s *ClipboardSink) Emit(ctx context.Context, text string, partial bool) error {
	if partial || text == "" {
		return nil
	}

	cmdCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := runCommandWithInput(cmdCtx, s.argv, text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	s.logger.Debug("transcript copied to clipboard", "bytes", len(text))
	return nil
}

// runCommandWithInput executes argv and writes input to its stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if input != "" {
		if _, err := stdin.Write([]byte(input)); err != nil {
			_ = stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write stdin for %s: %w", argv[0], err)
		}
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}
