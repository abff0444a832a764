package powerwords

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Executor runs an approved command action.
type Executor interface {
	Execute(ctx context.Context, command string) error
}

// ExecFunc adapts a function to the Executor interface.
type ExecFunc func(ctx context.Context, command string) error

func (f ExecFunc) Execute(ctx context.Context, command string) error {
	return f(ctx, command)
}

// ShellExecutor runs commands through `sh -c` from the user's home directory
// with a hard timeout.
type ShellExecutor struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// Execute runs one approved command and logs its captured output.
func (e ShellExecutor) Execute(ctx context.Context, command string) error {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if home, err := os.UserHomeDir(); err == nil {
		cmd.Dir = home
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("run command %q: %w: %s", command, err, strings.TrimSpace(string(output)))
	}
	if e.Logger != nil && len(output) > 0 {
		e.Logger.Debug("command output", "command", command, "output", strings.TrimSpace(string(output)))
	}
	return nil
}
