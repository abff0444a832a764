package confirm

import (
	"context"
	"log/slog"
)

// LogOnlyStrategy records the pending command and returns a fixed decision,
// for environments without a usable microphone.
type LogOnlyStrategy struct {
	Approve bool
	Logger  *slog.Logger
}

// Confirm logs the command and answers with the configured decision.
func (s *LogOnlyStrategy) Confirm(_ context.Context, command string) (bool, bool, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if s.Approve {
		logger.Info("log-only confirmation approving command", "command", command)
	} else {
		logger.Info("log-only confirmation denying command", "command", command)
	}
	return s.Approve, true, nil
}
