// Package confirm obtains execution approval for detected power word
// commands, failing closed on timeout, cancellation, or ambiguity.
package confirm

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/voxscribe/voxscribe/internal/config"
	"github.com/voxscribe/voxscribe/internal/observe"
	"github.com/voxscribe/voxscribe/internal/powerwords"
)

// Strategy is one way of asking the user for approval. The decided flag is
// false when no clear answer was obtained within the attempt.
type Strategy interface {
	Confirm(ctx context.Context, command string) (approved bool, decided bool, err error)
}

// Coordinator applies confirmation policy around a strategy: auto-approval
// of safe commands, outright denial of dangerous ones, per-attempt timeout,
// retries, and non-reentrancy.
type Coordinator struct {
	cfg      config.ConfirmationConfig
	strategy Strategy
	logger   *slog.Logger
	metrics  *observe.Metrics

	// held for the duration of one Request; TryLock keeps a second
	// concurrent request from nesting
	mu sync.Mutex
}

// NewCoordinator builds a coordinator; a nil strategy denies everything that
// is not auto-approved.
func NewCoordinator(cfg config.ConfirmationConfig, strategy Strategy, logger *slog.Logger, metrics *observe.Metrics) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{cfg: cfg, strategy: strategy, logger: logger, metrics: metrics}
}

var _ powerwords.Confirmer = (*Coordinator)(nil)

// Request decides whether one command may execute. It never nests: a request
// arriving while another is in flight is denied immediately.
func (c *Coordinator) Request(ctx context.Context, command string, class powerwords.Classification) bool {
	if !c.mu.TryLock() {
		c.logger.Warn("confirmation already in progress; denying concurrent request", "command", command)
		c.recordOutcome("reentrant_denied")
		return false
	}
	defer c.mu.Unlock()

	if class == powerwords.ClassDangerous && c.cfg.DenyDangerous {
		c.logger.Warn("dangerous command auto-denied", "command", command)
		c.recordOutcome("denied_dangerous")
		return false
	}

	if class == powerwords.ClassSafe && c.cfg.AutoApproveSafe {
		c.logger.Info("safe command auto-approved", "command", command)
		c.recordOutcome("auto_approved")
		return true
	}

	if c.strategy == nil {
		c.recordOutcome("denied")
		return false
	}

	timeout := c.cfg.Timeout.Std()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		approved, decided, err := c.strategy.Confirm(attemptCtx, command)
		cancel()

		if err != nil {
			c.logger.Error("confirmation attempt failed", "command", command, "error", err)
			c.recordOutcome("error")
			return false
		}
		if decided {
			if approved {
				c.recordOutcome("approved")
			} else {
				c.recordOutcome("denied")
			}
			return approved
		}
		if ctx.Err() != nil {
			c.recordOutcome("cancelled")
			return false
		}

		if attempt < c.cfg.Retries {
			c.logger.Info("no clear confirmation received; retrying",
				"command", command,
				"attempt", attempt+1,
				"retries", c.cfg.Retries,
			)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				c.recordOutcome("cancelled")
				return false
			}
		}
	}

	c.logger.Warn("confirmation retries exhausted; denying command", "command", command)
	c.recordOutcome("timeout")
	return false
}

func (c *Coordinator) recordOutcome(outcome string) {
	if c.metrics != nil {
		c.metrics.ConfirmationOutcomes.WithLabelValues(outcome).Inc()
	}
}

// NewStrategy resolves the configured confirmation method. Unknown methods
// yield a nil strategy, which the coordinator treats as deny-all.
func NewStrategy(cfg config.ConfirmationConfig, voice *VoiceStrategy, logger *slog.Logger) Strategy {
	switch cfg.Method {
	case "voice":
		if voice == nil {
			return nil
		}
		return voice
	case "log_only":
		return &LogOnlyStrategy{Approve: cfg.LogOnlyApprove, Logger: logger}
	default:
		if logger != nil {
			logger.Warn("unknown confirmation method; all commands will be denied", "method", cfg.Method)
		}
		return nil
	}
}
