package powerwords

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voxscribe/voxscribe/internal/config"
)

func approveAll(ctx context.Context, command string, class Classification) bool { return true }

func denyAll(ctx context.Context, command string, class Classification) bool { return false }

// recordingExecutor captures executed commands in order.
type recordingExecutor struct {
	mu       sync.Mutex
	commands []string
	err      error
}

func (r *recordingExecutor) Execute(_ context.Context, command string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, command)
	return r.err
}

func (r *recordingExecutor) executed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.commands))
	copy(out, r.commands)
	return out
}

func baseConfig() config.PowerWordsConfig {
	cfg := config.Default().PowerWords
	cfg.Enabled = true
	cfg.Mappings = map[string]string{
		"open discord": "discord",
		"send email":   "thunderbird",
	}
	return cfg
}

func newTestExtractor(t *testing.T, cfg config.PowerWordsConfig, confirmer Confirmer, executor Executor) *Extractor {
	t.Helper()
	e, err := NewExtractor(cfg, confirmer, executor, nil, nil)
	require.NoError(t, err)
	return e
}

func TestProcessTextExtractsApprovedCommand(t *testing.T) {
	exec := &recordingExecutor{}
	e := newTestExtractor(t, baseConfig(), ConfirmFunc(approveAll), exec)

	out, err := e.ProcessText(context.Background(), "please open discord and then type hello world")
	require.NoError(t, err)
	require.Equal(t, "please and then type hello world", out)
	require.Equal(t, []string{"discord"}, exec.executed())
}

func TestProcessTextMultipleCommandsInOrder(t *testing.T) {
	exec := &recordingExecutor{}
	e := newTestExtractor(t, baseConfig(), ConfirmFunc(approveAll), exec)

	out, err := e.ProcessText(context.Background(), "first send email then open discord to chat")
	require.NoError(t, err)
	require.Equal(t, "first then to chat", out)
	require.Equal(t, []string{"thunderbird", "discord"}, exec.executed())
}

func TestProcessTextNoMatchPassthrough(t *testing.T) {
	exec := &recordingExecutor{}
	e := newTestExtractor(t, baseConfig(), ConfirmFunc(approveAll), exec)

	input := "this is just dictation with no commands"
	out, err := e.ProcessText(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, input, out)
	require.Empty(t, exec.executed())
}

func TestProcessTextEmptyInput(t *testing.T) {
	e := newTestExtractor(t, baseConfig(), ConfirmFunc(approveAll), &recordingExecutor{})

	out, err := e.ProcessText(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestProcessTextDeniedCommandStripped(t *testing.T) {
	exec := &recordingExecutor{}
	e := newTestExtractor(t, baseConfig(), ConfirmFunc(denyAll), exec)

	out, err := e.ProcessText(context.Background(), "please open discord now")
	require.NoError(t, err)
	require.Equal(t, "please now", out)
	require.Empty(t, exec.executed())
}

func TestProcessTextDeniedCommandRetainedWhenConfigured(t *testing.T) {
	cfg := baseConfig()
	cfg.RetainDeniedPhrase = true
	exec := &recordingExecutor{}
	e := newTestExtractor(t, cfg, ConfirmFunc(denyAll), exec)

	out, err := e.ProcessText(context.Background(), "please open discord now")
	require.NoError(t, err)
	require.Equal(t, "please open discord now", out)
	require.Empty(t, exec.executed())
}

func TestProcessTextLongestPhraseWins(t *testing.T) {
	cfg := baseConfig()
	cfg.Mappings = map[string]string{
		"open":             "opener",
		"open discord now": "discord",
	}
	exec := &recordingExecutor{}
	e := newTestExtractor(t, cfg, ConfirmFunc(approveAll), exec)

	out, err := e.ProcessText(context.Background(), "please open discord now friend")
	require.NoError(t, err)
	require.Equal(t, "please friend", out)
	require.Equal(t, []string{"discord"}, exec.executed())
}

func TestProcessTextExecutionFailureStillStrips(t *testing.T) {
	exec := &recordingExecutor{err: errors.New("spawn failed")}
	e := newTestExtractor(t, baseConfig(), ConfirmFunc(approveAll), exec)

	out, err := e.ProcessText(context.Background(), "please open discord now")
	require.NoError(t, err)
	require.Equal(t, "please now", out)
	require.Equal(t, []string{"discord"}, exec.executed())
}

func TestProcessTextBlockedCommandNeverConfirmedOrExecuted(t *testing.T) {
	cfg := baseConfig()
	cfg.BlockedCommands = []string{"discord"}
	exec := &recordingExecutor{}
	confirmCalled := false
	e := newTestExtractor(t, cfg, ConfirmFunc(func(ctx context.Context, command string, class Classification) bool {
		confirmCalled = true
		return true
	}), exec)

	out, err := e.ProcessText(context.Background(), "open discord please")
	require.NoError(t, err)
	require.Equal(t, "please", out)
	require.False(t, confirmCalled)
	require.Empty(t, exec.executed())
}

func TestProcessTextOverlongCommandDenied(t *testing.T) {
	cfg := baseConfig()
	cfg.MaxCommandLength = 3
	exec := &recordingExecutor{}
	e := newTestExtractor(t, cfg, ConfirmFunc(approveAll), exec)

	out, err := e.ProcessText(context.Background(), "open discord please")
	require.NoError(t, err)
	require.Equal(t, "please", out)
	require.Empty(t, exec.executed())
}

func TestProcessTextDisabledPassthrough(t *testing.T) {
	cfg := baseConfig()
	cfg.Enabled = false
	exec := &recordingExecutor{}
	e := newTestExtractor(t, cfg, ConfirmFunc(approveAll), exec)

	input := "open discord please"
	out, err := e.ProcessText(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, input, out)
	require.Empty(t, exec.executed())
}

func TestProcessTextWithoutConfirmationRequirementExecutesDirectly(t *testing.T) {
	cfg := baseConfig()
	cfg.RequireConfirmation = false
	exec := &recordingExecutor{}
	e := newTestExtractor(t, cfg, ConfirmFunc(denyAll), exec)

	out, err := e.ProcessText(context.Background(), "open discord")
	require.NoError(t, err)
	require.Empty(t, out)
	require.Equal(t, []string{"discord"}, exec.executed())
}

func TestProcessTextCaseInsensitiveMatch(t *testing.T) {
	exec := &recordingExecutor{}
	e := newTestExtractor(t, baseConfig(), ConfirmFunc(approveAll), exec)

	out, err := e.ProcessText(context.Background(), "please OPEN Discord now")
	require.NoError(t, err)
	require.Equal(t, "please now", out)
	require.Equal(t, []string{"discord"}, exec.executed())
}

func TestProcessTextWordBoundaryRespected(t *testing.T) {
	cfg := baseConfig()
	cfg.Mappings = map[string]string{"note": "notepad"}
	exec := &recordingExecutor{}
	e := newTestExtractor(t, cfg, ConfirmFunc(approveAll), exec)

	out, err := e.ProcessText(context.Background(), "keynotes are not commands")
	require.NoError(t, err)
	require.Equal(t, "keynotes are not commands", out)
	require.Empty(t, exec.executed())
}
