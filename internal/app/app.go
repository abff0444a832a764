package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxscribe/voxscribe/internal/audio"
	"github.com/voxscribe/voxscribe/internal/cli"
	"github.com/voxscribe/voxscribe/internal/config"
	"github.com/voxscribe/voxscribe/internal/confirm"
	"github.com/voxscribe/voxscribe/internal/doctor"
	"github.com/voxscribe/voxscribe/internal/ipc"
	"github.com/voxscribe/voxscribe/internal/logging"
	"github.com/voxscribe/voxscribe/internal/observe"
	"github.com/voxscribe/voxscribe/internal/output"
	"github.com/voxscribe/voxscribe/internal/powerwords"
	"github.com/voxscribe/voxscribe/internal/session"
	"github.com/voxscribe/voxscribe/internal/stt"
	"github.com/voxscribe/voxscribe/internal/stt/sttmock"
	"github.com/voxscribe/voxscribe/internal/stt/whispercpp"
	"github.com/voxscribe/voxscribe/internal/stt/whisperhttp"
	"github.com/voxscribe/voxscribe/internal/version"
	"github.com/voxscribe/voxscribe/internal/wake"
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("voxscribe"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("voxscribe"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
		logger.Warn("config warning", "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStart:
		return r.forwardOrFail(ctx, "start")
	case cli.CommandStop:
		return r.forwardOrFail(ctx, "stop")
	case cli.CommandReset:
		return r.forwardOrFail(ctx, "reset")
	case cli.CommandRun:
		return r.commandRun(ctx, cfgLoaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, "status")
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		fmt.Fprintln(r.Stdout, resp.State)
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no active voxscribe session\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// commandRun starts the dictation daemon: capture, wake detection, the IPC
// control socket, and (optionally) the metrics endpoint.
func (r Runner) commandRun(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintf(r.Stderr, "error: voxscribe session already running\n")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	format := audio.Format{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		ChunkMS:    cfg.Audio.ChunkMS,
	}

	engine, err := buildEngine(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = engine.Close() }()

	source, selection, err := audio.Open(ctx, cfg.Audio.Backend, cfg.Audio.Input, cfg.Audio.Fallback, format)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if selection.Warning != "" {
		logger.Warn("audio device fallback", "warning", selection.Warning)
	}

	metrics := observe.NewMetrics()

	var controller *session.Controller
	wakeEngine := wake.NewEngine(wake.EngineConfig{
		Matcher:       wake.NewMatcher(cfg.WakeWord.Keywords, cfg.WakeWord.ConfidenceThreshold),
		Transcriber:   engine,
		Format:        format,
		Logger:        logger,
		ChunkDuration: cfg.WakeWord.ChunkDuration.Std(),
		Overlap:       cfg.WakeWord.OverlapDuration.Std(),
		QueueSize:     cfg.Session.QueueSize,
		OnDetect: func(d wake.Detection) {
			if controller != nil {
				controller.OnWakeDetected(d.Keyword)
			}
		},
	})

	extractor, err := buildExtractor(cfg, engine, format, logger, metrics)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	sink := output.FromConfig(cfg.Output, nil, logger)

	controller = session.NewController(logger, cfg, source, wakeEngine, engine, extractor, sink, metrics, nil)

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	g, gctx := errgroup.WithContext(serverCtx)
	g.Go(func() error {
		return ipc.Serve(gctx, listener, controller)
	})
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.Metrics.Listen, logger)
		})
	}

	result := controller.Run(ctx)

	// the session is done; stop the auxiliary servers
	serverCancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", err)
		return 1
	}

	logSessionResult(logger, result)

	if result.Err != nil && !errors.Is(result.Err, context.Canceled) {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}
	if strings.TrimSpace(result.LastTranscript) != "" {
		fmt.Fprintln(r.Stdout, strings.TrimSpace(result.LastTranscript))
	}

	return 0
}

// buildEngine resolves the configured transcription provider.
func buildEngine(cfg config.Config, logger *slog.Logger) (stt.Engine, error) {
	switch cfg.Transcription.Provider {
	case "whisper_http":
		return whisperhttp.New(whisperhttp.Config{
			Endpoint:   cfg.Transcription.Endpoint,
			Language:   cfg.Transcription.Language,
			Model:      cfg.Transcription.Model,
			Timeout:    cfg.Transcription.Timeout.Std(),
			MaxRetries: cfg.Transcription.MaxRetries,
		})
	case "whisper_cpp":
		return whispercpp.New(cfg.Transcription.Model, cfg.Transcription.Language)
	case "mock":
		logger.Warn("using mock transcription provider; no real speech recognition")
		return &sttmock.Engine{}, nil
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", cfg.Transcription.Provider)
	}
}

// buildExtractor wires power word extraction with its confirmation chain.
// Returns a nil extractor when power words are disabled.
func buildExtractor(
	cfg config.Config,
	engine stt.Engine,
	format audio.Format,
	logger *slog.Logger,
	metrics *observe.Metrics,
) (*powerwords.Extractor, error) {
	if !cfg.PowerWords.Enabled {
		return nil, nil
	}

	// confirmation listens on its own capture stream so the session
	// pipeline never sees the yes/no audio
	sources := audio.SourceFactory(func(srcCtx context.Context) (audio.Source, error) {
		src, _, err := audio.Open(srcCtx, cfg.Audio.Backend, cfg.Audio.Input, cfg.Audio.Fallback, format)
		return src, err
	})

	voice := confirm.NewVoiceStrategy(sources, engine, format, logger)
	strategy := confirm.NewStrategy(cfg.PowerWords.Confirmation, voice, logger)
	coordinator := confirm.NewCoordinator(cfg.PowerWords.Confirmation, strategy, logger, metrics)

	return powerwords.NewExtractor(cfg.PowerWords, coordinator, nil, logger, metrics)
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"state", result.State,
		"utterances", result.Utterances,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"transcript_length", len(result.LastTranscript),
	}

	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}

func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) {
		return ipc.Response{}, false, nil
	}
	if isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
