// Package doctor runs runtime readiness diagnostics for config, audio,
// transcription, and output wiring.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/voxscribe/voxscribe/internal/audio"
	"github.com/voxscribe/voxscribe/internal/config"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(cfg config.Loaded) Report {
	checks := []Check{configCheck(cfg)}

	checks = append(checks, checkWakeWords(cfg.Config))
	checks = append(checks, checkAudio(cfg.Config))
	checks = append(checks, checkTranscription(cfg.Config))

	if cfg.Config.Output.Clipboard.Enabled {
		checks = append(checks, checkCommand(cfg.Config.Output.Clipboard.Argv, "clipboard_cmd"))
	}

	checks = append(checks, checkPowerWords(cfg.Config))

	return Report{Checks: checks}
}

// configCheck reports the resolved path and any validation warnings.
func configCheck(cfg config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		message = fmt.Sprintf("no file at %q; using defaults", cfg.Path)
	}
	if n := len(cfg.Warnings); n > 0 {
		message = fmt.Sprintf("%s (%d warning(s))", message, n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkWakeWords validates the wake keyword and stop phrase setup.
func checkWakeWords(cfg config.Config) Check {
	if len(cfg.WakeWord.Keywords) == 0 {
		return Check{Name: "wake_word", Pass: false, Message: "no wake keywords configured"}
	}
	for _, kw := range cfg.WakeWord.Keywords {
		if strings.EqualFold(strings.TrimSpace(kw), strings.TrimSpace(cfg.WakeWord.StopPhrase)) {
			return Check{Name: "wake_word", Pass: false, Message: fmt.Sprintf("keyword %q collides with the stop phrase", kw)}
		}
	}
	return Check{Name: "wake_word", Pass: true, Message: fmt.Sprintf("%d keyword(s), stop phrase %q", len(cfg.WakeWord.Keywords), cfg.WakeWord.StopPhrase)}
}

// checkAudio runs live device selection for the configured backend.
func checkAudio(cfg config.Config) Check {
	switch cfg.Audio.Backend {
	case "pulse":
		selection, err := audio.SelectDevice(context.Background(), cfg.Audio.Input, cfg.Audio.Fallback)
		if err != nil {
			return Check{Name: "audio.device", Pass: false, Message: err.Error()}
		}
		message := fmt.Sprintf("selected %q", selection.Device.ID)
		if selection.Warning != "" {
			message = message + " (" + selection.Warning + ")"
		}
		return Check{Name: "audio.device", Pass: true, Message: message}
	case "portaudio":
		devices, err := audio.ListPortAudioDevices(context.Background())
		if err != nil {
			return Check{Name: "audio.device", Pass: false, Message: err.Error()}
		}
		if len(devices) == 0 {
			return Check{Name: "audio.device", Pass: false, Message: "no portaudio input devices found"}
		}
		return Check{Name: "audio.device", Pass: true, Message: fmt.Sprintf("%d portaudio input device(s)", len(devices))}
	default:
		return Check{Name: "audio.device", Pass: false, Message: fmt.Sprintf("unknown audio backend %q", cfg.Audio.Backend)}
	}
}

// checkTranscription probes the configured transcription provider.
func checkTranscription(cfg config.Config) Check {
	switch cfg.Transcription.Provider {
	case "whisper_http":
		return checkEndpoint(cfg.Transcription.Endpoint)
	case "whisper_cpp":
		if cfg.Transcription.Model == "" {
			return Check{Name: "stt.model", Pass: false, Message: "whisper_cpp requires a model path"}
		}
		if _, err := os.Stat(cfg.Transcription.Model); err != nil {
			return Check{Name: "stt.model", Pass: false, Message: fmt.Sprintf("model not readable: %v", err)}
		}
		return Check{Name: "stt.model", Pass: true, Message: fmt.Sprintf("model present at %q", cfg.Transcription.Model)}
	case "mock":
		return Check{Name: "stt.provider", Pass: true, Message: "mock provider needs no backend"}
	default:
		return Check{Name: "stt.provider", Pass: false, Message: fmt.Sprintf("unknown provider %q", cfg.Transcription.Provider)}
	}
}

// checkEndpoint probes the whisper HTTP endpoint for reachability.
func checkEndpoint(endpoint string) Check {
	base := strings.TrimSpace(endpoint)
	if base == "" {
		return Check{Name: "stt.endpoint", Pass: false, Message: "transcription endpoint is empty"}
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(strings.TrimRight(base, "/") + "/health")
	if err != nil {
		return Check{Name: "stt.endpoint", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Check{Name: "stt.endpoint", Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, base)}
	}
	// 404 on /health still proves the server is reachable
	return Check{Name: "stt.endpoint", Pass: true, Message: fmt.Sprintf("reachable at %s (HTTP %d)", base, resp.StatusCode)}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkPowerWords sanity-checks the command mapping configuration.
func checkPowerWords(cfg config.Config) Check {
	pw := cfg.PowerWords
	if !pw.Enabled {
		return Check{Name: "power_words", Pass: true, Message: "disabled"}
	}
	if len(pw.Mappings) == 0 {
		return Check{Name: "power_words", Pass: false, Message: "enabled with no mappings"}
	}
	if !pw.RequireConfirmation {
		return Check{Name: "power_words", Pass: true, Message: fmt.Sprintf("%d mapping(s); confirmation disabled", len(pw.Mappings))}
	}
	return Check{Name: "power_words", Pass: true, Message: fmt.Sprintf("%d mapping(s); confirmation via %s", len(pw.Mappings), pw.Confirmation.Method)}
}
