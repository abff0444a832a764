package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate enforces config invariants, returning non-fatal warnings and a
// joined error listing every violation found.
func Validate(cfg Config) ([]Warning, error) {
	var errs []error
	warnings := make([]Warning, 0)

	switch cfg.Audio.Backend {
	case "pulse", "portaudio":
	default:
		errs = append(errs, fmt.Errorf("audio.backend must be one of: pulse, portaudio"))
	}
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be > 0"))
	}
	if cfg.Audio.Channels != 1 && cfg.Audio.Channels != 2 {
		errs = append(errs, fmt.Errorf("audio.channels must be 1 or 2"))
	}
	if cfg.Audio.ChunkMS <= 0 {
		errs = append(errs, fmt.Errorf("audio.chunk_ms must be > 0"))
	}

	if len(cfg.WakeWord.Keywords) == 0 {
		errs = append(errs, fmt.Errorf("wake_word.keywords must not be empty"))
	}
	for _, keyword := range cfg.WakeWord.Keywords {
		if strings.TrimSpace(keyword) == "" {
			errs = append(errs, fmt.Errorf("wake_word.keywords must not contain blank entries"))
			break
		}
	}
	if strings.TrimSpace(cfg.WakeWord.StopPhrase) == "" {
		errs = append(errs, fmt.Errorf("wake_word.stop_phrase must not be empty"))
	}
	if cfg.WakeWord.SilenceTimeout.Std() <= 0 {
		errs = append(errs, fmt.Errorf("wake_word.silence_timeout must be > 0"))
	}
	if cfg.WakeWord.ConfidenceThreshold <= 0 || cfg.WakeWord.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("wake_word.confidence_threshold must be in (0, 1]"))
	}
	if cfg.WakeWord.ChunkDuration.Std() <= 0 {
		errs = append(errs, fmt.Errorf("wake_word.chunk_duration must be > 0"))
	}
	if cfg.WakeWord.OverlapDuration.Std() < 0 || cfg.WakeWord.OverlapDuration.Std() >= cfg.WakeWord.ChunkDuration.Std() {
		errs = append(errs, fmt.Errorf("wake_word.overlap_duration must be >= 0 and < wake_word.chunk_duration"))
	}

	switch cfg.Transcription.Provider {
	case "whisper_http":
		if strings.TrimSpace(cfg.Transcription.Endpoint) == "" {
			errs = append(errs, fmt.Errorf("transcription.endpoint must not be empty for provider whisper_http"))
		}
	case "whisper_cpp":
		if strings.TrimSpace(cfg.Transcription.Model) == "" {
			errs = append(errs, fmt.Errorf("transcription.model must not be empty for provider whisper_cpp"))
		}
	case "mock":
	default:
		errs = append(errs, fmt.Errorf("transcription.provider must be one of: whisper_http, whisper_cpp, mock"))
	}
	if cfg.Transcription.Timeout.Std() <= 0 {
		errs = append(errs, fmt.Errorf("transcription.timeout must be > 0"))
	}
	if cfg.Transcription.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("transcription.max_retries must be >= 0"))
	}

	warnings = append(warnings, validatePowerWords(cfg.PowerWords, &errs)...)

	if cfg.Output.File.Enabled {
		if strings.TrimSpace(cfg.Output.File.Path) == "" {
			errs = append(errs, fmt.Errorf("output.file.path must not be empty when output.file.enabled=true"))
		}
		switch cfg.Output.File.Format {
		case "txt", "jsonl":
		default:
			errs = append(errs, fmt.Errorf("output.file.format must be one of: txt, jsonl"))
		}
	}
	if cfg.Output.Clipboard.Enabled && len(cfg.Output.Clipboard.Argv) == 0 {
		errs = append(errs, fmt.Errorf("output.clipboard.command must not be empty when output.clipboard.enabled=true"))
	}

	if cfg.Session.ChunkFlush.Std() <= 0 {
		errs = append(errs, fmt.Errorf("session.chunk_flush must be > 0"))
	}
	if cfg.Session.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("session.queue_size must be > 0"))
	}
	if cfg.Session.Workers <= 0 {
		errs = append(errs, fmt.Errorf("session.workers must be > 0"))
	}

	if cfg.Metrics.Enabled && strings.TrimSpace(cfg.Metrics.Listen) == "" {
		errs = append(errs, fmt.Errorf("metrics.listen must not be empty when metrics.enabled=true"))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return warnings, nil
}

func validatePowerWords(pw PowerWordsConfig, errs *[]error) []Warning {
	warnings := make([]Warning, 0)

	if pw.MaxCommandLength <= 0 {
		*errs = append(*errs, fmt.Errorf("power_words.max_command_length must be > 0"))
	}

	switch pw.Confirmation.Method {
	case "voice", "log_only":
	default:
		*errs = append(*errs, fmt.Errorf("power_words.confirmation.method must be one of: voice, log_only"))
	}
	if pw.Confirmation.Timeout.Std() <= 0 {
		*errs = append(*errs, fmt.Errorf("power_words.confirmation.timeout must be > 0"))
	}
	if pw.Confirmation.Retries < 0 {
		*errs = append(*errs, fmt.Errorf("power_words.confirmation.retries must be >= 0"))
	}

	if !pw.Enabled {
		return warnings
	}

	if len(pw.Mappings) == 0 {
		warnings = append(warnings, Warning{Message: "power_words.enabled=true but no mappings are configured"})
	}
	if !pw.RequireConfirmation {
		warnings = append(warnings, Warning{Message: "power_words.require_confirmation=false; commands will execute without approval"})
	}

	blocked := make(map[string]struct{}, len(pw.BlockedCommands))
	for _, cmd := range pw.BlockedCommands {
		blocked[strings.TrimSpace(cmd)] = struct{}{}
	}
	for phrase, command := range pw.Mappings {
		if strings.TrimSpace(phrase) == "" {
			*errs = append(*errs, fmt.Errorf("power_words.mappings must not contain blank phrases"))
			continue
		}
		if strings.TrimSpace(command) == "" {
			*errs = append(*errs, fmt.Errorf("power_words.mappings[%q] must not map to an empty command", phrase))
			continue
		}
		if len(command) > pw.MaxCommandLength && pw.MaxCommandLength > 0 {
			*errs = append(*errs, fmt.Errorf("power_words.mappings[%q] exceeds max_command_length=%d", phrase, pw.MaxCommandLength))
		}
		if _, isBlocked := blocked[strings.TrimSpace(command)]; isBlocked {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("power_words.mappings[%q] maps to blocked command %q; it will never execute", phrase, command)})
		}
	}

	return warnings
}
