// Package config resolves, parses, validates, and defaults voxscribe configuration.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fully materialized runtime configuration used by voxscribe.
type Config struct {
	Audio         AudioConfig         `yaml:"audio"`
	WakeWord      WakeWordConfig      `yaml:"wake_word"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	PowerWords    PowerWordsConfig    `yaml:"power_words"`
	Output        OutputConfig        `yaml:"output"`
	Session       SessionConfig       `yaml:"session"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// AudioConfig controls capture backend and stream-format selection.
type AudioConfig struct {
	Backend    string `yaml:"backend"`
	Input      string `yaml:"input"`
	Fallback   string `yaml:"fallback"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
	ChunkMS    int    `yaml:"chunk_ms"`
}

// WakeWordConfig controls wake-phrase and stop-phrase detection.
type WakeWordConfig struct {
	Keywords            []string `yaml:"keywords"`
	StopPhrase          string   `yaml:"stop_phrase"`
	SilenceTimeout      Duration `yaml:"silence_timeout"`
	ConfidenceThreshold float64  `yaml:"confidence_threshold"`
	ChunkDuration       Duration `yaml:"chunk_duration"`
	OverlapDuration     Duration `yaml:"overlap_duration"`
}

// TranscriptionConfig selects and tunes the speech-to-text engine.
type TranscriptionConfig struct {
	Provider   string   `yaml:"provider"`
	Endpoint   string   `yaml:"endpoint"`
	Language   string   `yaml:"language"`
	Model      string   `yaml:"model"`
	Timeout    Duration `yaml:"timeout"`
	MaxRetries int      `yaml:"max_retries"`
}

// PowerWordsConfig controls spoken-command extraction and execution policy.
type PowerWordsConfig struct {
	Enabled             bool               `yaml:"enabled"`
	Mappings            map[string]string  `yaml:"mappings"`
	RequireConfirmation bool               `yaml:"require_confirmation"`
	AllowedCommands     []string           `yaml:"allowed_commands"`
	BlockedCommands     []string           `yaml:"blocked_commands"`
	DangerousKeywords   []string           `yaml:"dangerous_keywords"`
	MaxCommandLength    int                `yaml:"max_command_length"`
	RetainDeniedPhrase  bool               `yaml:"retain_denied_phrase"`
	Confirmation        ConfirmationConfig `yaml:"confirmation"`
}

// ConfirmationConfig controls how execution approval is obtained.
type ConfirmationConfig struct {
	Method          string   `yaml:"method"`
	Timeout         Duration `yaml:"timeout"`
	Retries         int      `yaml:"retries"`
	AutoApproveSafe bool     `yaml:"auto_approve_safe"`
	LogOnlyApprove  bool     `yaml:"log_only_approve"`
	DenyDangerous   bool     `yaml:"deny_dangerous"`
}

// OutputConfig controls where residual dictation text is delivered.
type OutputConfig struct {
	Console   bool                  `yaml:"console"`
	File      FileOutputConfig      `yaml:"file"`
	Clipboard ClipboardOutputConfig `yaml:"clipboard"`
}

// FileOutputConfig controls the transcript file sink.
type FileOutputConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Format  string `yaml:"format"`
}

// ClipboardOutputConfig controls the clipboard sink command.
type ClipboardOutputConfig struct {
	Enabled bool   `yaml:"enabled"`
	Command string `yaml:"command"`

	// Argv is the parsed form of Command, populated during load.
	Argv []string `yaml:"-"`
}

// SessionConfig controls session-loop buffering and worker limits.
type SessionConfig struct {
	ChunkFlush Duration `yaml:"chunk_flush"`
	QueueSize  int      `yaml:"queue_size"`
	Workers    int      `yaml:"workers"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Warning is a non-fatal load/validation message.
type Warning struct {
	Message string
}

// Duration wraps time.Duration so YAML values like "15s" parse directly.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML parses a Go duration string scalar.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in Go duration-string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}
