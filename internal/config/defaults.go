package config

import "time"

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	clipboard := "wl-copy --trim-newline"

	return Config{
		Audio: AudioConfig{
			Backend:    "pulse",
			Input:      "default",
			Fallback:   "default",
			SampleRate: 16000,
			Channels:   1,
			ChunkMS:    20,
		},
		WakeWord: WakeWordConfig{
			Keywords:            []string{"hey voxscribe", "voxscribe"},
			StopPhrase:          "stop listening",
			SilenceTimeout:      Duration(15 * time.Second),
			ConfidenceThreshold: 0.7,
			ChunkDuration:       Duration(1500 * time.Millisecond),
			OverlapDuration:     Duration(500 * time.Millisecond),
		},
		Transcription: TranscriptionConfig{
			Provider:   "whisper_http",
			Endpoint:   "http://127.0.0.1:9000",
			Language:   "en",
			Model:      "base",
			Timeout:    Duration(30 * time.Second),
			MaxRetries: 2,
		},
		PowerWords: PowerWordsConfig{
			Enabled:             false,
			Mappings:            map[string]string{},
			RequireConfirmation: true,
			DangerousKeywords: []string{
				"rm", "delete", "format", "sudo", "admin", "reboot", "shutdown",
			},
			MaxCommandLength: 100,
			Confirmation: ConfirmationConfig{
				Method:        "voice",
				Timeout:       Duration(10 * time.Second),
				Retries:       2,
				DenyDangerous: true,
			},
		},
		Output: OutputConfig{
			Console: true,
			File: FileOutputConfig{
				Path:   "./transcripts/dictation.log",
				Format: "txt",
			},
			Clipboard: ClipboardOutputConfig{
				Command: clipboard,
				Argv:    mustParseArgv(clipboard),
			},
		},
		Session: SessionConfig{
			ChunkFlush: Duration(2 * time.Second),
			QueueSize:  100,
			Workers:    2,
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9102",
		},
	}
}
