package tts

import "time"

// SpeechConfig is the per-call view of the provider settings.
type SpeechConfig struct {
	APIKey  string // remote synthesis is skipped when empty
	Verbose bool   // surface speech failures as status lines
}

type TTSConfig struct {
	RemoteTimeout time.Duration `json:"remote_timeout"` // Upper bound for one remote synthesis call.
}

// DefaultConfig returns a TTSConfig with sensible defaults.
func DefaultConfig() TTSConfig {
	return TTSConfig{
		RemoteTimeout: 30 * time.Second,
	}
}
