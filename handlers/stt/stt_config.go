package stt

import "time"

type STTConfig struct {
	Window      time.Duration // Length of one recording window. The stop flag is checked between windows.
	SampleRate  int           // The sample rate the recorder captures at, in Hz.
	MaxDuration time.Duration // Capture ends on its own after this long.
}

func DefaultConfig() STTConfig {
	return STTConfig{
		Window:      time.Second,
		SampleRate:  16000,
		MaxDuration: 2 * time.Minute,
	}
}
