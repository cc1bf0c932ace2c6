package tts

type TTSSpeakingStartedEvent struct {
	Engine string `json:"engine"` // "remote" or "local"
}

func (e *TTSSpeakingStartedEvent) GetId() string {
	return "tts.speaking_started"
}

type TTSSpeakingEndedEvent struct {
	Engine      string `json:"engine"`
	Interrupted bool   `json:"interrupted"`
}

func (e *TTSSpeakingEndedEvent) GetId() string {
	return "tts.speaking_ended"
}

// TTSFallbackEvent is only emitted when verbose logging is enabled.
type TTSFallbackEvent struct {
	Reason string `json:"reason"`
}

func (e *TTSFallbackEvent) GetId() string {
	return "tts.fallback"
}
