package factories

import (
	"strings"

	"sita/core"
	ttshandler "sita/handlers/tts"
	elevenlabs "sita/services/elevenlabs/tts"
	localtts "sita/services/local/tts"
	"sita/utils/audio"
)

// SpeechConfig is the per-call view the synthesizer needs.
func (c SettingsConfig) SpeechConfig() ttshandler.SpeechConfig {
	return ttshandler.SpeechConfig{APIKey: strings.TrimSpace(c.ElevenLabsAPIKey), Verbose: c.VerboseLogs}
}

func (c SettingsConfig) ElevenLabsConfig() elevenlabs.ElevenLabsTTSConfig {
	return elevenlabs.ElevenLabsTTSConfig{
		APIKey:          strings.TrimSpace(c.ElevenLabsAPIKey),
		VoiceID:         c.ElevenLabsVoiceID,
		ModelID:         c.SpeechModelID,
		OutputFormat:    c.SpeechOutputFormat,
		Stability:       c.Stability,
		SimilarityBoost: c.SimilarityBoost,
	}
}

// BuildRemoteTTS returns nil when no speech key is configured.
func BuildRemoteTTS(config SettingsConfig, logger *core.Logger) ttshandler.RemoteService {
	if strings.TrimSpace(config.ElevenLabsAPIKey) == "" {
		return nil
	}
	return elevenlabs.NewElevenLabsTTS(config.ElevenLabsConfig(), logger)
}

func BuildLocalTTS(config SettingsConfig, logger *core.Logger) *localtts.CommandTTS {
	return localtts.NewCommandTTS(localtts.LocalTTSConfig{
		Voice: config.LocalVoice,
		Rate:  config.LocalRate,
	}, logger)
}

func BuildPlayer(config SettingsConfig, logger *core.Logger) *audio.CommandPlayer {
	return audio.NewCommandPlayer(config.AudioPlayer, logger)
}
