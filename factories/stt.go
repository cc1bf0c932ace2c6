package factories

import (
	"sita/core"
	stthandler "sita/handlers/stt"
	deepgramstt "sita/services/deepgram/stt"
	"sita/utils/audio"
)

func (c SettingsConfig) DeepgramConfig() *deepgramstt.DeepgramConfig {
	cfg := deepgramstt.DefaultConfig()
	cfg.APIKey = c.DeepgramAPIKey
	return cfg
}

// BuildRecognizer returns nil when no recognition key is configured.
func BuildRecognizer(config SettingsConfig, logger *core.Logger) stthandler.Recognizer {
	if config.DeepgramAPIKey == "" {
		return nil
	}
	return deepgramstt.NewDeepgramSTTService(config.DeepgramConfig(), logger)
}

func BuildRecorder(config SettingsConfig) *audio.CommandRecorder {
	return audio.NewCommandRecorder(config.RecorderCommand, stthandler.DefaultConfig().SampleRate)
}
