package factories

import (
	"sita/core"
	llmhandler "sita/handlers/llm"
	stthandler "sita/handlers/stt"
	ttshandler "sita/handlers/tts"
	"sita/utils/audio"
)

// SessionComponents holds every provider a runner needs. RemoteTTS and Recognizer are nil
// when their API key is not configured.
type SessionComponents struct {
	LLM        llmhandler.LLMService
	RemoteTTS  ttshandler.RemoteService
	LocalTTS   ttshandler.LocalService
	Player     audio.Player
	Recorder   audio.Recorder
	Recognizer stthandler.Recognizer
}

// BuildSessionComponents constructs the providers described by config. Nothing here makes a
// network request, so it is cheap to call again after the settings change.
func BuildSessionComponents(config SettingsConfig, logger *core.Logger) SessionComponents {
	if logger == nil {
		logger = core.GetLogger()
	}
	return SessionComponents{
		LLM:        BuildLLMService(config, logger),
		RemoteTTS:  BuildRemoteTTS(config, logger),
		LocalTTS:   BuildLocalTTS(config, logger),
		Player:     BuildPlayer(config, logger),
		Recorder:   BuildRecorder(config),
		Recognizer: BuildRecognizer(config, logger),
	}
}
