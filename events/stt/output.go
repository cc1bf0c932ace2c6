package stt

type STTListeningStartedEvent struct{}

func (e *STTListeningStartedEvent) GetId() string {
	return "stt.listening_started"
}

type STTListeningStoppedEvent struct {
	Windows int `json:"windows"` // number of capture windows recorded
}

func (e *STTListeningStoppedEvent) GetId() string {
	return "stt.listening_stopped"
}

type STTFinalOutputEvent struct {
	Text string `json:"text"`
}

func (e *STTFinalOutputEvent) GetId() string {
	return "stt.final_output"
}

type STTRecognitionFailedEvent struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

func (e *STTRecognitionFailedEvent) GetId() string {
	return "stt.recognition_failed"
}
