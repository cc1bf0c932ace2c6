package session

import "sita/core"

type SessionStartedEvent struct {
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
}

func (e *SessionStartedEvent) GetId() string {
	return "session.started"
}

// SessionResumedEvent carries every parsed turn; surfaces replace their view with it.
type SessionResumedEvent struct {
	SessionID string      `json:"session_id"`
	Path      string      `json:"path"`
	Turns     []core.Turn `json:"turns"`
}

func (e *SessionResumedEvent) GetId() string {
	return "session.resumed"
}

type TurnAppendedEvent struct {
	Turn core.Turn `json:"turn"`
}

func (e *TurnAppendedEvent) GetId() string {
	return "session.turn_appended"
}

type TurnStateChangedEvent struct {
	State string `json:"state"`
}

func (e *TurnStateChangedEvent) GetId() string {
	return "session.turn_state"
}

type ExportedEvent struct {
	Path string `json:"path"`
}

func (e *ExportedEvent) GetId() string {
	return "session.exported"
}
