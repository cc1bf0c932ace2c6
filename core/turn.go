package core

import "strings"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Label is the prefix a role carries in a transcript file.
func (r Role) Label() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "AI"
	default:
		return string(r)
	}
}

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one utterance in a transcript. Turns are values and never change after being appended.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// NewTurn trims text; ok is false when nothing is left.
func NewTurn(role Role, text string) (Turn, bool) {
	text = strings.TrimSpace(text)
	return Turn{Role: role, Text: text}, text != ""
}

// TurnState tracks one submission from the user message to the reply.
type TurnState int

const (
	TurnIdle TurnState = iota
	TurnAwaitingReply
	TurnStreaming
	TurnComplete
	TurnCancelled
	TurnFailed
)

func (s TurnState) String() string {
	switch s {
	case TurnIdle:
		return "idle"
	case TurnAwaitingReply:
		return "awaiting_reply"
	case TurnStreaming:
		return "streaming"
	case TurnComplete:
		return "complete"
	case TurnCancelled:
		return "cancelled"
	case TurnFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends a turn.
func (s TurnState) Terminal() bool {
	return s == TurnComplete || s == TurnCancelled || s == TurnFailed
}
