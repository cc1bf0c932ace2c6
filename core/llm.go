package core

import (
	"errors"
	"io"
	"strings"
)

type LLMMessageRole string

const (
	LLMMessageRoleUser      LLMMessageRole = "user"
	LLMMessageRoleAssistant LLMMessageRole = "assistant"
	LLMMessageRoleSystem    LLMMessageRole = "system"
)

// LLMMessage represents a message exchanged with the completion provider.
type LLMMessage struct {
	Role    LLMMessageRole `json:"role"`
	Message string         `json:"message"`
}

// LLMRoleFor maps a transcript role onto the provider's role names.
func LLMRoleFor(role Role) LLMMessageRole {
	if role == RoleAssistant {
		return LLMMessageRoleAssistant
	}
	return LLMMessageRoleUser
}

// LLMContext is an ordered prompt.
type LLMContext struct {
	Messages []LLMMessage
}

func (c *LLMContext) AddSystemMessage(text string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleSystem, Message: text})
}

func (c *LLMContext) AddUserMessage(text string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleUser, Message: text})
}

func (c *LLMContext) AddAssistantMessage(text string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleAssistant, Message: text})
}

func (c *LLMContext) AddTurn(turn Turn) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMRoleFor(turn.Role), Message: turn.Text})
}

// ReplyStream yields reply deltas in arrival order. Recv returns io.EOF at the end of the
// reply, including when the reply was cut short by a cancellation token.
type ReplyStream interface {
	Recv() (string, error)
	Cancelled() bool
	Close()
}

// AccumulateReply drains stream, calling onDelta for each piece, and returns the joined reply.
// An empty reply is not an error.
func AccumulateReply(stream ReplyStream, onDelta func(string)) (reply string, cancelled bool, err error) {
	defer stream.Close()

	var b strings.Builder
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), stream.Cancelled(), nil
		}
		if err != nil {
			return b.String(), false, err
		}
		b.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
}
