package context

import (
	"strings"

	"sita/core"
)

// TurnSource is anything that can hand out the tail of a transcript.
type TurnSource interface {
	ContextWindow(maxTurns int) []core.Turn
}

// BuildPrompt assembles the request for one reply: the system instruction, the most recent
// window of the transcript, then the new utterance. It reads source once and has no other
// inputs, so identical transcripts give identical prompts.
func BuildPrompt(systemInstruction string, source TurnSource, utterance string) []core.LLMMessage {
	return BuildPromptWindow(systemInstruction, source, DEFAULT_WINDOW_SIZE, utterance)
}

// BuildPromptWindow is BuildPrompt with an explicit window size.
func BuildPromptWindow(systemInstruction string, source TurnSource, windowSize int, utterance string) []core.LLMMessage {
	var window []core.Turn
	if source != nil {
		window = source.ContextWindow(windowSize)
	}

	ctx := core.LLMContext{Messages: make([]core.LLMMessage, 0, len(window)+2)}
	ctx.AddSystemMessage(systemInstruction)
	for _, turn := range window {
		ctx.AddTurn(turn)
	}
	ctx.AddUserMessage(strings.TrimSpace(utterance))
	return ctx.Messages
}

// Assembler binds a ContextConfig so callers only pass the transcript and utterance.
type Assembler struct {
	config ContextConfig
}

func NewAssembler(config ContextConfig) *Assembler {
	if config.SystemPrompt == "" {
		config.SystemPrompt = DEFAULT_SYSTEM_PROMPT
	}
	if config.WindowSize <= 0 {
		config.WindowSize = DEFAULT_WINDOW_SIZE
	}
	return &Assembler{config: config}
}

func (a *Assembler) Build(source TurnSource, utterance string) []core.LLMMessage {
	return BuildPromptWindow(a.config.SystemPrompt, source, a.config.WindowSize, utterance)
}
