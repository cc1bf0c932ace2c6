package context

// ContextConfig holds configuration for prompt assembly.
type ContextConfig struct {
	SystemPrompt string `json:"system_prompt"` // Instruction placed before the transcript window.
	WindowSize   int    `json:"window_size"`   // Number of prior turns included, at most.
}

// DefaultContextConfig returns a ContextConfig with sensible defaults
func DefaultContextConfig() ContextConfig {
	return ContextConfig{
		SystemPrompt: DEFAULT_SYSTEM_PROMPT,
		WindowSize:   DEFAULT_WINDOW_SIZE,
	}
}
