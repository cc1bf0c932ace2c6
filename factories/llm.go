package factories

import (
	"sita/core"
	contexthandler "sita/handlers/context"
	openaillm "sita/services/openai/llm"
)

// CompletionConfig maps the settings onto the completion client config.
func (c SettingsConfig) CompletionConfig() openaillm.Config {
	return openaillm.Config{
		APIKey:      c.APIKey,
		BaseURL:     c.APIBase,
		Model:       c.ModelName,
		Temperature: c.Temperature,
	}
}

// ContextConfig maps the settings onto prompt assembly. An empty system prompt uses the default.
func (c SettingsConfig) ContextConfig() contexthandler.ContextConfig {
	cfg := contexthandler.DefaultContextConfig()
	if c.SystemPrompt != "" {
		cfg.SystemPrompt = c.SystemPrompt
	}
	return cfg
}

// BuildLLMService constructs the OpenAI-compatible completion client. Any server speaking the
// chat completions protocol works (OpenAI, LM Studio, llama.cpp, Groq, ...).
func BuildLLMService(config SettingsConfig, logger *core.Logger) *openaillm.OpenAILLMService {
	return openaillm.NewOpenAILLMService(config.CompletionConfig(), logger)
}
