package llm

type LLMHandlerConfig struct {
	Model string `json:"model"` // Model id sent with every request; empty uses the service default.
}
