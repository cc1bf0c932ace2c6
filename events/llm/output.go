package llm

type LLMResponseStartedEvent struct {
	Model string `json:"model"`
}

func (e *LLMResponseStartedEvent) GetId() string {
	return "llm.response_started"
}

type LLMResponseChunkEvent struct {
	Chunk string `json:"chunk"` // A delta of the reply text, in arrival order.
}

func (e *LLMResponseChunkEvent) GetId() string {
	return "llm.response_chunk"
}

type LLMResponseCompletedEvent struct {
	FullText string `json:"full_text"`
}

func (e *LLMResponseCompletedEvent) GetId() string {
	return "llm.response_completed"
}

// LLMResponseCancelledEvent ends a turn stopped by the user. PartialText holds whatever arrived first.
type LLMResponseCancelledEvent struct {
	PartialText string `json:"partial_text"`
}

func (e *LLMResponseCancelledEvent) GetId() string {
	return "llm.response_cancelled"
}

type LLMResponseFailedEvent struct {
	Error  string `json:"error"`
	Status int    `json:"status,omitempty"`
}

func (e *LLMResponseFailedEvent) GetId() string {
	return "llm.response_failed"
}
