package llm

import (
	"context"
	"errors"

	"sita/core"
	"sita/events/llm"
)

type LLMService interface {
	core.IService
	Stream(
		ctx context.Context,
		prompt []core.LLMMessage,
		model string,
		token *core.CancellationToken,
	) (core.ReplyStream, error)
}

// TurnResult is the outcome of one reply.
type TurnResult struct {
	State core.TurnState // TurnComplete, TurnCancelled or TurnFailed
	Reply string         // full reply, the partial reply when cancelled or failed mid-stream
	Err   error
}

// LLMHandler drives a single reply: it opens the stream, relays each delta as an event and
// reports how the turn ended.
type LLMHandler struct {
	*core.BaseHandler
	service LLMService
	config  LLMHandlerConfig
	logger  *core.Logger
}

func NewLLMHandler(base *core.BaseHandler, service LLMService, config LLMHandlerConfig, logger *core.Logger) *LLMHandler {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &LLMHandler{
		BaseHandler: base,
		service:     service,
		config:      config,
		logger:      logger.With(map[string]interface{}{"component": "llm_handler"}),
	}
}

// RunTurn blocks until the reply ends. setState is told when the first byte of the reply
// stream is available; it may be nil.
func (h *LLMHandler) RunTurn(
	ctx context.Context,
	turnID string,
	prompt []core.LLMMessage,
	token *core.CancellationToken,
	setState func(core.TurnState),
) TurnResult {
	if setState == nil {
		setState = func(core.TurnState) {}
	}

	stream, err := h.service.Stream(ctx, prompt, h.config.Model, token)
	if err != nil {
		h.logger.Error("completion failed to start", "turn", turnID, "error", err)
		h.Emit(failedEvent(err), turnID)
		return TurnResult{State: core.TurnFailed, Err: err}
	}

	setState(core.TurnStreaming)
	h.Emit(&llm.LLMResponseStartedEvent{Model: h.config.Model}, turnID)

	reply, cancelled, err := core.AccumulateReply(stream, func(delta string) {
		h.Emit(&llm.LLMResponseChunkEvent{Chunk: delta}, turnID)
	})

	switch {
	case err != nil:
		h.logger.Error("completion failed mid-stream", "turn", turnID, "received", len(reply), "error", err)
		h.Emit(failedEvent(err), turnID)
		return TurnResult{State: core.TurnFailed, Reply: reply, Err: err}
	case cancelled:
		h.logger.Debug("completion cancelled", "turn", turnID, "received", len(reply))
		h.Emit(&llm.LLMResponseCancelledEvent{PartialText: reply}, turnID)
		return TurnResult{State: core.TurnCancelled, Reply: reply}
	default:
		h.Emit(&llm.LLMResponseCompletedEvent{FullText: reply}, turnID)
		return TurnResult{State: core.TurnComplete, Reply: reply}
	}
}

func failedEvent(err error) *llm.LLMResponseFailedEvent {
	ev := &llm.LLMResponseFailedEvent{Error: core.StatusLine(err)}
	var pe *core.ProviderError
	if errors.As(err, &pe) {
		ev.Status = pe.Status
	}
	return ev
}
