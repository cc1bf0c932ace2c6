package core

import "context"

type IService interface {
	Init(
		ctx context.Context,
	) error
	Cleanup() error
	Reset() error
}

// BaseHandler gives a worker a way to publish events without touching surface state.
type BaseHandler struct {
	Name       string
	Ctx        context.Context
	outputChan chan<- *EventPacket
}

func NewBaseHandler(ctx context.Context, name string, outputChan chan<- *EventPacket) *BaseHandler {
	return &BaseHandler{
		Name:       name,
		Ctx:        ctx,
		outputChan: outputChan,
	}
}

// SendPacket blocks until the packet is taken or the handler context ends.
func (h *BaseHandler) SendPacket(packet *EventPacket) {
	if h == nil || h.outputChan == nil {
		return
	}
	select {
	case h.outputChan <- packet:
	case <-h.Ctx.Done():
	}
}

func (h *BaseHandler) Emit(event IEvent, turnID string) {
	if h == nil {
		return
	}
	h.SendPacket(NewEventPacket(event, h.Name, turnID))
}

// HandleError reports err as a status line.
func (h *BaseHandler) HandleError(err error, turnID string) {
	h.Emit(&StatusEvent{Line: StatusLine(err)}, turnID)
}
