package core

import (
	"time"

	"github.com/google/uuid"
)

type EventPacket struct {
	Event   IEvent
	Uid     string    // Unique identifier for tracking the event packet.
	Relayer string    // Identifier of the handler that emitted the event.
	TurnID  string    // Turn the event belongs to, empty for session level events.
	At      time.Time // Emission time.
}

func NewEventPacket(event IEvent, relayer string, turnID string) *EventPacket {
	return &EventPacket{
		Event:   event,
		Uid:     uuid.New().String(),
		Relayer: relayer,
		TurnID:  turnID,
		At:      time.Now(),
	}
}
