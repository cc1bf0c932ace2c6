package protocol

import (
	"encoding/json"
	"time"
)

// MessageType enumerates all control-plane message types.
type MessageType string

const (
	// Agent -> UI
	MsgRegister    MessageType = "register"
	MsgHeartbeat   MessageType = "heartbeat"
	MsgLog         MessageType = "log"
	MsgEvent       MessageType = "event"
	MsgLogEnd      MessageType = "log_end"
	MsgSessionList MessageType = "session_list"
	MsgAck         MessageType = "ack"

	// UI -> Agent
	MsgSendMessage   MessageType = "send_message"
	MsgCancel        MessageType = "cancel"
	MsgVoiceStart    MessageType = "voice_start"
	MsgVoiceStop     MessageType = "voice_stop"
	MsgListSessions  MessageType = "list_sessions"
	MsgResumeSession MessageType = "resume_session"
	MsgNewSession    MessageType = "new_session"
	MsgExport        MessageType = "export"
	MsgImport        MessageType = "import"
	MsgConfigUpdate  MessageType = "config_update"
	MsgShutdown      MessageType = "shutdown"
)

// Envelope is the outer JSON wrapper for all WebSocket messages.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- Agent -> UI payloads ---

// RegisterPayload is sent once by the agent immediately after connecting.
type RegisterPayload struct {
	AgentID      string            `json:"agent_id"`
	Version      string            `json:"version,omitempty"`
	Capabilities []string          `json:"capabilities,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

// HeartbeatPayload is sent periodically to keep the connection alive.
type HeartbeatPayload struct {
	AgentID   string    `json:"agent_id"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id,omitempty"`
	TurnState string    `json:"turn_state"` // "idle", "awaiting_reply", "streaming", ...
	Listening bool      `json:"listening"`
}

// LogPayload carries a single log entry from a session.
type LogPayload struct {
	AgentID   string   `json:"agent_id"`
	SessionID string   `json:"session_id"`
	Entry     LogEntry `json:"entry"`
}

// LogEntry is a structured log line.
type LogEntry struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Message   string                 `json:"msg"`
	Attrs     map[string]interface{} `json:"attrs,omitempty"`
}

// EventPayload carries one runner event for external consumers.
type EventPayload struct {
	AgentID   string          `json:"agent_id"`
	SessionID string          `json:"session_id,omitempty"`
	TurnID    string          `json:"turn_id,omitempty"`
	EventID   string          `json:"event_id"`
	Data      json.RawMessage `json:"data"`
}

// LogEndPayload signals that a session's log stream has ended.
type LogEndPayload struct {
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id"`
}

// SessionListPayload answers list_sessions, most recent first.
type SessionListPayload struct {
	Sessions []SessionInfo `json:"sessions"`
}

// SessionInfo describes one transcript in the catalog.
type SessionInfo struct {
	Name      string `json:"name"`
	SessionID string `json:"session_id"`
	CreatedAt string `json:"created_at"`
	Active    bool   `json:"active"`
}

// AckPayload acknowledges a received command.
type AckPayload struct {
	AckedType MessageType `json:"acked_type"`
	OK        bool        `json:"ok"`
	Error     string      `json:"error,omitempty"`
}

// --- UI -> Agent payloads ---

type SendMessagePayload struct {
	Text string `json:"text"`
}

type ResumeSessionPayload struct {
	Name string `json:"name"`
}

// PathPayload is used by export and import.
type PathPayload struct {
	Path string `json:"path"`
}

// ConfigUpdatePayload sets settings by their config file key, then saves.
type ConfigUpdatePayload struct {
	Values map[string]string `json:"values"`
}

// ShutdownPayload requests the agent to shut down gracefully.
type ShutdownPayload struct {
	Reason string `json:"reason,omitempty"`
}
