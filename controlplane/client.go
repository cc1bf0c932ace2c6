package controlplane

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"sita/core"
	"sita/factories"
	"sita/protocol"
	"sita/transcript"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const (
	defaultHeartbeatInterval = 5 * time.Second
	defaultSendBufferSize    = 256
	writeTimeout             = 10 * time.Second
)

// Controller is the command surface the client drives. *runner.Runner satisfies it.
type Controller interface {
	Submit(text string) error
	Cancel()
	StartVoice() error
	StopVoice()
	VoiceActive() bool
	ListSessions() ([]transcript.SessionRef, error)
	ResumeSession(name string) ([]core.Turn, error)
	StartNewSession() (transcript.SessionRef, error)
	Export(path string) error
	Import(path string) ([]core.Turn, error)
	UpdateSettings(fn func(*factories.SettingsConfig) error) (factories.SettingsConfig, error)
	State() core.TurnState
	Current() (string, string, []core.Turn)
}

// ClientConfig configures the control plane WebSocket client.
type ClientConfig struct {
	ConnectURL        string
	AgentID           string
	Version           string
	Metadata          map[string]string
	HeartbeatInterval time.Duration
	Logger            *core.Logger
}

// Client connects outward to a remote UI. It forwards runner events and log lines, and turns
// incoming messages into runner commands, answering each with an ack.
type Client struct {
	config     ClientConfig
	controller Controller
	conn       *websocket.Conn
	ctx        context.Context
	cancel     context.CancelFunc
	logger     *core.Logger

	// OnShutdown is called when the UI asks the agent to exit.
	OnShutdown func(reason string)

	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
}

// NewClient creates a new control plane client.
func NewClient(cfg ClientConfig, controller Controller) *Client {
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = core.GetLogger()
	}
	return &Client{
		config:     cfg,
		controller: controller,
		logger:     cfg.Logger.With(map[string]interface{}{"component": "controlplane"}),
		sendCh:     make(chan []byte, defaultSendBufferSize),
		done:       make(chan struct{}),
	}
}

// Bind attaches the controller commands are dispatched to. Call it before Connect when the
// controller's logger itself writes through this client.
func (c *Client) Bind(controller Controller) {
	c.controller = controller
}

// Connect dials the UI server WebSocket endpoint, sends the registration
// message, and starts the read/write/heartbeat loops. The provided context
// controls the client's lifetime.
func (c *Client) Connect(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.logger.Info("connecting to control plane", "url", c.config.ConnectURL)

	conn, _, err := websocket.DefaultDialer.DialContext(c.ctx, c.config.ConnectURL, nil)
	if err != nil {
		c.cancel()
		return fmt.Errorf("controlplane: dial %q: %w", c.config.ConnectURL, err)
	}
	c.conn = conn

	reg := protocol.RegisterPayload{
		AgentID:      c.config.AgentID,
		Version:      c.config.Version,
		Capabilities: []string{"chat", "voice", "sessions", "config"},
		Metadata:     c.config.Metadata,
		Timestamp:    time.Now().UTC(),
	}
	if err := c.send(protocol.MsgRegister, reg); err != nil {
		conn.Close()
		c.cancel()
		return fmt.Errorf("controlplane: send register: %w", err)
	}

	c.logger.Info("registered with control plane", "agent_id", c.config.AgentID)

	go c.readLoop()
	go c.writeLoop()
	go c.heartbeatLoop()

	return nil
}

// Forward relays events until the channel closes or the client stops.
func (c *Client) Forward(events <-chan *core.EventPacket) {
	for {
		select {
		case packet, ok := <-events:
			if !ok {
				return
			}
			c.SendEvent(packet)
		case <-c.done:
			return
		}
	}
}

// SendEvent encodes one runner event.
func (c *Client) SendEvent(packet *core.EventPacket) {
	data, err := sonic.Marshal(packet.Event)
	if err != nil {
		c.logger.Warn("failed to encode event, dropping", "event", packet.Event.GetId(), "error", err)
		return
	}
	sessionID := ""
	if c.controller != nil {
		sessionID, _, _ = c.controller.Current()
	}
	c.enqueue(protocol.MsgEvent, protocol.EventPayload{
		AgentID:   c.config.AgentID,
		SessionID: sessionID,
		TurnID:    packet.TurnID,
		EventID:   packet.Event.GetId(),
		Data:      data,
	})
}

// SendLog sends a log entry for a session to the UI.
func (c *Client) SendLog(sessionID string, entry protocol.LogEntry) {
	c.enqueue(protocol.MsgLog, protocol.LogPayload{
		AgentID:   c.config.AgentID,
		SessionID: sessionID,
		Entry:     entry,
	})
}

// SendLogEnd signals that a session's log stream has ended.
func (c *Client) SendLogEnd(sessionID string) {
	c.enqueue(protocol.MsgLogEnd, protocol.LogEndPayload{
		AgentID:   c.config.AgentID,
		SessionID: sessionID,
	})
}

// Done is closed when the connection drops or the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the connection drops or the context is cancelled.
func (c *Client) Wait() error {
	<-c.done
	return nil
}

// Close shuts down the client.
func (c *Client) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *Client) send(msgType protocol.MessageType, payload interface{}) error {
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) enqueue(msgType protocol.MessageType, payload interface{}) {
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		c.logger.Warn("failed to marshal message, dropping", "type", string(msgType), "error", err)
		return
	}
	select {
	case c.sendCh <- data:
	default:
		// buffer full: drop the oldest message
		select {
		case <-c.sendCh:
		default:
		}
		select {
		case c.sendCh <- data:
		default:
		}
	}
}

func (c *Client) readLoop() {
	defer func() {
		c.once.Do(func() { close(c.done) })
		c.cancel()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("control plane connection lost", "error", err)
			}
			return
		}

		msgType, payload, err := protocol.Unmarshal(data)
		if err != nil {
			c.logger.Warn("invalid message from control plane", "error", err)
			continue
		}

		if msgType == protocol.MsgShutdown {
			p, _ := protocol.UnmarshalPayload[protocol.ShutdownPayload](payload)
			reason := p.Reason
			if reason == "" {
				reason = "shutdown requested by control plane"
			}
			c.logger.Info("shutdown requested", "reason", reason)
			c.ack(msgType, nil)
			if c.OnShutdown != nil {
				c.OnShutdown(reason)
			}
			return
		}

		c.ack(msgType, c.dispatch(msgType, payload))
	}
}

// dispatch runs one UI command against the controller.
func (c *Client) dispatch(msgType protocol.MessageType, payload []byte) error {
	if c.controller == nil {
		return errors.New("no controller attached")
	}

	switch msgType {
	case protocol.MsgSendMessage:
		p, err := protocol.UnmarshalPayload[protocol.SendMessagePayload](payload)
		if err != nil {
			return err
		}
		return c.controller.Submit(p.Text)

	case protocol.MsgCancel:
		c.controller.Cancel()
		return nil

	case protocol.MsgVoiceStart:
		return c.controller.StartVoice()

	case protocol.MsgVoiceStop:
		c.controller.StopVoice()
		return nil

	case protocol.MsgListSessions:
		return c.sendSessionList()

	case protocol.MsgResumeSession:
		p, err := protocol.UnmarshalPayload[protocol.ResumeSessionPayload](payload)
		if err != nil {
			return err
		}
		_, err = c.controller.ResumeSession(p.Name)
		return err

	case protocol.MsgNewSession:
		_, err := c.controller.StartNewSession()
		return err

	case protocol.MsgExport, protocol.MsgImport:
		p, err := protocol.UnmarshalPayload[protocol.PathPayload](payload)
		if err != nil {
			return err
		}
		if p.Path == "" {
			return errors.New("path is required")
		}
		if msgType == protocol.MsgExport {
			return c.controller.Export(p.Path)
		}
		_, err = c.controller.Import(p.Path)
		return err

	case protocol.MsgConfigUpdate:
		p, err := protocol.UnmarshalPayload[protocol.ConfigUpdatePayload](payload)
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(p.Values))
		for k := range p.Values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		_, err = c.controller.UpdateSettings(func(cfg *factories.SettingsConfig) error {
			for _, k := range keys {
				if err := cfg.Set(k, p.Values[k]); err != nil {
					return err
				}
			}
			return nil
		})
		return err

	default:
		c.logger.Warn("unknown message type from control plane", "type", string(msgType))
		return fmt.Errorf("unknown message type %q", msgType)
	}
}

func (c *Client) sendSessionList() error {
	refs, err := c.controller.ListSessions()
	if err != nil {
		return err
	}
	current, _, _ := c.controller.Current()
	list := protocol.SessionListPayload{Sessions: make([]protocol.SessionInfo, 0, len(refs))}
	for _, ref := range refs {
		list.Sessions = append(list.Sessions, protocol.SessionInfo{
			Name:      ref.Name,
			SessionID: ref.SessionID,
			CreatedAt: ref.CreatedAt.Format(time.RFC3339),
			Active:    ref.SessionID == current,
		})
	}
	c.enqueue(protocol.MsgSessionList, list)
	return nil
}

func (c *Client) ack(msgType protocol.MessageType, err error) {
	ack := protocol.AckPayload{AckedType: msgType, OK: err == nil}
	if err != nil {
		ack.Error = err.Error()
		c.logger.Debug("command rejected", "type", string(msgType), "error", err)
	}
	c.enqueue(protocol.MsgAck, ack)
}

func (c *Client) writeLoop() {
	for {
		select {
		case data := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn("write to control plane failed", "error", err)
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			hb := protocol.HeartbeatPayload{
				AgentID:   c.config.AgentID,
				Timestamp: time.Now().UTC(),
				TurnState: core.TurnIdle.String(),
			}
			if c.controller != nil {
				hb.SessionID, _, _ = c.controller.Current()
				hb.TurnState = c.controller.State().String()
				hb.Listening = c.controller.VoiceActive()
			}
			c.enqueue(protocol.MsgHeartbeat, hb)
		case <-c.ctx.Done():
			return
		}
	}
}
