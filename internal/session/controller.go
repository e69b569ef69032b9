// Package session implements the protocol state machine for one duplex
// conversation with the remote agent: connection lifecycle, handshake,
// message dispatch, keepalive, and conversation-mode negotiation.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wicara-ai/wicara/domain/entities"
	"github.com/wicara-ai/wicara/domain/repositories"
	"github.com/wicara-ai/wicara/internal/config"
	"github.com/wicara-ai/wicara/internal/transport"
)

// Callbacks deliver session events to the orchestrator. Errors are always
// surfaced here, never thrown across the callback boundary. Nil callbacks
// are skipped.
type Callbacks struct {
	// OnMessage delivers one agent text turn (including corrections).
	OnMessage func(text string)

	// OnAudio delivers one decoded inbound PCM chunk.
	OnAudio func(pcm []byte)

	// OnUserTranscript delivers speech-to-text of the caller's own voice.
	OnUserTranscript func(text string)

	// OnConnectionStateChange reports every lifecycle transition.
	OnConnectionStateChange func(state entities.ConnectionState)

	// OnError reports connection-level failures.
	OnError func(err error)
}

// transportLink is the slice of transport.Link the controller uses,
// narrowed so tests can substitute a send-spy.
type transportLink interface {
	Send(payload []byte) error
	Run(onFrame func(frame []byte), onClose func(code int, reason string))
	Close() error
}

type dialFunc func(ctx context.Context, url string, logger *zap.Logger) (transportLink, error)

// Controller owns one transport link and interprets every wire message
// type. It does not reconnect on its own; retry policy belongs to the
// caller.
type Controller struct {
	broker repositories.ConnectionBroker
	logger *zap.Logger

	keepaliveWindow time.Duration
	pingInterval    time.Duration

	dial dialFunc

	mu            sync.Mutex
	session       *entities.Session
	link          transportLink
	callbacks     Callbacks
	keepaliveStop chan struct{}
}

// NewController creates a controller in the disconnected state.
func NewController(broker repositories.ConnectionBroker, cfg config.Client, logger *zap.Logger) *Controller {
	return &Controller{
		broker:          broker,
		logger:          logger,
		keepaliveWindow: cfg.KeepaliveWindow,
		pingInterval:    cfg.PingInterval,
		session:         entities.NewSession(),
		dial: func(ctx context.Context, url string, logger *zap.Logger) (transportLink, error) {
			return transport.Dial(ctx, url, logger)
		},
	}
}

// Connect obtains a one-time connection URL from the broker, opens the
// transport, and sends the session-initiation handshake. The handshake is
// always the first frame on the wire; sends are rejected (text) or dropped
// (audio) until the remote confirms it.
func (c *Controller) Connect(ctx context.Context, agentID string, cb Callbacks) error {
	c.mu.Lock()
	if c.session.State != entities.ConnectionStateDisconnected {
		state := c.session.State
		c.mu.Unlock()
		return fmt.Errorf("cannot connect while %s", state)
	}
	c.session.State = entities.ConnectionStateConnecting
	c.callbacks = cb
	c.mu.Unlock()

	c.emitState(entities.ConnectionStateConnecting)

	url, err := c.broker.GetConnectionTarget(ctx, agentID)
	if err != nil {
		err = fmt.Errorf("failed to get connection URL: %w", err)
		c.failConnect(err)
		return err
	}

	link, err := c.dial(ctx, url, c.logger)
	if err != nil {
		err = fmt.Errorf("failed to open transport: %w", err)
		c.failConnect(err)
		return err
	}

	c.mu.Lock()
	if c.session.State != entities.ConnectionStateConnecting {
		// Disconnected while dialing; the fresh link has no owner.
		c.mu.Unlock()
		link.Close()
		return fmt.Errorf("connect aborted: disconnected while dialing")
	}
	c.link = link
	c.session.State = entities.ConnectionStateConnected
	c.session.LastKeepaliveAt = time.Now()
	stop := make(chan struct{})
	c.keepaliveStop = stop
	c.mu.Unlock()

	c.emitState(entities.ConnectionStateConnected)

	go link.Run(
		func(frame []byte) { c.dispatch(link, frame) },
		func(code int, reason string) { c.handleClose(link, code, reason) },
	)
	go c.keepalive(link, stop)

	if err := c.sendJSON(link, NewInitiationMessage()); err != nil {
		err = fmt.Errorf("failed to send handshake: %w", err)
		c.emitError(err)
		c.Disconnect()
		return err
	}

	c.logger.Info("Session connected", zap.String("agentID", agentID))
	return nil
}

// SendTextMessage sends one text turn. The session must be initiated and
// not committed to audio mode; the first text send makes the mode sticky.
func (c *Controller) SendTextMessage(text string) error {
	c.mu.Lock()
	link := c.link
	if link == nil || c.session.State != entities.ConnectionStateConnected {
		c.mu.Unlock()
		return entities.ErrNotConnected
	}
	if !c.session.Initiated {
		c.mu.Unlock()
		return entities.ErrNotInitiated
	}
	if c.session.Mode == entities.ConversationModeAudio {
		c.mu.Unlock()
		return entities.ErrModeConflict
	}
	c.session.Mode = entities.ConversationModeText
	c.mu.Unlock()

	msg := UserMessage{Type: MessageTypeUserMessage, Text: text}
	if err := c.sendJSON(link, msg); err != nil {
		return fmt.Errorf("%w: %v", entities.ErrConnectionLost, err)
	}
	return nil
}

// SendAudioChunk base64-encodes one PCM chunk and sends it in the bare
// envelope the remote requires. Chunks captured before the handshake
// completes are dropped silently: audio with no destination is not queued.
func (c *Controller) SendAudioChunk(pcm []byte) error {
	c.mu.Lock()
	link := c.link
	if link == nil || c.session.State != entities.ConnectionStateConnected || !c.session.Initiated {
		c.mu.Unlock()
		return nil
	}
	if c.session.Mode == entities.ConversationModeText {
		c.mu.Unlock()
		return entities.ErrModeConflict
	}
	c.session.Mode = entities.ConversationModeAudio
	c.mu.Unlock()

	chunk := UserAudioChunk{UserAudioChunk: base64.StdEncoding.EncodeToString(pcm)}
	if err := c.sendJSON(link, chunk); err != nil {
		return fmt.Errorf("%w: %v", entities.ErrConnectionLost, err)
	}
	return nil
}

// Disconnect closes the transport, stops the keepalive monitor, and resets
// all session state. Idempotent and safe in any state, including while a
// Connect is still dialing.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	link := c.link
	c.link = nil
	if c.keepaliveStop != nil {
		close(c.keepaliveStop)
		c.keepaliveStop = nil
	}
	wasActive := c.session.State != entities.ConnectionStateDisconnected
	c.session.Reset()
	c.mu.Unlock()

	if link != nil {
		link.Close()
	}
	if wasActive {
		c.emitState(entities.ConnectionStateDisconnected)
		c.logger.Info("Session disconnected")
	}
}

// IsConnected reports whether the transport is open.
func (c *Controller) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State == entities.ConnectionStateConnected
}

// State returns the current connection state.
func (c *Controller) State() entities.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State
}

// ConversationID returns the identifier assigned by the remote, or "" before
// the handshake completes.
func (c *Controller) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ConversationID
}

// Mode returns the sticky conversation mode for this connection.
func (c *Controller) Mode() entities.ConversationMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Mode
}

// dispatch routes one inbound frame by its type discriminator. A corrupt
// frame or chunk is logged and swallowed; it never terminates the session.
func (c *Controller) dispatch(link transportLink, frame []byte) {
	env, err := ParseEnvelope(frame)
	if err != nil {
		c.logger.Warn("Failed to parse inbound frame", zap.Error(err))
		return
	}

	switch env.Type {
	case MessageTypeInitiationMetadata:
		if env.ConversationInitiationEvent == nil {
			return
		}
		c.mu.Lock()
		c.session.ConversationID = env.ConversationInitiationEvent.ConversationID
		c.session.Initiated = true
		c.mu.Unlock()
		c.logger.Info("Conversation initiated",
			zap.String("conversationID", env.ConversationInitiationEvent.ConversationID))

	case MessageTypeAgentResponse:
		if env.AgentResponseEvent == nil {
			return
		}
		if text := env.AgentResponseEvent.Text(); text != "" {
			c.emitMessage(text)
		}

	case MessageTypeLLMResponse:
		if env.LLMResponseEvent == nil {
			return
		}
		if text := env.LLMResponseEvent.Response; text != "" {
			c.emitMessage(text)
		}

	case MessageTypeAudio:
		if env.AudioEvent == nil {
			return
		}
		payload := env.AudioEvent.Payload()
		if payload == "" {
			return
		}
		pcm, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			c.logger.Warn("Dropping undecodable audio chunk", zap.Error(err))
			return
		}
		c.emitAudio(pcm)

	case MessageTypePing:
		c.touchKeepalive()
		eventID := "unknown"
		if env.PingEvent != nil && env.PingEvent.EventID != "" {
			eventID = env.PingEvent.EventID
		}
		pong := PongMessage{Type: MessageTypePong, EventID: eventID}
		if err := c.sendJSON(link, pong); err != nil {
			c.logger.Warn("Failed to send pong", zap.Error(err))
		}

	case MessageTypePong:
		c.touchKeepalive()

	case MessageTypeCorrection:
		if env.AgentResponseCorrectionEvent == nil {
			return
		}
		if text := env.AgentResponseCorrectionEvent.Corrected; text != "" {
			c.emitMessage(text)
		}

	case MessageTypeUserTranscript, MessageTypeUserTranscription:
		if env.UserTranscriptionEvent == nil {
			return
		}
		if text := env.UserTranscriptionEvent.UserTranscript; text != "" {
			c.emitUserTranscript(text)
		}

	default:
		// Some server versions omit the type on transcript frames.
		if env.UserTranscriptionEvent != nil && env.UserTranscriptionEvent.UserTranscript != "" {
			c.emitUserTranscript(env.UserTranscriptionEvent.UserTranscript)
			return
		}
		c.logger.Debug("Ignoring unknown message type", zap.String("type", string(env.Type)))
	}
}

// handleClose runs when the transport's read loop ends. Stale closes from a
// link that has already been replaced are ignored.
func (c *Controller) handleClose(link transportLink, code int, reason string) {
	c.mu.Lock()
	if c.link != link {
		c.mu.Unlock()
		return
	}
	c.link = nil
	if c.keepaliveStop != nil {
		close(c.keepaliveStop)
		c.keepaliveStop = nil
	}
	c.session.Reset()
	c.mu.Unlock()

	c.emitState(entities.ConnectionStateDisconnected)
	if !transport.IsNormalClose(code) {
		c.emitError(fmt.Errorf("connection error: %s", transport.DescribeClose(code, reason)))
	}
}

// keepalive replies are handled in dispatch; this monitor flags staleness
// when no ping or pong has been seen inside the window, and sends a
// client-driven ping each interval so idle connections stay warm.
func (c *Controller) keepalive(link transportLink, stop <-chan struct{}) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			last := c.session.LastKeepaliveAt
			current := c.link
			c.mu.Unlock()

			if current != link {
				return
			}
			if time.Since(last) > c.keepaliveWindow {
				c.logger.Warn("No keepalive signal within window, disconnecting",
					zap.Duration("window", c.keepaliveWindow))
				c.emitError(entities.ErrKeepaliveTimeout)
				c.Disconnect()
				return
			}

			ping := PingMessage{Type: MessageTypePing, EventID: "ping_" + strconv.FormatInt(time.Now().UnixMilli(), 10)}
			if err := c.sendJSON(link, ping); err != nil {
				return
			}
		}
	}
}

func (c *Controller) touchKeepalive() {
	c.mu.Lock()
	c.session.LastKeepaliveAt = time.Now()
	c.mu.Unlock()
}

func (c *Controller) failConnect(err error) {
	c.mu.Lock()
	c.session.Reset()
	c.mu.Unlock()
	c.emitError(err)
	c.emitState(entities.ConnectionStateDisconnected)
}

func (c *Controller) sendJSON(link transportLink, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return link.Send(payload)
}

// Callbacks are invoked without holding the controller lock so handlers may
// call back into the controller.

func (c *Controller) emitState(state entities.ConnectionState) {
	c.mu.Lock()
	fn := c.callbacks.OnConnectionStateChange
	c.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}

func (c *Controller) emitError(err error) {
	c.mu.Lock()
	fn := c.callbacks.OnError
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (c *Controller) emitMessage(text string) {
	c.mu.Lock()
	fn := c.callbacks.OnMessage
	c.mu.Unlock()
	if fn != nil {
		fn(text)
	}
}

func (c *Controller) emitAudio(pcm []byte) {
	c.mu.Lock()
	fn := c.callbacks.OnAudio
	c.mu.Unlock()
	if fn != nil {
		fn(pcm)
	}
}

func (c *Controller) emitUserTranscript(text string) {
	c.mu.Lock()
	fn := c.callbacks.OnUserTranscript
	c.mu.Unlock()
	if fn != nil {
		fn(text)
	}
}
