// Package usecase contains the chat orchestrator, the piece that ties the
// session controller, audio capture, and audio playback together and owns
// the transcript and user-facing flow state.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wicara-ai/wicara/domain/entities"
	"github.com/wicara-ai/wicara/domain/repositories"
	"github.com/wicara-ai/wicara/internal/session"
)

// settleDelay is the pause between disconnect and reconnect when starting a
// fresh conversation, giving the remote time to retire the old session.
const settleDelay = 500 * time.Millisecond

type sessionController interface {
	Connect(ctx context.Context, agentID string, cb session.Callbacks) error
	SendTextMessage(text string) error
	SendAudioChunk(pcm []byte) error
	Disconnect()
	IsConnected() bool
	ConversationID() string
}

type captureEngine interface {
	SetChunkHandler(handler func(chunk []byte))
	ClearChunkHandler()
	StartRecording(ctx context.Context) error
	StopRecording() error
	IsRecording() bool
}

type playbackEngine interface {
	Enqueue(pcm []byte)
	IsPlaying() bool
	StopAudio()
}

// Events are the orchestrator's notifications to the presentation layer.
// Nil fields are skipped.
type Events struct {
	OnTranscript  func(entry entities.TranscriptEntry)
	OnStateChange func(state entities.ConnectionState)
	OnError       func(err error)
}

// ChatOrchestrator drives one conversation end to end. It is safe for use
// from one UI goroutine plus the session's callback goroutines.
type ChatOrchestrator struct {
	session  sessionController
	capture  captureEngine
	playback playbackEngine
	broker   repositories.ConnectionBroker
	events   Events
	logger   *zap.Logger

	mu         sync.Mutex
	transcript []entities.TranscriptEntry
	step       entities.FlowStep
	agentID    string
}

// NewChatOrchestrator wires the orchestrator. The agent is chosen later,
// either explicitly via SelectAgent or lazily from the broker's list.
func NewChatOrchestrator(
	controller sessionController,
	capture captureEngine,
	playback playbackEngine,
	broker repositories.ConnectionBroker,
	events Events,
	logger *zap.Logger,
) *ChatOrchestrator {
	return &ChatOrchestrator{
		session:  controller,
		capture:  capture,
		playback: playback,
		broker:   broker,
		events:   events,
		logger:   logger,
		step:     entities.FlowStepIntro,
	}
}

// Step returns the current flow step.
func (o *ChatOrchestrator) Step() entities.FlowStep {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.step
}

// BeginTerms moves from the intro to the terms step.
func (o *ChatOrchestrator) BeginTerms() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.step == entities.FlowStepIntro {
		o.step = entities.FlowStepTerms
	}
}

// CancelTerms returns to the intro without connecting.
func (o *ChatOrchestrator) CancelTerms() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.step == entities.FlowStepTerms {
		o.step = entities.FlowStepIntro
	}
}

// AcceptTerms enters the chat step and connects.
func (o *ChatOrchestrator) AcceptTerms(ctx context.Context) error {
	o.mu.Lock()
	o.step = entities.FlowStepChat
	o.mu.Unlock()
	return o.Connect(ctx)
}

// SelectAgent pins the agent used for subsequent connections.
func (o *ChatOrchestrator) SelectAgent(agentID string) {
	o.mu.Lock()
	o.agentID = agentID
	o.mu.Unlock()
}

// ListAgents returns the agents available through the broker.
func (o *ChatOrchestrator) ListAgents(ctx context.Context) ([]repositories.Agent, error) {
	return o.broker.ListAgents(ctx)
}

// Connect opens a session to the selected agent, defaulting to the first
// agent the broker lists when none was selected.
func (o *ChatOrchestrator) Connect(ctx context.Context) error {
	agentID, err := o.resolveAgent(ctx)
	if err != nil {
		return err
	}

	return o.session.Connect(ctx, agentID, session.Callbacks{
		OnMessage:               o.onAgentMessage,
		OnAudio:                 o.playback.Enqueue,
		OnUserTranscript:        o.onUserTranscript,
		OnConnectionStateChange: o.onStateChange,
		OnError:                 o.onSessionError,
	})
}

// SendText sends one typed turn and appends it to the transcript.
func (o *ChatOrchestrator) SendText(text string) error {
	if err := o.session.SendTextMessage(text); err != nil {
		return err
	}
	o.appendTranscript(entities.NewTranscriptEntry(text, entities.SenderUser))
	return nil
}

// Disconnect closes the session. The transcript is preserved so the user
// can still read the conversation afterwards.
func (o *ChatOrchestrator) Disconnect() {
	o.session.Disconnect()
}

// StartNewConversation drops the current session, waits for the remote to
// settle, clears the transcript, and reconnects.
func (o *ChatOrchestrator) StartNewConversation(ctx context.Context) error {
	o.session.Disconnect()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(settleDelay):
	}

	o.mu.Lock()
	o.transcript = nil
	o.mu.Unlock()

	return o.Connect(ctx)
}

// Transcript returns a copy of the conversation history.
func (o *ChatOrchestrator) Transcript() []entities.TranscriptEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]entities.TranscriptEntry, len(o.transcript))
	copy(out, o.transcript)
	return out
}

// IsConnected reports whether the session is open.
func (o *ChatOrchestrator) IsConnected() bool {
	return o.session.IsConnected()
}

// ConversationID returns the remote's identifier for this conversation.
func (o *ChatOrchestrator) ConversationID() string {
	return o.session.ConversationID()
}

// IsPlaying reports whether agent audio is rendering or queued.
func (o *ChatOrchestrator) IsPlaying() bool {
	return o.playback.IsPlaying()
}

// StopAudio interrupts agent speech without touching the session.
func (o *ChatOrchestrator) StopAudio() {
	o.playback.StopAudio()
}

func (o *ChatOrchestrator) resolveAgent(ctx context.Context) (string, error) {
	o.mu.Lock()
	agentID := o.agentID
	o.mu.Unlock()
	if agentID != "" {
		return agentID, nil
	}

	agents, err := o.broker.ListAgents(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list agents: %w", err)
	}
	if len(agents) == 0 {
		return "", errors.New("no agents available")
	}

	agentID = agents[0].AgentID
	o.mu.Lock()
	o.agentID = agentID
	o.mu.Unlock()
	o.logger.Info("Defaulting to first agent",
		zap.String("agentID", agentID),
		zap.String("name", agents[0].Name))
	return agentID, nil
}

func (o *ChatOrchestrator) onAgentMessage(text string) {
	o.appendTranscript(entities.NewTranscriptEntry(text, entities.SenderAgent))
}

func (o *ChatOrchestrator) onUserTranscript(text string) {
	o.appendTranscript(entities.NewTranscriptEntry(text, entities.SenderUser))
}

func (o *ChatOrchestrator) appendTranscript(entry entities.TranscriptEntry) {
	o.mu.Lock()
	o.transcript = append(o.transcript, entry)
	o.mu.Unlock()
	if o.events.OnTranscript != nil {
		o.events.OnTranscript(entry)
	}
}

// onStateChange starts the microphone when the session comes up and tears
// the capture pipeline down in every other state. A missing microphone is
// reported but does not kill the session; the conversation degrades to
// text-only.
func (o *ChatOrchestrator) onStateChange(state entities.ConnectionState) {
	switch state {
	case entities.ConnectionStateConnected:
		o.capture.SetChunkHandler(o.onCaptureChunk)
		if err := o.capture.StartRecording(context.Background()); err != nil {
			o.logger.Warn("Microphone unavailable, continuing text-only", zap.Error(err))
			o.capture.ClearChunkHandler()
			if o.events.OnError != nil {
				o.events.OnError(err)
			}
		}
	default:
		o.capture.ClearChunkHandler()
		if err := o.capture.StopRecording(); err != nil {
			o.logger.Warn("Failed to stop recording", zap.Error(err))
		}
		o.playback.StopAudio()
	}

	if o.events.OnStateChange != nil {
		o.events.OnStateChange(state)
	}
}

func (o *ChatOrchestrator) onCaptureChunk(chunk []byte) {
	if err := o.session.SendAudioChunk(chunk); err != nil {
		if errors.Is(err, entities.ErrModeConflict) {
			// Typed turns won the mode; microphone chunks are discarded.
			return
		}
		o.logger.Warn("Failed to send audio chunk", zap.Error(err))
	}
}

func (o *ChatOrchestrator) onSessionError(err error) {
	o.logger.Error("Session error", zap.Error(err))
	if o.events.OnError != nil {
		o.events.OnError(err)
	}
}
