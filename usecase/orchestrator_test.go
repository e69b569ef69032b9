package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/wicara-ai/wicara/domain/entities"
	"github.com/wicara-ai/wicara/domain/repositories"
	"github.com/wicara-ai/wicara/internal/session"
)

type fakeSession struct {
	mu         sync.Mutex
	connects   int
	agentIDs   []string
	callbacks  session.Callbacks
	connectErr error
	sendErr    error
	sentTexts  []string
	sentChunks [][]byte
	connected  bool
	convID     string
}

func (s *fakeSession) Connect(ctx context.Context, agentID string, cb session.Callbacks) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectErr != nil {
		return s.connectErr
	}
	s.connects++
	s.agentIDs = append(s.agentIDs, agentID)
	s.callbacks = cb
	s.connected = true
	return nil
}

func (s *fakeSession) SendTextMessage(text string) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.mu.Lock()
	s.sentTexts = append(s.sentTexts, text)
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) SendAudioChunk(pcm []byte) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.mu.Lock()
	s.sentChunks = append(s.sentChunks, pcm)
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) Disconnect() {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
}

func (s *fakeSession) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeSession) ConversationID() string { return s.convID }

type fakeCapture struct {
	mu       sync.Mutex
	handler  func([]byte)
	starts   int
	stops    int
	startErr error
}

func (c *fakeCapture) SetChunkHandler(h func(chunk []byte)) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

func (c *fakeCapture) ClearChunkHandler() {
	c.mu.Lock()
	c.handler = nil
	c.mu.Unlock()
}

func (c *fakeCapture) StartRecording(ctx context.Context) error {
	if c.startErr != nil {
		return c.startErr
	}
	c.mu.Lock()
	c.starts++
	c.mu.Unlock()
	return nil
}

func (c *fakeCapture) StopRecording() error {
	c.mu.Lock()
	c.stops++
	c.mu.Unlock()
	return nil
}

func (c *fakeCapture) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts > c.stops
}

func (c *fakeCapture) emit(chunk []byte) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h != nil {
		h(chunk)
	}
}

type fakePlayback struct {
	mu      sync.Mutex
	queued  [][]byte
	stopped int
}

func (p *fakePlayback) Enqueue(pcm []byte) {
	p.mu.Lock()
	p.queued = append(p.queued, pcm)
	p.mu.Unlock()
}

func (p *fakePlayback) IsPlaying() bool { return false }

func (p *fakePlayback) StopAudio() {
	p.mu.Lock()
	p.stopped++
	p.mu.Unlock()
}

type listBroker struct {
	agents []repositories.Agent
	err    error
	calls  int
}

func (b *listBroker) GetConnectionTarget(ctx context.Context, agentID string) (string, error) {
	return "ws://unused", nil
}

func (b *listBroker) ListAgents(ctx context.Context) ([]repositories.Agent, error) {
	b.calls++
	return b.agents, b.err
}

func newOrchestrator(s *fakeSession, c *fakeCapture, p *fakePlayback, b *listBroker, ev Events) *ChatOrchestrator {
	return NewChatOrchestrator(s, c, p, b, ev, zap.NewNop())
}

func TestConnectDefaultsToFirstAgent(t *testing.T) {
	s := &fakeSession{}
	b := &listBroker{agents: []repositories.Agent{{AgentID: "a1", Name: "One"}, {AgentID: "a2"}}}
	o := newOrchestrator(s, &fakeCapture{}, &fakePlayback{}, b, Events{})

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if len(s.agentIDs) != 1 || s.agentIDs[0] != "a1" {
		t.Errorf("connected agents = %v, want [a1]", s.agentIDs)
	}

	// The default is remembered; the list is not fetched again.
	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if b.calls != 1 {
		t.Errorf("broker list calls = %d, want 1", b.calls)
	}
}

func TestConnectUsesSelectedAgent(t *testing.T) {
	s := &fakeSession{}
	b := &listBroker{err: errors.New("should not be called")}
	o := newOrchestrator(s, &fakeCapture{}, &fakePlayback{}, b, Events{})

	o.SelectAgent("a9")
	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if s.agentIDs[0] != "a9" {
		t.Errorf("agent = %q, want a9", s.agentIDs[0])
	}
}

func TestConnectNoAgents(t *testing.T) {
	o := newOrchestrator(&fakeSession{}, &fakeCapture{}, &fakePlayback{}, &listBroker{}, Events{})
	if err := o.Connect(context.Background()); err == nil {
		t.Error("Connect succeeded with no agents")
	}
}

func TestRecordingFollowsConnectionState(t *testing.T) {
	s := &fakeSession{}
	c := &fakeCapture{}
	p := &fakePlayback{}
	o := newOrchestrator(s, c, p, &listBroker{agents: []repositories.Agent{{AgentID: "a1"}}}, Events{})

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	s.callbacks.OnConnectionStateChange(entities.ConnectionStateConnected)
	if !c.IsRecording() {
		t.Error("recording not started on connected")
	}

	// Capture chunks flow into the session.
	c.emit([]byte{1, 2})
	if len(s.sentChunks) != 1 {
		t.Fatalf("sent %d chunks, want 1", len(s.sentChunks))
	}

	s.callbacks.OnConnectionStateChange(entities.ConnectionStateDisconnected)
	if c.IsRecording() {
		t.Error("recording still running after disconnect")
	}
	if p.stopped == 0 {
		t.Error("playback not stopped on disconnect")
	}
	c.emit([]byte{3, 4})
	if len(s.sentChunks) != 1 {
		t.Error("chunk sent after handler cleared")
	}
}

func TestMicrophoneFailureDegradesToText(t *testing.T) {
	s := &fakeSession{}
	c := &fakeCapture{startErr: entities.ErrMicrophoneUnavailable}
	var gotErr error
	o := newOrchestrator(s, c, &fakePlayback{},
		&listBroker{agents: []repositories.Agent{{AgentID: "a1"}}},
		Events{OnError: func(err error) { gotErr = err }})

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	s.callbacks.OnConnectionStateChange(entities.ConnectionStateConnected)

	if !errors.Is(gotErr, entities.ErrMicrophoneUnavailable) {
		t.Errorf("OnError = %v, want ErrMicrophoneUnavailable", gotErr)
	}
	if c.IsRecording() {
		t.Error("recording reported running after failed start")
	}
	// The session stays usable for text.
	if err := o.SendText("hello"); err != nil {
		t.Errorf("SendText after mic failure: %v", err)
	}
}

func TestTranscriptAppends(t *testing.T) {
	s := &fakeSession{}
	var notified []entities.TranscriptEntry
	o := newOrchestrator(s, &fakeCapture{}, &fakePlayback{},
		&listBroker{agents: []repositories.Agent{{AgentID: "a1"}}},
		Events{OnTranscript: func(e entities.TranscriptEntry) { notified = append(notified, e) }})

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := o.SendText("hi"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	s.callbacks.OnMessage("hello there")
	s.callbacks.OnUserTranscript("hi")

	transcript := o.Transcript()
	if len(transcript) != 3 {
		t.Fatalf("transcript length = %d, want 3", len(transcript))
	}
	wantSenders := []entities.Sender{entities.SenderUser, entities.SenderAgent, entities.SenderUser}
	for i, want := range wantSenders {
		if transcript[i].Sender != want {
			t.Errorf("entry %d sender = %q, want %q", i, transcript[i].Sender, want)
		}
		if transcript[i].ID == "" {
			t.Errorf("entry %d has no ID", i)
		}
	}
	if len(notified) != 3 {
		t.Errorf("OnTranscript fired %d times, want 3", len(notified))
	}
}

func TestSendTextFailureLeavesTranscriptUntouched(t *testing.T) {
	s := &fakeSession{sendErr: entities.ErrNotConnected}
	o := newOrchestrator(s, &fakeCapture{}, &fakePlayback{}, &listBroker{}, Events{})

	if err := o.SendText("hi"); !errors.Is(err, entities.ErrNotConnected) {
		t.Errorf("SendText = %v, want ErrNotConnected", err)
	}
	if len(o.Transcript()) != 0 {
		t.Error("failed send appended to transcript")
	}
}

func TestAgentAudioRoutesToPlayback(t *testing.T) {
	s := &fakeSession{}
	p := &fakePlayback{}
	o := newOrchestrator(s, &fakeCapture{}, p,
		&listBroker{agents: []repositories.Agent{{AgentID: "a1"}}}, Events{})

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	s.callbacks.OnAudio([]byte{9, 9})
	if len(p.queued) != 1 {
		t.Errorf("queued %d chunks, want 1", len(p.queued))
	}
}

func TestStartNewConversationClearsTranscript(t *testing.T) {
	s := &fakeSession{}
	o := newOrchestrator(s, &fakeCapture{}, &fakePlayback{},
		&listBroker{agents: []repositories.Agent{{AgentID: "a1"}}}, Events{})

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	s.callbacks.OnMessage("old news")

	// Plain disconnect keeps the history readable.
	o.Disconnect()
	if len(o.Transcript()) != 1 {
		t.Fatal("disconnect cleared the transcript")
	}

	if err := o.StartNewConversation(context.Background()); err != nil {
		t.Fatalf("StartNewConversation: %v", err)
	}
	if len(o.Transcript()) != 0 {
		t.Error("new conversation kept the old transcript")
	}
	if s.connects != 2 {
		t.Errorf("connects = %d, want 2", s.connects)
	}
}

func TestFlowSteps(t *testing.T) {
	s := &fakeSession{}
	o := newOrchestrator(s, &fakeCapture{}, &fakePlayback{},
		&listBroker{agents: []repositories.Agent{{AgentID: "a1"}}}, Events{})

	if o.Step() != entities.FlowStepIntro {
		t.Fatalf("initial step = %q", o.Step())
	}

	o.BeginTerms()
	if o.Step() != entities.FlowStepTerms {
		t.Fatalf("step = %q, want terms", o.Step())
	}

	o.CancelTerms()
	if o.Step() != entities.FlowStepIntro {
		t.Fatalf("step = %q, want intro after cancel", o.Step())
	}
	if s.connects != 0 {
		t.Error("cancel connected anyway")
	}

	o.BeginTerms()
	if err := o.AcceptTerms(context.Background()); err != nil {
		t.Fatalf("AcceptTerms: %v", err)
	}
	if o.Step() != entities.FlowStepChat {
		t.Errorf("step = %q, want chat", o.Step())
	}
	if s.connects != 1 {
		t.Errorf("connects = %d, want 1", s.connects)
	}
}
