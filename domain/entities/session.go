package entities

import "time"

// ConnectionState represents the lifecycle state of a conversation session.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
)

// ConversationMode represents what kind of content the active conversation
// is carrying. The mode is sticky: once the first text or audio send happens
// on a connection, the other kind is rejected until reconnect.
type ConversationMode string

const (
	ConversationModeNone  ConversationMode = "none"
	ConversationModeText  ConversationMode = "text"
	ConversationModeAudio ConversationMode = "audio"
)

// Session holds the protocol state of one duplex connection to the remote
// agent. All fields are reset on disconnect.
type Session struct {
	State           ConnectionState
	ConversationID  string
	Mode            ConversationMode
	Initiated       bool
	LastKeepaliveAt time.Time
}

// NewSession creates a session in its initial, disconnected state.
func NewSession() *Session {
	return &Session{
		State: ConnectionStateDisconnected,
		Mode:  ConversationModeNone,
	}
}

// Reset returns every field to its initial value. Called on disconnect and
// on abnormal close so a stale conversation ID never leaks into a new
// connection.
func (s *Session) Reset() {
	s.State = ConnectionStateDisconnected
	s.ConversationID = ""
	s.Mode = ConversationModeNone
	s.Initiated = false
	s.LastKeepaliveAt = time.Time{}
}

// CanSend reports whether the handshake has completed and chunk/message
// sends are accepted by the remote.
func (s *Session) CanSend() bool {
	return s.State == ConnectionStateConnected && s.Initiated
}
