package session

import (
	"encoding/json"
	"fmt"
)

// MessageType defines the type discriminator of a wire message.
type MessageType string

// Supported message types. Outbound audio chunks are the one exception:
// the remote service requires a bare {"user_audio_chunk": ...} object with
// no type field at all.
const (
	MessageTypeInitiation         MessageType = "conversation_initiation_client_data"
	MessageTypeInitiationMetadata MessageType = "conversation_initiation_metadata"
	MessageTypeUserMessage        MessageType = "user_message"
	MessageTypeAgentResponse      MessageType = "agent_response"
	MessageTypeLLMResponse        MessageType = "llm_response"
	MessageTypeAudio              MessageType = "audio"
	MessageTypePing               MessageType = "ping"
	MessageTypePong               MessageType = "pong"
	MessageTypeCorrection         MessageType = "agent_response_correction"
	MessageTypeUserTranscript     MessageType = "user_transcript"
	MessageTypeUserTranscription  MessageType = "user_transcription_event"
)

// Envelope is the inbound discriminated union. Only the event matching the
// type field is populated; unknown types leave everything nil and are
// ignored for forward compatibility.
type Envelope struct {
	Type                         MessageType            `json:"type"`
	ConversationInitiationEvent  *InitiationEvent       `json:"conversation_initiation_metadata_event,omitempty"`
	AgentResponseEvent           *AgentResponseEvent    `json:"agent_response_event,omitempty"`
	LLMResponseEvent             *LLMResponseEvent      `json:"llm_response_event,omitempty"`
	AudioEvent                   *AudioEvent            `json:"audio_event,omitempty"`
	PingEvent                    *PingEvent             `json:"ping_event,omitempty"`
	AgentResponseCorrectionEvent *CorrectionEvent       `json:"agent_response_correction_event,omitempty"`
	UserTranscriptionEvent       *UserTranscriptionEvent `json:"user_transcription_event,omitempty"`
}

// InitiationEvent confirms the handshake and carries the conversation ID
// that gates all subsequent sends.
type InitiationEvent struct {
	ConversationID string `json:"conversation_id"`
}

// AgentResponseEvent carries one agent text turn. Older server versions
// used the generic response field, so both are read.
type AgentResponseEvent struct {
	AgentResponse string `json:"agent_response,omitempty"`
	Response      string `json:"response,omitempty"`
}

// Text returns the agent text, preferring the agent-specific field.
func (e *AgentResponseEvent) Text() string {
	if e.AgentResponse != "" {
		return e.AgentResponse
	}
	return e.Response
}

// LLMResponseEvent is the legacy shape of an agent text turn.
type LLMResponseEvent struct {
	Response string `json:"response"`
}

// AudioEvent carries one base64-encoded PCM chunk. The payload field was
// renamed at some point, so both spellings are read.
type AudioEvent struct {
	AudioBase64 string `json:"audio_base_64,omitempty"`
	Audio       string `json:"audio,omitempty"`
	EventID     int    `json:"event_id,omitempty"`
}

// Payload returns the base64 audio data, preferring the newer field name.
func (e *AudioEvent) Payload() string {
	if e.AudioBase64 != "" {
		return e.AudioBase64
	}
	return e.Audio
}

// PingEvent is a keepalive probe from the remote. It must be answered with
// a pong echoing the event ID or the remote will close the connection.
type PingEvent struct {
	EventID string `json:"event_id"`
}

// CorrectionEvent replaces the most recent agent text after the fact.
type CorrectionEvent struct {
	Original  string `json:"original,omitempty"`
	Corrected string `json:"corrected"`
}

// UserTranscriptionEvent is the speech-to-text feedback for the caller's
// own audio. Distinct from agent text.
type UserTranscriptionEvent struct {
	UserTranscript string `json:"user_transcript"`
}

// ParseEnvelope decodes one inbound frame.
func ParseEnvelope(frame []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("invalid message frame: %w", err)
	}
	return &env, nil
}

// InitiationMessage is the handshake request. It must be the first message
// sent after transport open; the remote will not associate anything with a
// conversation before answering it.
type InitiationMessage struct {
	Type                       MessageType    `json:"type"`
	CustomLLMExtraBody         map[string]any `json:"custom_llm_extra_body"`
	ConversationConfigOverride map[string]any `json:"conversation_config_override"`
	DynamicVariables           map[string]any `json:"dynamic_variables"`
}

// NewInitiationMessage builds the handshake request with the empty override
// objects the remote expects to be present.
func NewInitiationMessage() InitiationMessage {
	return InitiationMessage{
		Type:                       MessageTypeInitiation,
		CustomLLMExtraBody:         map[string]any{},
		ConversationConfigOverride: map[string]any{},
		DynamicVariables:           map[string]any{},
	}
}

// UserMessage is one outbound text turn.
type UserMessage struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

// PongMessage answers a keepalive ping.
type PongMessage struct {
	Type    MessageType `json:"type"`
	EventID string      `json:"event_id"`
}

// PingMessage is the client-driven keepalive probe.
type PingMessage struct {
	Type    MessageType `json:"type"`
	EventID string      `json:"event_id"`
}

// UserAudioChunk is one outbound audio chunk. Deliberately has no type
// field; this exact shape is a protocol requirement of the remote service.
type UserAudioChunk struct {
	UserAudioChunk string `json:"user_audio_chunk"`
}
