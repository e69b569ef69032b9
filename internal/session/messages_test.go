package session

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		check func(t *testing.T, env *Envelope)
	}{
		{
			"initiation metadata",
			`{"type":"conversation_initiation_metadata","conversation_initiation_metadata_event":{"conversation_id":"c1"}}`,
			func(t *testing.T, env *Envelope) {
				if env.ConversationInitiationEvent == nil || env.ConversationInitiationEvent.ConversationID != "c1" {
					t.Errorf("event = %+v", env.ConversationInitiationEvent)
				}
			},
		},
		{
			"agent response prefers specific field",
			`{"type":"agent_response","agent_response_event":{"agent_response":"a","response":"b"}}`,
			func(t *testing.T, env *Envelope) {
				if got := env.AgentResponseEvent.Text(); got != "a" {
					t.Errorf("Text() = %q, want %q", got, "a")
				}
			},
		},
		{
			"agent response falls back to generic field",
			`{"type":"agent_response","agent_response_event":{"response":"b"}}`,
			func(t *testing.T, env *Envelope) {
				if got := env.AgentResponseEvent.Text(); got != "b" {
					t.Errorf("Text() = %q, want %q", got, "b")
				}
			},
		},
		{
			"audio prefers newer payload field",
			`{"type":"audio","audio_event":{"audio_base_64":"QQ==","audio":"Qg=="}}`,
			func(t *testing.T, env *Envelope) {
				if got := env.AudioEvent.Payload(); got != "QQ==" {
					t.Errorf("Payload() = %q, want %q", got, "QQ==")
				}
			},
		},
		{
			"audio falls back to legacy payload field",
			`{"type":"audio","audio_event":{"audio":"Qg=="}}`,
			func(t *testing.T, env *Envelope) {
				if got := env.AudioEvent.Payload(); got != "Qg==" {
					t.Errorf("Payload() = %q, want %q", got, "Qg==")
				}
			},
		},
		{
			"unknown type leaves events nil",
			`{"type":"something_new","whatever":{"x":1}}`,
			func(t *testing.T, env *Envelope) {
				if env.AgentResponseEvent != nil || env.AudioEvent != nil || env.PingEvent != nil {
					t.Error("unexpected event populated for unknown type")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(tt.frame))
			if err != nil {
				t.Fatalf("ParseEnvelope: %v", err)
			}
			tt.check(t, env)
		})
	}
}

func TestParseEnvelopeRejectsInvalidJSON(t *testing.T) {
	if _, err := ParseEnvelope([]byte(`{not json`)); err == nil {
		t.Error("ParseEnvelope accepted invalid JSON")
	}
}

func TestInitiationMessageShape(t *testing.T) {
	raw, err := json.Marshal(NewInitiationMessage())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(raw)

	// The override objects must be present and empty, not null or absent.
	for _, field := range []string{
		`"custom_llm_extra_body":{}`,
		`"conversation_config_override":{}`,
		`"dynamic_variables":{}`,
	} {
		if !strings.Contains(s, field) {
			t.Errorf("handshake missing %s: %s", field, s)
		}
	}
	if !strings.Contains(s, `"type":"conversation_initiation_client_data"`) {
		t.Errorf("handshake type wrong: %s", s)
	}
}

func TestUserAudioChunkHasNoTypeField(t *testing.T) {
	raw, err := json.Marshal(UserAudioChunk{UserAudioChunk: "QQ=="})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := m["type"]; ok {
		t.Error("audio chunk carries a type field")
	}
	if m["user_audio_chunk"] != "QQ==" {
		t.Errorf("user_audio_chunk = %v", m["user_audio_chunk"])
	}
}
