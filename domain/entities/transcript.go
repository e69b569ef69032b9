package entities

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies which party produced a transcript entry.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// TranscriptEntry is one line of conversation history. Entries are
// append-only for the life of a conversation and cleared only when the user
// explicitly starts a new one.
type TranscriptEntry struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTranscriptEntry creates a transcript entry stamped with the current time.
func NewTranscriptEntry(text string, sender Sender) TranscriptEntry {
	return TranscriptEntry{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    sender,
		Timestamp: time.Now(),
	}
}

// FlowStep is the user-facing macro state of the chat flow.
type FlowStep string

const (
	FlowStepIntro FlowStep = "intro"
	FlowStepTerms FlowStep = "terms"
	FlowStepChat  FlowStep = "chat"
)
