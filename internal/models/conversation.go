package models

import "time"

// Conversation is a chat between a user and the assistant about one item.
// Engagement metrics accumulated here feed confidence estimation when the
// conversation produces a feedback event.
type Conversation struct {
	ID              int64                 `json:"id"`
	UserID          string                `json:"user_id"`
	ItemID          string                `json:"item_id"`
	Transcript      string                `json:"transcript"`
	MessageCount    int                   `json:"message_count"`
	DurationSeconds int                   `json:"duration_seconds"`
	Analysis        *ConversationAnalysis `json:"analysis,omitempty"`
	StartedAt       time.Time             `json:"started_at"`
	EndedAt         *time.Time            `json:"ended_at,omitempty"`
}

// StartConversationRequest opens the active conversation between a user and
// an item, resuming it when one is already open.
type StartConversationRequest struct {
	UserID string `json:"user_id"`
	ItemID string `json:"item_id"`
}

// AppendMessageRequest adds one message to an active conversation.
// ElapsedSeconds is the time spent composing the message; it accumulates into
// the conversation's engagement duration.
type AppendMessageRequest struct {
	Role           string `json:"role"`
	Content        string `json:"content"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
}

// ConversationAnalysis is the structured output of analyzing a conversation
// transcript: how interested the user sounded and what they said.
type ConversationAnalysis struct {
	InterestLevel int      `json:"interest_level"` // 0-10
	AspectsLiked  []string `json:"aspects_liked,omitempty"`
	Objections    []string `json:"objections,omitempty"`
	Questions     []string `json:"questions,omitempty"`
}

// EngagementSnapshot is the numeric engagement summary consumed by confidence
// estimation. It is derived from a conversation and its analysis; the
// estimator never sees the transcript.
type EngagementSnapshot struct {
	MessageCount    int `json:"message_count"`
	DurationSeconds int `json:"duration_seconds"`
	InterestLevel   int `json:"interest_level"` // 0-10
	QuestionCount   int `json:"question_count"`
}
