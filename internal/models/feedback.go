package models

import (
	"time"

	"github.com/google/uuid"
)

// Polarity classifies a feedback event. Neutral feedback is recorded for audit
// but excluded from profile adaptation.
type Polarity string

// Valid polarity values.
const (
	PolarityLike    Polarity = "like"
	PolarityNeutral Polarity = "neutral"
	PolaritySkip    Polarity = "skip"
)

// Valid reports whether p is one of the known polarity values.
func (p Polarity) Valid() bool {
	switch p {
	case PolarityLike, PolarityNeutral, PolaritySkip:
		return true
	}

	return false
}

// Feedback is one recorded feedback event: a user's reaction to an item,
// with a confidence score derived from how the reaction was expressed.
type Feedback struct {
	ID         uuid.UUID `json:"id"`
	UserID     string    `json:"user_id"`
	ItemID     string    `json:"item_id"`
	Polarity   Polarity  `json:"polarity"`
	Confidence float64   `json:"confidence"`
	// ItemEmbedding is a snapshot of the item's embedding at recording time,
	// so adaptation still works after the item is retired. Nil when the item
	// had no embedding; such rows are retained for audit but skipped by
	// adaptation.
	ItemEmbedding  []float32 `json:"item_embedding,omitempty"`
	ConversationID *int64    `json:"conversation_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// RecordFeedbackRequest is the payload for recording a feedback event.
// Confidence is optional: when a ConversationID is given it is derived from
// the conversation's engagement; otherwise an explicit tap defaults to 1.0.
type RecordFeedbackRequest struct {
	UserID         string   `json:"user_id"`
	ItemID         string   `json:"item_id"`
	Polarity       Polarity `json:"polarity"`
	Confidence     *float64 `json:"confidence,omitempty"`
	ConversationID *int64   `json:"conversation_id,omitempty"`
}

// AdaptOutcome summarizes a batch adaptation run. Each user's outcome is
// independent; Failed counts users whose update errored, not aborted runs.
type AdaptOutcome struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}
