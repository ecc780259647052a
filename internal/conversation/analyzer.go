// Package conversation analyzes conversation transcripts into the structured
// engagement signals that feed confidence estimation.
package conversation

import (
	"context"

	"github.com/oppmatch/engine/internal/models"
)

// Analyzer extracts interest level, liked aspects, objections, and questions
// from a conversation transcript about one item.
type Analyzer interface {
	Analyze(ctx context.Context, transcript, itemID string) (*models.ConversationAnalysis, error)
}

// NeutralAnalysis is the fallback when analysis is unavailable: mid-scale
// interest and no extracted lists. The core only ever consumes the numeric
// snapshot, so this degrades confidence toward the weak end rather than
// fabricating signal.
func NeutralAnalysis() *models.ConversationAnalysis {
	return &models.ConversationAnalysis{InterestLevel: 5}
}

// Snapshot combines a conversation's engagement metrics with its analysis
// into the numeric tuple the confidence estimator consumes.
func Snapshot(conv *models.Conversation, analysis *models.ConversationAnalysis) models.EngagementSnapshot {
	if analysis == nil {
		analysis = NeutralAnalysis()
	}

	return models.EngagementSnapshot{
		MessageCount:    conv.MessageCount,
		DurationSeconds: conv.DurationSeconds,
		InterestLevel:   analysis.InterestLevel,
		QuestionCount:   len(analysis.Questions),
	}
}
