package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oppmatch/engine/internal/apperrors"
	"github.com/oppmatch/engine/internal/conversation"
	"github.com/oppmatch/engine/internal/models"
	"github.com/oppmatch/engine/internal/repository"
	"github.com/oppmatch/engine/internal/rocchio"
)

// explicitTapConfidence is the confidence assigned to a bare like/skip with
// no conversation context: a deliberate tap is a strong signal.
const explicitTapConfidence = 1.0

// FeedbackWriter persists feedback events.
type FeedbackWriter interface {
	Insert(ctx context.Context, fb *models.Feedback) error
}

// ConversationReader loads conversations for confidence derivation.
type ConversationReader interface {
	GetByID(ctx context.Context, id int64) (*models.Conversation, error)
}

// FeedbackService records feedback events, snapshotting the item's embedding
// and deriving a confidence weight for later adaptation.
type FeedbackService struct {
	feedback      FeedbackWriter
	opportunities OpportunityReader
	conversations ConversationReader
	analyzer      conversation.Analyzer
	logger        *slog.Logger
}

// FeedbackServiceParams configures a FeedbackService.
type FeedbackServiceParams struct {
	Feedback      FeedbackWriter
	Opportunities OpportunityReader
	Conversations ConversationReader
	Analyzer      conversation.Analyzer
	Logger        *slog.Logger
}

// NewFeedbackService creates a FeedbackService.
func NewFeedbackService(p FeedbackServiceParams) *FeedbackService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &FeedbackService{
		feedback:      p.Feedback,
		opportunities: p.Opportunities,
		conversations: p.Conversations,
		analyzer:      p.Analyzer,
		logger:        logger,
	}
}

// RecordFeedback persists one feedback event.
//
// The item's current embedding is snapshotted onto the row so adaptation
// still works after the item is retired; an item with no embedding yields a
// nil snapshot, kept for audit but skipped by adaptation. Confidence comes
// from, in order of precedence: the explicit value on the request, the
// engagement of the referenced conversation, or the explicit-tap default.
func (s *FeedbackService) RecordFeedback(ctx context.Context, req *models.RecordFeedbackRequest) (*models.Feedback, error) {
	if req.UserID == "" {
		return nil, apperrors.NewValidationError("user_id", "user_id is required")
	}

	if req.ItemID == "" {
		return nil, apperrors.NewValidationError("item_id", "item_id is required")
	}

	if !req.Polarity.Valid() {
		return nil, apperrors.NewValidationError("polarity",
			fmt.Sprintf("polarity must be like, neutral, or skip; got %q", req.Polarity))
	}

	if req.Confidence != nil && (*req.Confidence < 0 || *req.Confidence > 1) {
		return nil, apperrors.NewValidationError("confidence", "confidence must be in [0, 1]")
	}

	snapshot, err := s.snapshotItemEmbedding(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}

	confidence, err := s.deriveConfidence(ctx, req)
	if err != nil {
		return nil, err
	}

	fb := &models.Feedback{
		ID:             repository.NewFeedbackID(),
		UserID:         req.UserID,
		ItemID:         req.ItemID,
		Polarity:       req.Polarity,
		Confidence:     confidence,
		ItemEmbedding:  snapshot,
		ConversationID: req.ConversationID,
		CreatedAt:      time.Now(),
	}

	if err := s.feedback.Insert(ctx, fb); err != nil {
		return nil, apperrors.NewStorageError("insert feedback", err)
	}

	s.logger.Info("feedback recorded",
		"user_id", fb.UserID, "item_id", fb.ItemID,
		"polarity", fb.Polarity, "confidence", fb.Confidence,
		"has_embedding", len(fb.ItemEmbedding) > 0)

	return fb, nil
}

// snapshotItemEmbedding returns the item's current embedding, or nil when the
// item is unknown or not yet embedded. Unknown items are still recordable:
// the feedback may refer to an item retired moments ago.
func (s *FeedbackService) snapshotItemEmbedding(ctx context.Context, itemID string) ([]float32, error) {
	opp, err := s.opportunities.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrOpportunityNotFound) {
			s.logger.Warn("feedback: item not found, recording without embedding snapshot",
				"item_id", itemID)

			return nil, nil
		}

		return nil, apperrors.NewStorageError("load item for snapshot", err)
	}

	return opp.Embedding, nil
}

// deriveConfidence resolves the confidence weight for the event.
func (s *FeedbackService) deriveConfidence(ctx context.Context, req *models.RecordFeedbackRequest) (float64, error) {
	if req.Confidence != nil {
		return *req.Confidence, nil
	}

	if req.ConversationID == nil {
		return explicitTapConfidence, nil
	}

	conv, err := s.conversations.GetByID(ctx, *req.ConversationID)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			return 0, apperrors.NewValidationError("conversation_id",
				fmt.Sprintf("conversation %d not found", *req.ConversationID))
		}

		return 0, apperrors.NewStorageError("load conversation", err)
	}

	analysis := conv.Analysis
	if analysis == nil && s.analyzer != nil && conv.Transcript != "" {
		analysis, err = s.analyzer.Analyze(ctx, conv.Transcript, conv.ItemID)
		if err != nil {
			// Analysis is best-effort; fall back to neutral rather than
			// blocking the feedback write.
			s.logger.Warn("feedback: transcript analysis failed, using neutral analysis",
				"conversation_id", conv.ID, "error", err)

			analysis = conversation.NeutralAnalysis()
		}
	}

	snap := conversation.Snapshot(conv, analysis)

	return rocchio.EstimateConfidence(snap), nil
}
