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
)

// Conversation message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationStore persists conversations and their transcripts.
type ConversationStore interface {
	GetOrCreateActive(ctx context.Context, userID, itemID string) (*models.Conversation, error)
	GetByID(ctx context.Context, id int64) (*models.Conversation, error)
	AppendMessage(ctx context.Context, id int64, line string, elapsed time.Duration) error
	Finish(ctx context.Context, id int64, analysis *models.ConversationAnalysis) error
}

// ConversationService manages the conversation lifecycle: opening a
// conversation about an item, accumulating transcript and engagement metrics,
// and closing it with an analysis. The metrics gathered here are what
// confidence estimation consumes when the conversation later backs a
// feedback event.
type ConversationService struct {
	conversations ConversationStore
	analyzer      conversation.Analyzer
	logger        *slog.Logger
}

// ConversationServiceParams configures a ConversationService.
type ConversationServiceParams struct {
	Conversations ConversationStore
	// Analyzer is optional; without one, finished conversations are stored
	// unanalyzed and analysis happens lazily at feedback time.
	Analyzer conversation.Analyzer
	Logger   *slog.Logger
}

// NewConversationService creates a ConversationService.
func NewConversationService(p ConversationServiceParams) *ConversationService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ConversationService{
		conversations: p.Conversations,
		analyzer:      p.Analyzer,
		logger:        logger,
	}
}

// Start returns the open conversation between the user and the item, creating
// one when none exists. Repeated starts resume the same conversation, so a
// client reconnecting mid-chat keeps accumulating into one transcript.
func (s *ConversationService) Start(ctx context.Context, req *models.StartConversationRequest) (*models.Conversation, error) {
	if req.UserID == "" {
		return nil, apperrors.NewValidationError("user_id", "user_id is required")
	}

	if req.ItemID == "" {
		return nil, apperrors.NewValidationError("item_id", "item_id is required")
	}

	conv, err := s.conversations.GetOrCreateActive(ctx, req.UserID, req.ItemID)
	if err != nil {
		return nil, apperrors.NewStorageError("get or create conversation", err)
	}

	return conv, nil
}

// AppendMessage adds one message line to an active conversation, bumping its
// message count and engagement duration. Appending to a finished or unknown
// conversation returns a NotFoundError.
func (s *ConversationService) AppendMessage(ctx context.Context, id int64, req *models.AppendMessageRequest) error {
	if req.Role != RoleUser && req.Role != RoleAssistant {
		return apperrors.NewValidationError("role",
			fmt.Sprintf("role must be %s or %s; got %q", RoleUser, RoleAssistant, req.Role))
	}

	if req.Content == "" {
		return apperrors.NewValidationError("content", "content is required")
	}

	if req.ElapsedSeconds < 0 {
		return apperrors.NewValidationError("elapsed_seconds", "elapsed_seconds must not be negative")
	}

	line := req.Role + ": " + req.Content
	elapsed := time.Duration(req.ElapsedSeconds) * time.Second

	if err := s.conversations.AppendMessage(ctx, id, line, elapsed); err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			return apperrors.NewNotFoundError("conversation",
				fmt.Sprintf("conversation %d not found or already finished", id))
		}

		return apperrors.NewStorageError("append conversation message", err)
	}

	return nil
}

// Finish closes the conversation and, when an analyzer is configured, stores
// the transcript analysis alongside it. Analysis failures are not fatal: the
// conversation still closes unanalyzed, and feedback recording analyzes the
// transcript lazily instead. Finishing an already finished conversation is a
// no-op returning the stored row.
func (s *ConversationService) Finish(ctx context.Context, id int64) (*models.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			return nil, apperrors.NewNotFoundError("conversation",
				fmt.Sprintf("conversation %d not found", id))
		}

		return nil, apperrors.NewStorageError("load conversation", err)
	}

	if conv.EndedAt != nil {
		return conv, nil
	}

	analysis := conv.Analysis
	if analysis == nil && s.analyzer != nil && conv.Transcript != "" {
		analysis, err = s.analyzer.Analyze(ctx, conv.Transcript, conv.ItemID)
		if err != nil {
			s.logger.Warn("conversation: transcript analysis failed, finishing unanalyzed",
				"conversation_id", conv.ID, "error", err)

			analysis = nil
		}
	}

	if err := s.conversations.Finish(ctx, id, analysis); err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			return nil, apperrors.NewNotFoundError("conversation",
				fmt.Sprintf("conversation %d not found", id))
		}

		return nil, apperrors.NewStorageError("finish conversation", err)
	}

	now := time.Now()
	conv.Analysis = analysis
	conv.EndedAt = &now

	s.logger.Info("conversation finished",
		"conversation_id", conv.ID, "user_id", conv.UserID, "item_id", conv.ItemID,
		"messages", conv.MessageCount, "analyzed", analysis != nil)

	return conv, nil
}
