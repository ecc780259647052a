package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oppmatch/engine/internal/models"
)

// ErrConversationNotFound is returned when no conversation row exists.
var ErrConversationNotFound = errors.New("conversation not found")

// ConversationsRepository handles data access for the user_conversations table.
type ConversationsRepository struct {
	db *pgxpool.Pool
}

// NewConversationsRepository creates a conversations repository.
func NewConversationsRepository(db *pgxpool.Pool) *ConversationsRepository {
	return &ConversationsRepository{db: db}
}

// GetOrCreateActive returns the open conversation between user and item,
// creating one when none exists.
func (r *ConversationsRepository) GetOrCreateActive(ctx context.Context, userID, itemID string) (*models.Conversation, error) {
	conv, err := r.scanOne(r.db.QueryRow(ctx, `
		SELECT id, user_id, item_id, transcript, message_count, duration_seconds, analysis, started_at, ended_at
		FROM user_conversations
		WHERE user_id = $1 AND item_id = $2 AND ended_at IS NULL
		ORDER BY started_at DESC LIMIT 1`,
		userID, itemID))
	if err == nil {
		return conv, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get active conversation: %w", err)
	}

	conv = &models.Conversation{
		UserID:    userID,
		ItemID:    itemID,
		StartedAt: time.Now(),
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO user_conversations (user_id, item_id, transcript, message_count, duration_seconds, started_at)
		VALUES ($1, $2, '', 0, 0, $3)
		RETURNING id`,
		userID, itemID, conv.StartedAt,
	).Scan(&conv.ID)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	return conv, nil
}

// GetByID returns one conversation.
func (r *ConversationsRepository) GetByID(ctx context.Context, id int64) (*models.Conversation, error) {
	conv, err := r.scanOne(r.db.QueryRow(ctx, `
		SELECT id, user_id, item_id, transcript, message_count, duration_seconds, analysis, started_at, ended_at
		FROM user_conversations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}

		return nil, fmt.Errorf("get conversation: %w", err)
	}

	return conv, nil
}

// AppendMessage appends a line to the transcript and bumps the message count
// and elapsed duration.
func (r *ConversationsRepository) AppendMessage(ctx context.Context, id int64, line string, elapsed time.Duration) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE user_conversations
		SET transcript = transcript || $2 || E'\n',
		    message_count = message_count + 1,
		    duration_seconds = duration_seconds + $3
		WHERE id = $1 AND ended_at IS NULL`,
		id, line, int(elapsed.Seconds()),
	)
	if err != nil {
		return fmt.Errorf("append conversation message: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}

	return nil
}

// Finish closes the conversation and stores its analysis.
func (r *ConversationsRepository) Finish(ctx context.Context, id int64, analysis *models.ConversationAnalysis) error {
	var analysisJSON []byte

	if analysis != nil {
		var err error

		analysisJSON, err = json.Marshal(analysis)
		if err != nil {
			return fmt.Errorf("marshal conversation analysis: %w", err)
		}
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE user_conversations SET analysis = $2, ended_at = $3 WHERE id = $1`,
		id, analysisJSON, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("finish conversation: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}

	return nil
}

func (r *ConversationsRepository) scanOne(row pgx.Row) (*models.Conversation, error) {
	var (
		conv         models.Conversation
		analysisJSON []byte
	)

	err := row.Scan(&conv.ID, &conv.UserID, &conv.ItemID, &conv.Transcript,
		&conv.MessageCount, &conv.DurationSeconds, &analysisJSON, &conv.StartedAt, &conv.EndedAt)
	if err != nil {
		return nil, err
	}

	if len(analysisJSON) > 0 {
		var analysis models.ConversationAnalysis
		if err := json.Unmarshal(analysisJSON, &analysis); err != nil {
			return nil, fmt.Errorf("unmarshal conversation analysis: %w", err)
		}

		conv.Analysis = &analysis
	}

	return &conv, nil
}
