package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/oppmatch/engine/internal/models"
)

// FeedbackRepository handles data access for the user_feedback table.
type FeedbackRepository struct {
	db *pgxpool.Pool
}

// NewFeedbackRepository creates a feedback repository.
func NewFeedbackRepository(db *pgxpool.Pool) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Insert records one feedback event. The item embedding snapshot may be nil;
// such rows are kept for audit but skipped by adaptation.
func (r *FeedbackRepository) Insert(ctx context.Context, fb *models.Feedback) error {
	var vec *pgvector.Vector
	if len(fb.ItemEmbedding) > 0 {
		v := pgvector.NewVector(fb.ItemEmbedding)
		vec = &v
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO user_feedback
			(id, user_id, item_id, polarity, confidence, item_embedding, conversation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		fb.ID, fb.UserID, fb.ItemID, fb.Polarity, fb.Confidence, vec, fb.ConversationID, fb.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("feedback insert: %w", err)
	}

	return nil
}

// ListForUserSince returns the user's feedback newer than since, most recent
// first — the order adaptation consumes it in.
func (r *FeedbackRepository) ListForUserSince(ctx context.Context, userID string, since time.Time) ([]models.Feedback, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, item_id, polarity, confidence, item_embedding, conversation_id, created_at
		FROM user_feedback
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC`,
		userID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var out []models.Feedback

	for rows.Next() {
		var (
			fb  models.Feedback
			vec *pgvector.Vector
		)

		if err := rows.Scan(&fb.ID, &fb.UserID, &fb.ItemID, &fb.Polarity, &fb.Confidence,
			&vec, &fb.ConversationID, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}

		if vec != nil {
			fb.ItemEmbedding = vec.Slice()
		}

		out = append(out, fb)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating feedback: %w", err)
	}

	return out, nil
}

// ListUserIDsWithFeedbackSince returns up to limit distinct users who have
// recorded any feedback newer than since.
func (r *FeedbackRepository) ListUserIDsWithFeedbackSince(ctx context.Context, since time.Time, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT user_id FROM user_feedback
		WHERE created_at >= $1
		GROUP BY user_id
		ORDER BY user_id
		LIMIT $2`,
		since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list users with feedback: %w", err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user ids: %w", err)
	}

	return ids, nil
}

// NewFeedbackID returns a time-ordered id for a feedback row.
func NewFeedbackID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}
