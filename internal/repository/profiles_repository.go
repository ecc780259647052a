package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/oppmatch/engine/internal/models"
)

// Sentinel errors for profile reads.
var (
	// ErrProfileNotFound is returned when no profile row exists for the user.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProfileNotMatchable is returned when the profile exists but has no
	// embedding yet (cold start; onboarding has not embedded the user).
	ErrProfileNotMatchable = errors.New("profile has no embedding")
)

// ProfilesRepository handles data access for the profiles table.
type ProfilesRepository struct {
	db *pgxpool.Pool
}

// NewProfilesRepository creates a profiles repository.
func NewProfilesRepository(db *pgxpool.Pool) *ProfilesRepository {
	return &ProfilesRepository{db: db}
}

// Upsert inserts or updates a profile's bio and location, leaving any
// existing embedding untouched.
func (r *ProfilesRepository) Upsert(ctx context.Context, profile *models.UserProfile) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO profiles (user_id, bio, location, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id)
		DO UPDATE SET bio = EXCLUDED.bio, location = EXCLUDED.location, updated_at = $4`,
		profile.UserID, profile.Bio, profile.Location, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("profiles upsert: %w", err)
	}

	return nil
}

// GetByID returns the full profile for a user.
func (r *ProfilesRepository) GetByID(ctx context.Context, userID string) (*models.UserProfile, error) {
	var (
		profile models.UserProfile
		vec     *pgvector.Vector
	)

	err := r.db.QueryRow(ctx,
		`SELECT user_id, bio, location, embedding, updated_at FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&profile.UserID, &profile.Bio, &profile.Location, &vec, &profile.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}

		return nil, fmt.Errorf("get profile: %w", err)
	}

	if vec != nil {
		profile.Embedding = vec.Slice()
	}

	return &profile, nil
}

// GetEmbedding returns the user's profile embedding. Returns
// ErrProfileNotFound when the user has no profile row and
// ErrProfileNotMatchable when the row exists without an embedding.
func (r *ProfilesRepository) GetEmbedding(ctx context.Context, userID string) ([]float32, error) {
	var vec *pgvector.Vector

	err := r.db.QueryRow(ctx,
		`SELECT embedding FROM profiles WHERE user_id = $1`, userID,
	).Scan(&vec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}

		return nil, fmt.Errorf("get profile embedding: %w", err)
	}

	if vec == nil {
		return nil, ErrProfileNotMatchable
	}

	return vec.Slice(), nil
}

// UpdateEmbedding replaces the user's profile embedding. The write is a
// single UPDATE, so a concurrent reader sees either the fully-old or
// fully-new vector, never a partial one.
func (r *ProfilesRepository) UpdateEmbedding(ctx context.Context, userID string, embedding []float32) error {
	vec := pgvector.NewVector(embedding)

	tag, err := r.db.Exec(ctx,
		`UPDATE profiles SET embedding = $2, updated_at = $3 WHERE user_id = $1`,
		userID, vec, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("update profile embedding: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}

	return nil
}
