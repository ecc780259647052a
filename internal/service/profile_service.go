package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oppmatch/engine/internal/apperrors"
	"github.com/oppmatch/engine/internal/embeddings"
	"github.com/oppmatch/engine/internal/models"
	"github.com/oppmatch/engine/internal/repository"
	"github.com/oppmatch/engine/pkg/vecmath"
)

// ProfileStore reads and writes user profiles.
type ProfileStore interface {
	Upsert(ctx context.Context, profile *models.UserProfile) error
	GetByID(ctx context.Context, userID string) (*models.UserProfile, error)
	UpdateEmbedding(ctx context.Context, userID string, embedding []float32) error
}

// ProfileService owns onboarding: it stores profile metadata and derives the
// initial profile embedding from the bio text. Adaptation only ever moves an
// existing vector; the first one comes from here.
type ProfileService struct {
	profiles ProfileStore
	embedder embeddings.Client
	logger   *slog.Logger
}

// ProfileServiceParams configures a ProfileService.
type ProfileServiceParams struct {
	Profiles ProfileStore
	// Embedder is optional; without one, upserted profiles stay unmatchable
	// until an embedding arrives some other way.
	Embedder embeddings.Client
	Logger   *slog.Logger
}

// NewProfileService creates a ProfileService.
func NewProfileService(p ProfileServiceParams) *ProfileService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ProfileService{
		profiles: p.Profiles,
		embedder: p.Embedder,
		logger:   logger,
	}
}

// UpsertProfile creates or updates the user's profile and, when an embedder
// is configured and a bio is present, re-embeds the bio into the profile
// vector. The stored vector is unit-normalized so index scores stay cosine
// similarities.
//
// Embedding failures do not fail the upsert: the metadata is already saved,
// the profile simply stays on its previous vector (or unmatchable) until the
// next upsert retries.
func (s *ProfileService) UpsertProfile(ctx context.Context, userID string, req *models.UpsertProfileRequest) (*models.UserProfile, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user_id", "user_id is required")
	}

	profile := &models.UserProfile{
		UserID:   userID,
		Bio:      req.Bio,
		Location: req.Location,
	}

	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return nil, apperrors.NewStorageError("upsert profile", err)
	}

	if s.embedder != nil && req.Bio != nil && *req.Bio != "" {
		vec, err := s.embedder.Embed(ctx, *req.Bio)
		if err != nil {
			s.logger.Warn("profile upsert: bio embedding failed, keeping previous vector",
				"user_id", userID, "error", err)
		} else if err := s.profiles.UpdateEmbedding(ctx, userID, vecmath.Normalized(vec)); err != nil {
			return nil, apperrors.NewStorageError("store profile embedding", err)
		}
	}

	stored, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.NewStorageError("load profile", err)
	}

	s.logger.Info("profile upserted", "user_id", userID, "matchable", len(stored.Embedding) > 0)

	return stored, nil
}

// GetProfile returns the stored profile for a user.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user_id", "user_id is required")
	}

	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, apperrors.NewNotFoundError("profile",
				fmt.Sprintf("profile %s not found", userID))
		}

		return nil, apperrors.NewStorageError("get profile", err)
	}

	return profile, nil
}
