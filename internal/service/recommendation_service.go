// Package service implements the business logic of the engine:
// recommendations, feedback recording, and profile adaptation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oppmatch/engine/internal/apperrors"
	"github.com/oppmatch/engine/internal/models"
	"github.com/oppmatch/engine/internal/repository"
	"github.com/oppmatch/engine/internal/vecindex"
	"github.com/oppmatch/engine/pkg/cache"
)

// DefaultTopK is the number of recommendations returned when the request
// does not ask for a specific count.
const DefaultTopK = 10

// MaxTopK caps the number of recommendations per request.
const MaxTopK = 100

const defaultSearchTimeout = 5 * time.Second

// ProfileEmbeddingReader reads a user's profile embedding.
type ProfileEmbeddingReader interface {
	GetEmbedding(ctx context.Context, userID string) ([]float32, error)
}

// OpportunityReader reads opportunity metadata for filtering and hydration.
type OpportunityReader interface {
	GetByID(ctx context.Context, id string) (*models.Opportunity, error)
}

// Searcher runs a filtered nearest-neighbor search over the live index.
type Searcher interface {
	Search(ctx context.Context, query []float32, topK int, filter func(itemID string) bool) ([]vecindex.Result, error)
}

// RecommendationService matches a user's profile embedding against the
// opportunity index and hydrates the hits with metadata.
type RecommendationService struct {
	profiles      ProfileEmbeddingReader
	opportunities OpportunityReader
	searcher      Searcher
	metaCache     *cache.LoaderCache[*models.Opportunity]
	searchTimeout time.Duration
	logger        *slog.Logger
}

// RecommendationServiceParams configures a RecommendationService.
type RecommendationServiceParams struct {
	Profiles      ProfileEmbeddingReader
	Opportunities OpportunityReader
	Searcher      Searcher
	// MetaCacheSize bounds the opportunity metadata cache. Zero uses a
	// reasonable default.
	MetaCacheSize int
	// SearchTimeout bounds one index search. Zero uses the default.
	SearchTimeout time.Duration
	Logger        *slog.Logger
}

// NewRecommendationService creates a RecommendationService.
func NewRecommendationService(p RecommendationServiceParams) (*RecommendationService, error) {
	size := p.MetaCacheSize
	if size <= 0 {
		size = 4096
	}

	metaCache, err := cache.NewLoaderCache[*models.Opportunity](size)
	if err != nil {
		return nil, fmt.Errorf("create metadata cache: %w", err)
	}

	timeout := p.SearchTimeout
	if timeout <= 0 {
		timeout = defaultSearchTimeout
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RecommendationService{
		profiles:      p.Profiles,
		opportunities: p.Opportunities,
		searcher:      p.Searcher,
		metaCache:     metaCache,
		searchTimeout: timeout,
		logger:        logger,
	}, nil
}

// Recommend returns the top-K opportunities for the user, filtered by the
// request's metadata filters and ordered by descending similarity.
//
// Invalid requests are rejected with a ValidationError. Everything past
// validation fails soft: a user without a usable profile, a search timeout,
// or a search failure all degrade to an empty result list with the cause
// logged, so a recommendation request never surfaces an exception to an end
// user.
func (s *RecommendationService) Recommend(ctx context.Context, req *models.RecommendRequest) (*models.RecommendResponse, error) {
	if req.UserID == "" {
		return nil, apperrors.NewValidationError("user_id", "user_id is required")
	}

	if req.TopK == 0 {
		req.TopK = DefaultTopK
	}

	if req.TopK < 0 {
		return nil, apperrors.NewValidationError("top_k", "top_k must be a positive integer")
	}

	if req.TopK > MaxTopK {
		req.TopK = MaxTopK
	}

	if !req.Filters.LocationScope.Valid() {
		return nil, apperrors.NewValidationError("location_scope",
			fmt.Sprintf("unknown location scope %q", req.Filters.LocationScope))
	}

	profileVec, err := s.profiles.GetEmbedding(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) || errors.Is(err, repository.ErrProfileNotMatchable) {
			s.logger.Info("recommend: user not matchable yet", "user_id", req.UserID, "reason", err)

			return &models.RecommendResponse{Results: []models.Recommendation{}}, nil
		}

		return nil, fmt.Errorf("load profile embedding: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.searchTimeout)
	defer cancel()

	hits, err := s.searcher.Search(searchCtx, profileVec, req.TopK, s.indexFilter(searchCtx, &req.Filters))
	if err != nil {
		s.logger.Error("recommend: search failed, returning no results",
			"user_id", req.UserID, "error", err)

		return &models.RecommendResponse{Results: []models.Recommendation{}}, nil
	}

	results := make([]models.Recommendation, 0, len(hits))

	for _, hit := range hits {
		opp, err := s.lookup(ctx, hit.ItemID)
		if err != nil {
			// Item vanished between index build and hydration. Skip it.
			s.logger.Warn("recommend: dropping hit without metadata",
				"item_id", hit.ItemID, "error", err)

			continue
		}

		results = append(results, models.Recommendation{Opportunity: *opp, Score: hit.Score})
	}

	return &models.RecommendResponse{Results: results, Count: len(results)}, nil
}

// indexFilter adapts the request's metadata filters into the id-level
// predicate the index walks candidates with. Candidates whose metadata
// cannot be loaded are rejected rather than passed through unchecked.
func (s *RecommendationService) indexFilter(ctx context.Context, filters *models.RecommendFilters) func(itemID string) bool {
	pred := buildFilter(filters)
	if pred == nil {
		return nil
	}

	return func(itemID string) bool {
		opp, err := s.lookup(ctx, itemID)
		if err != nil {
			s.logger.Warn("recommend: filter could not load candidate metadata",
				"item_id", itemID, "error", err)

			return false
		}

		return pred(opp)
	}
}

func (s *RecommendationService) lookup(ctx context.Context, itemID string) (*models.Opportunity, error) {
	return s.metaCache.Get(ctx, itemID, func(ctx context.Context, id string) (*models.Opportunity, error) {
		return s.opportunities.GetByID(ctx, id)
	})
}

// PurgeMetadata empties the metadata cache. Called after an index rebuild so
// filtering and hydration see the refreshed corpus instead of stale rows.
func (s *RecommendationService) PurgeMetadata() {
	s.metaCache.Purge()
}
