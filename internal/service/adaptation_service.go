package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oppmatch/engine/internal/apperrors"
	"github.com/oppmatch/engine/internal/models"
	"github.com/oppmatch/engine/internal/repository"
	"github.com/oppmatch/engine/internal/rocchio"
)

// Adaptation defaults. The window bounds how far back qualifying feedback is
// gathered; the user cap bounds one batch run.
const (
	DefaultAdaptWindow   = 30 * 24 * time.Hour
	DefaultAdaptMaxUsers = 100
	MaxAdaptUsers        = 100
)

const (
	defaultBatchConcurrency = 8
	defaultReadTimeout      = 5 * time.Second
	defaultPersistTimeout   = 5 * time.Second
)

// ProfileEmbeddingStore reads and writes profile embeddings.
type ProfileEmbeddingStore interface {
	GetEmbedding(ctx context.Context, userID string) ([]float32, error)
	UpdateEmbedding(ctx context.Context, userID string, embedding []float32) error
}

// FeedbackReader lists recorded feedback for adaptation.
type FeedbackReader interface {
	ListForUserSince(ctx context.Context, userID string, since time.Time) ([]models.Feedback, error)
	ListUserIDsWithFeedbackSince(ctx context.Context, since time.Time, limit int) ([]string, error)
}

// ProfileUpdater computes the adapted embedding from base plus feedback.
type ProfileUpdater interface {
	UpdateEmbedding(base []float32, feedback []rocchio.FeedbackVector) ([]float32, error)
}

// AdaptationService orchestrates profile adaptation: it gathers a user's
// recent feedback, runs the relevance-feedback update, and persists the new
// embedding. A failed round always leaves the stored vector untouched; the
// feedback rows remain, so learning is deferred, not lost.
type AdaptationService struct {
	profiles       ProfileEmbeddingStore
	feedback       FeedbackReader
	updater        ProfileUpdater
	window         time.Duration
	concurrency    int
	readTimeout    time.Duration
	persistTimeout time.Duration
	logger         *slog.Logger

	// userLocks serializes adaptation per user so concurrent rounds cannot
	// interleave a read-modify-write. Different users proceed in parallel.
	userLocks sync.Map // userID -> *sync.Mutex
}

// AdaptationServiceParams configures an AdaptationService.
type AdaptationServiceParams struct {
	Profiles ProfileEmbeddingStore
	Feedback FeedbackReader
	Updater  ProfileUpdater
	// Window bounds how far back qualifying feedback is gathered.
	// Zero uses DefaultAdaptWindow.
	Window time.Duration
	// BatchConcurrency bounds how many users adapt in parallel in one batch.
	BatchConcurrency int
	// ReadTimeout and PersistTimeout independently bound each storage read
	// and the embedding write. Zero uses the defaults.
	ReadTimeout    time.Duration
	PersistTimeout time.Duration
	Logger         *slog.Logger
}

// NewAdaptationService creates an AdaptationService.
func NewAdaptationService(p AdaptationServiceParams) *AdaptationService {
	window := p.Window
	if window <= 0 {
		window = DefaultAdaptWindow
	}

	concurrency := p.BatchConcurrency
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}

	readTimeout := p.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}

	persistTimeout := p.PersistTimeout
	if persistTimeout <= 0 {
		persistTimeout = defaultPersistTimeout
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AdaptationService{
		profiles:       p.Profiles,
		feedback:       p.Feedback,
		updater:        p.Updater,
		window:         window,
		concurrency:    concurrency,
		readTimeout:    readTimeout,
		persistTimeout: persistTimeout,
		logger:         logger,
	}
}

// ApplyFeedback adapts one user's profile embedding from their feedback
// within the service window.
//
// A user without an established profile embedding is a no-op: there is
// nothing to adapt, and onboarding owns creating the first vector. A user
// with no qualifying feedback in the window is likewise a no-op. Update
// computation failures preserve the prior vector and return the error.
func (s *AdaptationService) ApplyFeedback(ctx context.Context, userID string) error {
	if userID == "" {
		return apperrors.NewValidationError("user_id", "user_id is required")
	}

	lock := s.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	base, err := s.getEmbedding(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) || errors.Is(err, repository.ErrProfileNotMatchable) {
			s.logger.Info("adaptation skipped: no profile embedding to adapt", "user_id", userID)

			return nil
		}

		return apperrors.NewStorageError("load profile embedding", err)
	}

	since := time.Now().Add(-s.window)

	records, err := s.listFeedback(ctx, userID, since)
	if err != nil {
		return apperrors.NewStorageError("list feedback", err)
	}

	vectors := feedbackVectors(records)
	if len(vectors) == 0 {
		s.logger.Debug("adaptation skipped: no qualifying feedback in window",
			"user_id", userID, "window", s.window)

		return nil
	}

	updated, err := s.updater.UpdateEmbedding(base, vectors)
	if err != nil {
		// Fail closed: the stored vector stays as it was.
		s.logger.Error("adaptation failed, preserving prior embedding",
			"user_id", userID, "feedback_count", len(vectors), "error", err)

		return fmt.Errorf("adapt profile for user %s: %w", userID, err)
	}

	persistCtx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()

	if err := s.profiles.UpdateEmbedding(persistCtx, userID, updated); err != nil {
		return apperrors.NewStorageError("persist profile embedding", err)
	}

	s.logger.Info("profile adapted", "user_id", userID, "feedback_count", len(vectors))

	return nil
}

// BatchApplyFeedback adapts up to maxUsers distinct users who recorded any
// feedback within the service window. Users adapt concurrently with bounded
// parallelism; one user's failure is logged and counted, never aborting
// sibling updates.
func (s *AdaptationService) BatchApplyFeedback(ctx context.Context, maxUsers int) (*models.AdaptOutcome, error) {
	if maxUsers <= 0 {
		maxUsers = DefaultAdaptMaxUsers
	}

	if maxUsers > MaxAdaptUsers {
		maxUsers = MaxAdaptUsers
	}

	since := time.Now().Add(-s.window)

	userIDs, err := s.feedback.ListUserIDsWithFeedbackSince(ctx, since, maxUsers)
	if err != nil {
		return nil, apperrors.NewStorageError("list users with feedback", err)
	}

	var updated, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, userID := range userIDs {
		userID := userID
		g.Go(func() error {
			if err := s.ApplyFeedback(gctx, userID); err != nil {
				failed.Add(1)
				s.logger.Error("batch adaptation: user failed", "user_id", userID, "error", err)

				return nil
			}

			updated.Add(1)

			return nil
		})
	}

	// Workers swallow per-user errors, so Wait only reflects cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	outcome := &models.AdaptOutcome{
		Total:   len(userIDs),
		Updated: int(updated.Load()),
		Failed:  int(failed.Load()),
	}

	s.logger.Info("batch adaptation finished",
		"total", outcome.Total, "updated", outcome.Updated, "failed", outcome.Failed)

	return outcome, nil
}

// Window returns the adaptation window.
func (s *AdaptationService) Window() time.Duration {
	return s.window
}

// getEmbedding and listFeedback bound each storage read with the read
// timeout so a slow database cannot hold a user's lock indefinitely.
func (s *AdaptationService) getEmbedding(ctx context.Context, userID string) ([]float32, error) {
	readCtx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	return s.profiles.GetEmbedding(readCtx, userID)
}

func (s *AdaptationService) listFeedback(ctx context.Context, userID string, since time.Time) ([]models.Feedback, error) {
	readCtx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	return s.feedback.ListForUserSince(readCtx, userID, since)
}

func (s *AdaptationService) lockFor(userID string) *sync.Mutex {
	actual, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})

	return actual.(*sync.Mutex)
}

// feedbackVectors converts stored feedback rows into updater inputs,
// dropping neutral records and rows without an embedding snapshot.
func feedbackVectors(records []models.Feedback) []rocchio.FeedbackVector {
	out := make([]rocchio.FeedbackVector, 0, len(records))

	for _, rec := range records {
		if rec.Polarity == models.PolarityNeutral || len(rec.ItemEmbedding) == 0 {
			continue
		}

		out = append(out, rocchio.FeedbackVector{
			Embedding:  rec.ItemEmbedding,
			Confidence: rec.Confidence,
			Polarity:   rec.Polarity,
		})
	}

	return out
}
