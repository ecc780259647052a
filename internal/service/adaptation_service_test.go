package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oppmatch/engine/internal/apperrors"
	"github.com/oppmatch/engine/internal/models"
	"github.com/oppmatch/engine/internal/repository"
	"github.com/oppmatch/engine/internal/rocchio"
)

type mockProfileStore struct {
	mu         sync.Mutex
	embeddings map[string][]float32
	getErr     error
	updateErr  error
	updates    map[string][][]float32

	getHadDeadline    bool
	updateHadDeadline bool
}

func newMockProfileStore(embeddings map[string][]float32) *mockProfileStore {
	return &mockProfileStore{embeddings: embeddings, updates: map[string][][]float32{}}
}

func (m *mockProfileStore) GetEmbedding(ctx context.Context, userID string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, m.getHadDeadline = ctx.Deadline()

	if m.getErr != nil {
		return nil, m.getErr
	}

	vec, ok := m.embeddings[userID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}

	if vec == nil {
		return nil, repository.ErrProfileNotMatchable
	}

	return vec, nil
}

func (m *mockProfileStore) UpdateEmbedding(ctx context.Context, userID string, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, m.updateHadDeadline = ctx.Deadline()

	if m.updateErr != nil {
		return m.updateErr
	}

	m.updates[userID] = append(m.updates[userID], embedding)
	m.embeddings[userID] = embedding

	return nil
}

func (m *mockProfileStore) updateCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.updates[userID])
}

type mockFeedbackReader struct {
	mu      sync.Mutex
	byUser  map[string][]models.Feedback
	listErr error

	listHadDeadline bool
}

func (m *mockFeedbackReader) ListForUserSince(ctx context.Context, userID string, _ time.Time) ([]models.Feedback, error) {
	m.mu.Lock()
	_, m.listHadDeadline = ctx.Deadline()
	m.mu.Unlock()

	if m.listErr != nil {
		return nil, m.listErr
	}

	return m.byUser[userID], nil
}

func (m *mockFeedbackReader) ListUserIDsWithFeedbackSince(_ context.Context, _ time.Time, limit int) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}

	ids := make([]string, 0, len(m.byUser))
	for id := range m.byUser {
		ids = append(ids, id)
	}

	if len(ids) > limit {
		ids = ids[:limit]
	}

	return ids, nil
}

func likeFeedback(vec []float32) models.Feedback {
	return models.Feedback{
		ItemID:        "item-1",
		Polarity:      models.PolarityLike,
		Confidence:    1.0,
		ItemEmbedding: vec,
		CreatedAt:     time.Now(),
	}
}

func newTestAdaptationService(profiles *mockProfileStore, feedback *mockFeedbackReader) *AdaptationService {
	return NewAdaptationService(AdaptationServiceParams{
		Profiles: profiles,
		Feedback: feedback,
		Updater:  rocchio.NewUpdater(rocchio.UpdaterParams{}),
	})
}

func TestAdaptationService_ApplyFeedback_UpdatesProfile(t *testing.T) {
	profiles := newMockProfileStore(map[string][]float32{
		"u1": {1, 0, 0},
	})
	feedback := &mockFeedbackReader{byUser: map[string][]models.Feedback{
		"u1": {likeFeedback([]float32{0, 1, 0})},
	}}
	svc := newTestAdaptationService(profiles, feedback)

	if err := svc.ApplyFeedback(context.Background(), "u1"); err != nil {
		t.Fatalf("ApplyFeedback: %v", err)
	}

	if profiles.updateCount("u1") != 1 {
		t.Fatalf("expected 1 profile update, got %d", profiles.updateCount("u1"))
	}

	updated := profiles.embeddings["u1"]
	if len(updated) != 3 {
		t.Fatalf("updated embedding has dim %d, want 3", len(updated))
	}

	// Pulled toward the liked item: the second component must have grown.
	if updated[1] <= 0 {
		t.Errorf("expected positive pull toward liked item, got %v", updated)
	}
}

func TestAdaptationService_ApplyFeedback_MissingProfileIsNoOp(t *testing.T) {
	profiles := newMockProfileStore(map[string][]float32{})
	feedback := &mockFeedbackReader{byUser: map[string][]models.Feedback{
		"u1": {likeFeedback([]float32{0, 1, 0})},
	}}
	svc := newTestAdaptationService(profiles, feedback)

	if err := svc.ApplyFeedback(context.Background(), "u1"); err != nil {
		t.Fatalf("missing profile should be a no-op, got %v", err)
	}

	if profiles.updateCount("u1") != 0 {
		t.Error("missing profile must not be written")
	}
}

func TestAdaptationService_ApplyFeedback_UnembeddedProfileIsNoOp(t *testing.T) {
	profiles := newMockProfileStore(map[string][]float32{"u1": nil})
	feedback := &mockFeedbackReader{byUser: map[string][]models.Feedback{
		"u1": {likeFeedback([]float32{0, 1, 0})},
	}}
	svc := newTestAdaptationService(profiles, feedback)

	if err := svc.ApplyFeedback(context.Background(), "u1"); err != nil {
		t.Fatalf("profile without embedding should be a no-op, got %v", err)
	}

	if profiles.updateCount("u1") != 0 {
		t.Error("profile without embedding must not be written")
	}
}

func TestAdaptationService_ApplyFeedback_NoQualifyingFeedbackIsNoOp(t *testing.T) {
	profiles := newMockProfileStore(map[string][]float32{"u1": {1, 0, 0}})
	feedback := &mockFeedbackReader{byUser: map[string][]models.Feedback{
		"u1": {
			// Neutral and snapshot-less rows never qualify.
			{Polarity: models.PolarityNeutral, Confidence: 0.5, ItemEmbedding: []float32{0, 1, 0}},
			{Polarity: models.PolarityLike, Confidence: 1.0, ItemEmbedding: nil},
		},
	}}
	svc := newTestAdaptationService(profiles, feedback)

	if err := svc.ApplyFeedback(context.Background(), "u1"); err != nil {
		t.Fatalf("ApplyFeedback: %v", err)
	}

	if profiles.updateCount("u1") != 0 {
		t.Error("no qualifying feedback must leave the profile untouched")
	}
}

func TestAdaptationService_ApplyFeedback_UpdaterFailurePreservesProfile(t *testing.T) {
	base := []float32{1, 0, 0}
	profiles := newMockProfileStore(map[string][]float32{"u1": base})
	feedback := &mockFeedbackReader{byUser: map[string][]models.Feedback{
		// Wrong dimension: the update must fail closed.
		"u1": {likeFeedback([]float32{0, 1})},
	}}
	svc := newTestAdaptationService(profiles, feedback)

	err := svc.ApplyFeedback(context.Background(), "u1")
	if !errors.Is(err, apperrors.ErrAdaptation) {
		t.Fatalf("expected ErrAdaptation, got %v", err)
	}

	if profiles.updateCount("u1") != 0 {
		t.Error("a failed round must not write the profile")
	}
}

func TestAdaptationService_ApplyFeedback_StorageErrorPropagates(t *testing.T) {
	profiles := newMockProfileStore(map[string][]float32{"u1": {1, 0, 0}})
	profiles.getErr = errors.New("connection refused")
	svc := newTestAdaptationService(profiles, &mockFeedbackReader{})

	err := svc.ApplyFeedback(context.Background(), "u1")
	if !errors.Is(err, apperrors.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestAdaptationService_BatchApplyFeedback_PartialFailures(t *testing.T) {
	embeddings := map[string][]float32{
		"u1": {1, 0, 0}, "u2": {0, 1, 0}, "u3": {0, 0, 1}, "u4": {1, 0, 0}, "u5": {0, 1, 0},
	}
	byUser := map[string][]models.Feedback{
		"u1": {likeFeedback([]float32{0, 1, 0})},
		"u2": {likeFeedback([]float32{0, 0, 1})},
		// u3's snapshot has the wrong dimension; only u3 may fail.
		"u3": {likeFeedback([]float32{1, 2})},
		"u4": {likeFeedback([]float32{0, 1, 0})},
		"u5": {likeFeedback([]float32{1, 0, 0})},
	}
	profiles := newMockProfileStore(embeddings)
	svc := newTestAdaptationService(profiles, &mockFeedbackReader{byUser: byUser})

	outcome, err := svc.BatchApplyFeedback(context.Background(), 100)
	if err != nil {
		t.Fatalf("BatchApplyFeedback: %v", err)
	}

	if outcome.Total != 5 {
		t.Errorf("Total = %d, want 5", outcome.Total)
	}

	if outcome.Updated != 4 {
		t.Errorf("Updated = %d, want 4", outcome.Updated)
	}

	if outcome.Failed != 1 {
		t.Errorf("Failed = %d, want 1", outcome.Failed)
	}

	if profiles.updateCount("u3") != 0 {
		t.Error("failed user's profile must remain untouched")
	}
}

func TestAdaptationService_BatchApplyFeedback_CapsUsers(t *testing.T) {
	embeddings := map[string][]float32{}
	byUser := map[string][]models.Feedback{}

	for _, id := range []string{"a", "b", "c"} {
		embeddings[id] = []float32{1, 0}
		byUser[id] = []models.Feedback{likeFeedback([]float32{0, 1})}
	}

	profiles := newMockProfileStore(embeddings)
	svc := newTestAdaptationService(profiles, &mockFeedbackReader{byUser: byUser})

	outcome, err := svc.BatchApplyFeedback(context.Background(), 2)
	if err != nil {
		t.Fatalf("BatchApplyFeedback: %v", err)
	}

	if outcome.Total != 2 {
		t.Errorf("Total = %d, want max_users cap of 2", outcome.Total)
	}
}

func TestAdaptationService_ApplyFeedback_BoundsStorageCalls(t *testing.T) {
	profiles := newMockProfileStore(map[string][]float32{"u1": {1, 0, 0}})
	feedback := &mockFeedbackReader{byUser: map[string][]models.Feedback{
		"u1": {likeFeedback([]float32{0, 1, 0})},
	}}
	svc := newTestAdaptationService(profiles, feedback)

	// The caller's context has no deadline; every storage call must still
	// run under its own bounded one.
	if err := svc.ApplyFeedback(context.Background(), "u1"); err != nil {
		t.Fatalf("ApplyFeedback: %v", err)
	}

	if !profiles.getHadDeadline {
		t.Error("profile read ran without a deadline")
	}

	if !feedback.listHadDeadline {
		t.Error("feedback read ran without a deadline")
	}

	if !profiles.updateHadDeadline {
		t.Error("embedding write ran without a deadline")
	}
}

func TestAdaptationService_ApplyFeedback_SerializedPerUser(t *testing.T) {
	profiles := newMockProfileStore(map[string][]float32{"u1": {1, 0, 0}})
	feedback := &mockFeedbackReader{byUser: map[string][]models.Feedback{
		"u1": {likeFeedback([]float32{0, 1, 0})},
	}}
	svc := newTestAdaptationService(profiles, feedback)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := svc.ApplyFeedback(context.Background(), "u1"); err != nil {
				t.Errorf("ApplyFeedback: %v", err)
			}
		}()
	}
	wg.Wait()

	// Every round ran; the per-user lock only guarantees they did not
	// interleave, so each read a consistent base vector.
	if got := profiles.updateCount("u1"); got != 8 {
		t.Errorf("expected 8 serialized updates, got %d", got)
	}
}
