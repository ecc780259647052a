package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oppmatch/engine/internal/apperrors"
	"github.com/oppmatch/engine/internal/models"
)

type mockProfileAdapter struct {
	applyFunc func(ctx context.Context, userID string) error
	batchFunc func(ctx context.Context, maxUsers int) (*models.AdaptOutcome, error)
}

func (m *mockProfileAdapter) ApplyFeedback(ctx context.Context, userID string) error {
	if m.applyFunc != nil {
		return m.applyFunc(ctx, userID)
	}

	return nil
}

func (m *mockProfileAdapter) BatchApplyFeedback(ctx context.Context, maxUsers int) (*models.AdaptOutcome, error) {
	if m.batchFunc != nil {
		return m.batchFunc(ctx, maxUsers)
	}

	return &models.AdaptOutcome{}, nil
}

type mockProfileManager struct {
	upsertFunc func(ctx context.Context, userID string, req *models.UpsertProfileRequest) (*models.UserProfile, error)
	getFunc    func(ctx context.Context, userID string) (*models.UserProfile, error)
}

func (m *mockProfileManager) UpsertProfile(ctx context.Context, userID string, req *models.UpsertProfileRequest) (*models.UserProfile, error) {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, userID, req)
	}

	return &models.UserProfile{UserID: userID}, nil
}

func (m *mockProfileManager) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, userID)
	}

	return &models.UserProfile{UserID: userID}, nil
}

func newProfilesRouter(handler *ProfilesHandler) http.Handler {
	r := chi.NewRouter()
	r.Put("/v1/profiles/{user_id}", handler.Upsert)
	r.Get("/v1/profiles/{user_id}", handler.Get)
	r.Post("/v1/profiles/{user_id}/adapt", handler.Adapt)
	r.Post("/v1/profiles/adapt", handler.BatchAdapt)

	return r
}

func TestProfilesHandler_Adapt(t *testing.T) {
	t.Run("success returns 200", func(t *testing.T) {
		var gotUserID string

		mock := &mockProfileAdapter{
			applyFunc: func(_ context.Context, userID string) error {
				gotUserID = userID

				return nil
			},
		}
		router := newProfilesRouter(NewProfilesHandler(mock, &mockProfileManager{}))
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/profiles/u1/adapt", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", gotUserID)
	})

	t.Run("adaptation failure returns 422", func(t *testing.T) {
		mock := &mockProfileAdapter{
			applyFunc: func(_ context.Context, _ string) error {
				return apperrors.NewAdaptationError("feedback vector dimension mismatch", nil)
			},
		}
		router := newProfilesRouter(NewProfilesHandler(mock, &mockProfileManager{}))
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/profiles/u1/adapt", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestProfilesHandler_BatchAdapt(t *testing.T) {
	t.Run("returns outcome counts", func(t *testing.T) {
		mock := &mockProfileAdapter{
			batchFunc: func(_ context.Context, maxUsers int) (*models.AdaptOutcome, error) {
				require.Equal(t, 50, maxUsers)

				return &models.AdaptOutcome{Total: 5, Updated: 4, Failed: 1}, nil
			},
		}
		router := newProfilesRouter(NewProfilesHandler(mock, &mockProfileManager{}))
		body := []byte(`{"max_users":50}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/profiles/adapt", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var outcome models.AdaptOutcome
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
		assert.Equal(t, 4, outcome.Updated)
		assert.Equal(t, 1, outcome.Failed)
	})

	t.Run("empty body uses defaults", func(t *testing.T) {
		mock := &mockProfileAdapter{
			batchFunc: func(_ context.Context, maxUsers int) (*models.AdaptOutcome, error) {
				assert.Equal(t, 0, maxUsers)

				return &models.AdaptOutcome{}, nil
			},
		}
		router := newProfilesRouter(NewProfilesHandler(mock, &mockProfileManager{}))
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/profiles/adapt", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestProfilesHandler_Upsert(t *testing.T) {
	t.Run("returns stored profile", func(t *testing.T) {
		bio := "robotics and open source"
		mock := &mockProfileManager{
			upsertFunc: func(_ context.Context, userID string, req *models.UpsertProfileRequest) (*models.UserProfile, error) {
				require.Equal(t, "u1", userID)
				require.NotNil(t, req.Bio)

				return &models.UserProfile{UserID: userID, Bio: req.Bio}, nil
			},
		}
		router := newProfilesRouter(NewProfilesHandler(&mockProfileAdapter{}, mock))
		body := []byte(`{"bio":"` + bio + `"}`)
		req := httptest.NewRequest(http.MethodPut, "http://test/v1/profiles/u1", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var profile models.UserProfile
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
		assert.Equal(t, "u1", profile.UserID)
	})

	t.Run("invalid body returns 400", func(t *testing.T) {
		router := newProfilesRouter(NewProfilesHandler(&mockProfileAdapter{}, &mockProfileManager{}))
		req := httptest.NewRequest(http.MethodPut, "http://test/v1/profiles/u1", bytes.NewReader([]byte(`{`)))
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestProfilesHandler_Get(t *testing.T) {
	t.Run("unknown profile returns 404", func(t *testing.T) {
		mock := &mockProfileManager{
			getFunc: func(_ context.Context, userID string) (*models.UserProfile, error) {
				return nil, apperrors.NewNotFoundError("profile", "profile "+userID+" not found")
			},
		}
		router := newProfilesRouter(NewProfilesHandler(&mockProfileAdapter{}, mock))
		req := httptest.NewRequest(http.MethodGet, "http://test/v1/profiles/nobody", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("returns profile", func(t *testing.T) {
		router := newProfilesRouter(NewProfilesHandler(&mockProfileAdapter{}, &mockProfileManager{}))
		req := httptest.NewRequest(http.MethodGet, "http://test/v1/profiles/u1", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var profile models.UserProfile
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
		assert.Equal(t, "u1", profile.UserID)
	})
}
