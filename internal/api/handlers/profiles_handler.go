package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oppmatch/engine/internal/api/response"
	"github.com/oppmatch/engine/internal/apperrors"
	"github.com/oppmatch/engine/internal/models"
)

// ProfileAdapter defines the interface for profile adaptation logic.
type ProfileAdapter interface {
	ApplyFeedback(ctx context.Context, userID string) error
	BatchApplyFeedback(ctx context.Context, maxUsers int) (*models.AdaptOutcome, error)
}

// ProfileManager defines the interface for profile onboarding and reads.
type ProfileManager interface {
	UpsertProfile(ctx context.Context, userID string, req *models.UpsertProfileRequest) (*models.UserProfile, error)
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
}

// BatchAdaptRequest is the payload for a batch adaptation run. MaxUsers is
// optional; zero means the configured default.
type BatchAdaptRequest struct {
	MaxUsers int `json:"max_users"`
}

// ProfilesHandler handles HTTP requests for profiles and their adaptation.
type ProfilesHandler struct {
	service  ProfileAdapter
	profiles ProfileManager
}

// NewProfilesHandler creates a new profiles handler.
func NewProfilesHandler(service ProfileAdapter, profiles ProfileManager) *ProfilesHandler {
	return &ProfilesHandler{service: service, profiles: profiles}
}

// Upsert handles PUT /v1/profiles/{user_id}.
func (h *ProfilesHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID == "" {
		response.RespondBadRequest(w, "user_id is required")
		return
	}

	var req models.UpsertProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	profile, err := h.profiles.UpsertProfile(r.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			response.RespondBadRequest(w, err.Error())
			return
		}
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, profile)
}

// Get handles GET /v1/profiles/{user_id}.
func (h *ProfilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID == "" {
		response.RespondBadRequest(w, "user_id is required")
		return
	}

	profile, err := h.profiles.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.RespondNotFound(w, err.Error())
			return
		}
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, profile)
}

// Adapt handles POST /v1/profiles/{user_id}/adapt.
func (h *ProfilesHandler) Adapt(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID == "" {
		response.RespondBadRequest(w, "user_id is required")
		return
	}

	if err := h.service.ApplyFeedback(r.Context(), userID); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrValidation):
			response.RespondBadRequest(w, err.Error())
		case errors.Is(err, apperrors.ErrAdaptation):
			// The stored profile is unchanged; the feedback will be retried
			// on a later round.
			response.RespondError(w, http.StatusUnprocessableEntity, "Adaptation Failed", err.Error())
		default:
			response.RespondInternalServerError(w, "An unexpected error occurred")
		}
		return
	}

	response.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// BatchAdapt handles POST /v1/profiles/adapt.
func (h *ProfilesHandler) BatchAdapt(w http.ResponseWriter, r *http.Request) {
	var req BatchAdaptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	outcome, err := h.service.BatchApplyFeedback(r.Context(), req.MaxUsers)
	if err != nil {
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, outcome)
}
