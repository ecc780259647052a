package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oppmatch/engine/internal/api/response"
	"github.com/oppmatch/engine/internal/apperrors"
	"github.com/oppmatch/engine/internal/models"
)

// Recommender defines the interface for recommendation business logic.
type Recommender interface {
	Recommend(ctx context.Context, req *models.RecommendRequest) (*models.RecommendResponse, error)
}

// RecommendationsHandler handles HTTP requests for recommendations.
type RecommendationsHandler struct {
	service Recommender
}

// NewRecommendationsHandler creates a new recommendations handler.
func NewRecommendationsHandler(service Recommender) *RecommendationsHandler {
	return &RecommendationsHandler{service: service}
}

// Recommend handles POST /v1/recommendations.
func (h *RecommendationsHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	resp, err := h.service.Recommend(r.Context(), &req)
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			response.RespondBadRequest(w, err.Error())
			return
		}
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, resp)
}
