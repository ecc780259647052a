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

// FeedbackRecorder defines the interface for feedback recording logic.
type FeedbackRecorder interface {
	RecordFeedback(ctx context.Context, req *models.RecordFeedbackRequest) (*models.Feedback, error)
}

// FeedbackHandler handles HTTP requests for feedback events.
type FeedbackHandler struct {
	service FeedbackRecorder
}

// NewFeedbackHandler creates a new feedback handler.
func NewFeedbackHandler(service FeedbackRecorder) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

// Record handles POST /v1/feedback.
func (h *FeedbackHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req models.RecordFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	fb, err := h.service.RecordFeedback(r.Context(), &req)
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			response.RespondBadRequest(w, err.Error())
			return
		}
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusCreated, fb)
}
