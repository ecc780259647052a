package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/oppmatch/engine/internal/api/response"
	"github.com/oppmatch/engine/internal/models"
	"github.com/oppmatch/engine/internal/rocchio"
)

// ConfidenceResponse carries an estimated confidence weight.
type ConfidenceResponse struct {
	Confidence float64 `json:"confidence"`
}

// ConfidenceHandler exposes confidence estimation for engagement snapshots,
// useful for tuning and for clients that want to preview a weight before
// recording feedback.
type ConfidenceHandler struct{}

// NewConfidenceHandler creates a new confidence handler.
func NewConfidenceHandler() *ConfidenceHandler {
	return &ConfidenceHandler{}
}

// Estimate handles POST /v1/confidence/estimate.
func (h *ConfidenceHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	var snap models.EngagementSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	response.RespondJSON(w, http.StatusOK, ConfidenceResponse{
		Confidence: rocchio.EstimateConfidence(snap),
	})
}
