package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/oppmatch/engine/internal/api/response"
	"github.com/oppmatch/engine/internal/apperrors"
)

// IndexManager defines the interface for index maintenance operations.
type IndexManager interface {
	Rebuild(ctx context.Context) error
	Stats() (count, dim int)
}

// MetadataPurger empties cached item metadata after the corpus changed.
type MetadataPurger interface {
	PurgeMetadata()
}

// IndexStatusResponse reports the live index size and dimension.
type IndexStatusResponse struct {
	Items int `json:"items"`
	Dim   int `json:"dim"`
}

// IndexHandler handles HTTP requests for index maintenance.
type IndexHandler struct {
	manager IndexManager
	purger  MetadataPurger
}

// NewIndexHandler creates a new index handler. The purger may be nil when no
// metadata cache sits in front of the corpus.
func NewIndexHandler(manager IndexManager, purger MetadataPurger) *IndexHandler {
	return &IndexHandler{manager: manager, purger: purger}
}

// Rebuild handles POST /v1/index/rebuild. A successful rebuild also purges
// cached item metadata, since the rebuild usually follows an ingest that
// changed it.
func (h *IndexHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Rebuild(r.Context()); err != nil {
		if errors.Is(err, apperrors.ErrIndexBuild) {
			response.RespondError(w, http.StatusConflict, "Index Build Failed", err.Error())
			return
		}
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	if h.purger != nil {
		h.purger.PurgeMetadata()
	}

	count, dim := h.manager.Stats()
	response.RespondJSON(w, http.StatusOK, IndexStatusResponse{Items: count, Dim: dim})
}

// Status handles GET /v1/index/status.
func (h *IndexHandler) Status(w http.ResponseWriter, _ *http.Request) {
	count, dim := h.manager.Stats()
	response.RespondJSON(w, http.StatusOK, IndexStatusResponse{Items: count, Dim: dim})
}
