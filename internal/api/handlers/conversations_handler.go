package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/oppmatch/engine/internal/api/response"
	"github.com/oppmatch/engine/internal/apperrors"
	"github.com/oppmatch/engine/internal/models"
)

// ConversationManager defines the interface for conversation lifecycle logic.
type ConversationManager interface {
	Start(ctx context.Context, req *models.StartConversationRequest) (*models.Conversation, error)
	AppendMessage(ctx context.Context, id int64, req *models.AppendMessageRequest) error
	Finish(ctx context.Context, id int64) (*models.Conversation, error)
}

// ConversationsHandler handles HTTP requests for conversations.
type ConversationsHandler struct {
	service ConversationManager
}

// NewConversationsHandler creates a new conversations handler.
func NewConversationsHandler(service ConversationManager) *ConversationsHandler {
	return &ConversationsHandler{service: service}
}

// Start handles POST /v1/conversations.
func (h *ConversationsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req models.StartConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	conv, err := h.service.Start(r.Context(), &req)
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			response.RespondBadRequest(w, err.Error())
			return
		}
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusCreated, conv)
}

// Append handles POST /v1/conversations/{conversation_id}/messages.
func (h *ConversationsHandler) Append(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}

	var req models.AppendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	if err := h.service.AppendMessage(r.Context(), id, &req); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrValidation):
			response.RespondBadRequest(w, err.Error())
		case errors.Is(err, apperrors.ErrNotFound):
			response.RespondNotFound(w, err.Error())
		default:
			response.RespondInternalServerError(w, "An unexpected error occurred")
		}
		return
	}

	response.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Finish handles POST /v1/conversations/{conversation_id}/finish.
func (h *ConversationsHandler) Finish(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}

	conv, err := h.service.Finish(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.RespondNotFound(w, err.Error())
			return
		}
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, conv)
}

func conversationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "conversation_id"), 10, 64)
	if err != nil {
		response.RespondBadRequest(w, "conversation_id must be an integer")
		return 0, false
	}

	return id, true
}
