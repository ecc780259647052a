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

type mockConversationManager struct {
	startFunc  func(ctx context.Context, req *models.StartConversationRequest) (*models.Conversation, error)
	appendFunc func(ctx context.Context, id int64, req *models.AppendMessageRequest) error
	finishFunc func(ctx context.Context, id int64) (*models.Conversation, error)
}

func (m *mockConversationManager) Start(ctx context.Context, req *models.StartConversationRequest) (*models.Conversation, error) {
	if m.startFunc != nil {
		return m.startFunc(ctx, req)
	}

	return &models.Conversation{ID: 1}, nil
}

func (m *mockConversationManager) AppendMessage(ctx context.Context, id int64, req *models.AppendMessageRequest) error {
	if m.appendFunc != nil {
		return m.appendFunc(ctx, id, req)
	}

	return nil
}

func (m *mockConversationManager) Finish(ctx context.Context, id int64) (*models.Conversation, error) {
	if m.finishFunc != nil {
		return m.finishFunc(ctx, id)
	}

	return &models.Conversation{ID: id}, nil
}

func newConversationRouter(handler *ConversationsHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/conversations", handler.Start)
	r.Post("/v1/conversations/{conversation_id}/messages", handler.Append)
	r.Post("/v1/conversations/{conversation_id}/finish", handler.Finish)

	return r
}

func TestConversationsHandler_Start(t *testing.T) {
	t.Run("creates conversation", func(t *testing.T) {
		mock := &mockConversationManager{
			startFunc: func(_ context.Context, req *models.StartConversationRequest) (*models.Conversation, error) {
				require.Equal(t, "u1", req.UserID)

				return &models.Conversation{ID: 42, UserID: req.UserID, ItemID: req.ItemID}, nil
			},
		}
		router := newConversationRouter(NewConversationsHandler(mock))
		body := []byte(`{"user_id":"u1","item_id":"i1"}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/conversations", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)

		var conv models.Conversation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
		assert.Equal(t, int64(42), conv.ID)
	})

	t.Run("validation error returns 400", func(t *testing.T) {
		mock := &mockConversationManager{
			startFunc: func(_ context.Context, _ *models.StartConversationRequest) (*models.Conversation, error) {
				return nil, apperrors.NewValidationError("user_id", "user_id is required")
			},
		}
		router := newConversationRouter(NewConversationsHandler(mock))
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/conversations", bytes.NewReader([]byte(`{}`)))
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestConversationsHandler_Append(t *testing.T) {
	t.Run("appends to active conversation", func(t *testing.T) {
		var gotID int64

		mock := &mockConversationManager{
			appendFunc: func(_ context.Context, id int64, req *models.AppendMessageRequest) error {
				gotID = id
				require.Equal(t, "user", req.Role)

				return nil
			},
		}
		router := newConversationRouter(NewConversationsHandler(mock))
		body := []byte(`{"role":"user","content":"is it remote?","elapsed_seconds":8}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/conversations/7/messages", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(7), gotID)
	})

	t.Run("unknown conversation returns 404", func(t *testing.T) {
		mock := &mockConversationManager{
			appendFunc: func(_ context.Context, _ int64, _ *models.AppendMessageRequest) error {
				return apperrors.NewNotFoundError("conversation", "conversation 7 not found or already finished")
			},
		}
		router := newConversationRouter(NewConversationsHandler(mock))
		body := []byte(`{"role":"user","content":"hello"}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/conversations/7/messages", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("non-integer id returns 400", func(t *testing.T) {
		router := newConversationRouter(NewConversationsHandler(&mockConversationManager{}))
		body := []byte(`{"role":"user","content":"hello"}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/conversations/abc/messages", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestConversationsHandler_Finish(t *testing.T) {
	t.Run("returns closed conversation", func(t *testing.T) {
		mock := &mockConversationManager{
			finishFunc: func(_ context.Context, id int64) (*models.Conversation, error) {
				return &models.Conversation{ID: id, MessageCount: 3}, nil
			},
		}
		router := newConversationRouter(NewConversationsHandler(mock))
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/conversations/7/finish", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var conv models.Conversation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
		assert.Equal(t, 3, conv.MessageCount)
	})

	t.Run("unknown conversation returns 404", func(t *testing.T) {
		mock := &mockConversationManager{
			finishFunc: func(_ context.Context, _ int64) (*models.Conversation, error) {
				return nil, apperrors.NewNotFoundError("conversation", "conversation 99 not found")
			},
		}
		router := newConversationRouter(NewConversationsHandler(mock))
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/conversations/99/finish", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
