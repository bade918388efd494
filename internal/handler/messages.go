package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/stridefit-ai/coaching-engine/internal/middleware"
	"github.com/stridefit-ai/coaching-engine/internal/model"
	"github.com/stridefit-ai/coaching-engine/internal/orchestrator"
	"github.com/stridefit-ai/coaching-engine/internal/retry"
	"github.com/stridefit-ai/coaching-engine/internal/service"
	"github.com/stridefit-ai/coaching-engine/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	chatService *service.ChatService
	logger      *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(chatSvc *service.ChatService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		chatService: chatSvc,
		logger:      log,
	}
}

// List handles GET /api/v1/conversations/:id/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.chatService.ListMessages(ctx, userID, conversationID)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Send handles POST /api/v1/conversations/:id/messages
//
// The full turn loop runs to completion before the response is
// written; streaming consumers use the SSE endpoint instead.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.chatService.Send(ctx, userID, conversationID, &req, orchestrator.TurnOptions{})
	if err != nil {
		if errors.Is(err, retry.ErrQueuedOffline) {
			// The message is queued and will send on reconnect.
			writeJSON(w, http.StatusAccepted, resp)
			return
		}
		h.logger.Warn("send failed", zap.Error(err))
		if resp != nil && resp.UserMessage != nil {
			// Partial result: the user message is in history with its
			// terminal send status; surface both it and the error.
			writeJSON(w, errorStatus(err), resp)
			return
		}
		writeError(w, errorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Retry handles POST /api/v1/conversations/:id/messages/:messageID/retry
func (h *MessageHandler) Retry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "id")
	messageID := chi.URLParam(r, "messageID")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateMessageID(messageID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.chatService.Retry(ctx, userID, conversationID, messageID, orchestrator.TurnOptions{})
	if err != nil {
		if errors.Is(err, retry.ErrQueuedOffline) {
			writeJSON(w, http.StatusAccepted, resp)
			return
		}
		h.logger.Warn("manual retry failed", zap.Error(err))
		writeError(w, errorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
