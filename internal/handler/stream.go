package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/stridefit-ai/coaching-engine/internal/middleware"
	"github.com/stridefit-ai/coaching-engine/internal/model"
	"github.com/stridefit-ai/coaching-engine/internal/orchestrator"
	"github.com/stridefit-ai/coaching-engine/internal/retry"
	"github.com/stridefit-ai/coaching-engine/internal/service"
	"github.com/stridefit-ai/coaching-engine/pkg/logger"
	"github.com/stridefit-ai/coaching-engine/pkg/metrics"
)

const heartbeatInterval = 30 * time.Second

// StreamHandler handles SSE streaming endpoints.
type StreamHandler struct {
	chatService         *service.ChatService
	conversationService *service.ConversationService
	logger              *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(
	chatSvc *service.ChatService,
	convSvc *service.ConversationService,
	log *logger.Logger,
) *StreamHandler {
	return &StreamHandler{
		chatService:         chatSvc,
		conversationService: convSvc,
		logger:              log,
	}
}

// sseEvent pairs an SSE event name with its JSON payload.
type sseEvent struct {
	name string
	data interface{}
}

// Stream handles GET /api/v1/conversations/:id/stream
//
// Replays the current history, then holds the connection open with
// heartbeats so reconnecting clients can resynchronize.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := h.startSSE(w, r, conversationID)
	if !ok {
		return
	}
	defer metrics.DecrementSSEConnections()

	resp, err := h.chatService.ListMessages(ctx, userID, conversationID)
	if err != nil {
		sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
			Code:    "replay_error",
			Message: "failed to replay messages",
		})
		return
	}

	for _, msg := range resp.Messages {
		select {
		case <-ctx.Done():
			return
		default:
		}
		sendSSEEvent(w, flusher, "message", msg)
	}
	sendSSEEvent(w, flusher, "replay_complete", map[string]int{
		"message_count": len(resp.Messages),
	})

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.WithConversation(conversationID).Info("SSE client disconnected")
			return
		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: time.Now(),
			})
		}
	}
}

// StreamWithMessage handles POST /api/v1/conversations/:id/stream
//
// Accepts a message and streams the turn over SSE: coalesced delta
// snapshots as the answer streams, tool events as actions execute, and
// a final complete event carrying the finalized assistant message.
func (h *StreamHandler) StreamWithMessage(w http.ResponseWriter, r *http.Request) {
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

	flusher, ok := h.startSSE(w, r, conversationID)
	if !ok {
		return
	}
	defer metrics.DecrementSSEConnections()

	events := make(chan sseEvent, 64)

	opts := orchestrator.TurnOptions{
		OnDelta: func(ev model.DeltaEvent) {
			// Deltas carry the full accumulated snapshot, so dropping
			// one when the client lags loses nothing.
			select {
			case events <- sseEvent{name: "delta", data: ev}:
			default:
			}
		},
		OnTool: func(ev model.ToolEvent) {
			events <- sseEvent{name: "tool", data: ev}
		},
	}

	go func() {
		defer close(events)

		resp, err := h.chatService.Send(ctx, userID, conversationID, &req, opts)
		if resp != nil && resp.UserMessage != nil {
			events <- sseEvent{name: "user_message", data: resp.UserMessage}
		}

		if err != nil {
			if errors.Is(err, retry.ErrQueuedOffline) {
				events <- sseEvent{name: "queued", data: resp.UserMessage}
				return
			}
			h.logger.WithConversation(conversationID).Warn("streamed send failed", zap.Error(err))
			events <- sseEvent{name: "error", data: &model.ErrorEvent{
				Code:      "send_error",
				Message:   err.Error(),
				Retryable: model.Retryable(err),
			}}
			return
		}

		if resp.AssistantMessage != nil {
			events <- sseEvent{name: "message_complete", data: &model.MessageCompleteEvent{
				Message: *resp.AssistantMessage,
			}}
		}
		events <- sseEvent{name: "done", data: map[string]bool{"success": true}}
	}()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			sendSSEEvent(w, flusher, ev.name, ev.data)
		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: time.Now(),
			})
		case <-ctx.Done():
			// Disconnect cancels the turn; partial content is kept in
			// history and a reconnecting client replays it via GET.
			h.logger.WithConversation(conversationID).Info("SSE client disconnected mid-turn")
			return
		}
	}
}

// startSSE writes SSE headers and registers the connection.
func (h *StreamHandler) startSSE(w http.ResponseWriter, r *http.Request, conversationID string) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	metrics.IncrementSSEConnections()

	sendSSEEvent(w, flusher, "connected", map[string]string{
		"conversation_id": conversationID,
	})
	return flusher, true
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()

	return nil
}
