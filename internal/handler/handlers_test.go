package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridefit-ai/coaching-engine/internal/llm"
	"github.com/stridefit-ai/coaching-engine/internal/middleware"
	"github.com/stridefit-ai/coaching-engine/internal/model"
	"github.com/stridefit-ai/coaching-engine/internal/orchestrator"
	"github.com/stridefit-ai/coaching-engine/internal/retry"
	"github.com/stridefit-ai/coaching-engine/internal/service"
	"github.com/stridefit-ai/coaching-engine/internal/store"
	"github.com/stridefit-ai/coaching-engine/internal/tool"
	"github.com/stridefit-ai/coaching-engine/pkg/logger"
)

// echoTransport answers every request with a fixed reply.
type echoTransport struct {
	reply string
}

func (e *echoTransport) Stream(ctx context.Context, req *llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
	ch := make(chan llm.StreamEvent, 2)
	ch <- llm.StreamEvent{Type: llm.EventContentDelta, Delta: e.reply}
	ch <- llm.StreamEvent{Type: llm.EventCompleted, Response: &llm.CompletionResponse{Content: e.reply, Model: "test-model"}}
	close(ch)
	return ch, nil
}

func (e *echoTransport) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Content: e.reply, Model: "test-model"}, nil
}

func (e *echoTransport) Name() string     { return "echo" }
func (e *echoTransport) Models() []string { return nil }

// asUser injects an authenticated user, standing in for the JWT layer.
func asUser(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newTestRouter(t *testing.T, reply string) http.Handler {
	t.Helper()

	log := logger.NewNop()
	mem := store.NewMemory()

	orch := orchestrator.New(
		&echoTransport{reply: reply},
		tool.NewExecutor(tool.NewRegistry(), log),
		mem,
		log,
		orchestrator.Config{NotifyInterval: -1},
	)
	coord := retry.New(retry.NewManualMonitor(true), mem, log, retry.Config{
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
		Multiplier:  1,
		MaxAttempts: 1,
	})

	convs := service.NewConversationService(mem, log)
	chat := service.NewChatService(convs, orch, coord, mem, log, "")

	conversationHandler := NewConversationHandler(convs, log)
	messageHandler := NewMessageHandler(chat, log)
	streamHandler := NewStreamHandler(chat, convs, log)

	r := chi.NewRouter()
	r.Use(asUser("athlete-1"))
	r.Route("/api/v1/conversations", func(r chi.Router) {
		r.Post("/", conversationHandler.Create)
		r.Get("/", conversationHandler.List)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", conversationHandler.Get)
			r.Put("/", conversationHandler.Update)
			r.Delete("/", conversationHandler.Delete)
			r.Get("/messages", messageHandler.List)
			r.Post("/messages", messageHandler.Send)
			r.Post("/messages/{messageID}/retry", messageHandler.Retry)
			r.Get("/stream", streamHandler.Stream)
			r.Post("/stream", streamHandler.StreamWithMessage)
		})
	})
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func createConversation(t *testing.T, h http.Handler) model.Conversation {
	t.Helper()

	w := doJSON(t, h, http.MethodPost, "/api/v1/conversations",
		model.CreateConversationRequest{Title: "test block"})
	require.Equal(t, http.StatusCreated, w.Code)

	var conv model.Conversation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conv))
	return conv
}

func TestConversationCRUD(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, "hi")
	conv := createConversation(t, h)

	w := doJSON(t, h, http.MethodGet, "/api/v1/conversations/"+conv.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodPut, "/api/v1/conversations/"+conv.ID,
		model.UpdateConversationRequest{Title: "renamed"})
	require.Equal(t, http.StatusOK, w.Code)
	var updated model.Conversation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "renamed", updated.Title)

	w = doJSON(t, h, http.MethodGet, "/api/v1/conversations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list model.ListConversationsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)

	w = doJSON(t, h, http.MethodDelete, "/api/v1/conversations/"+conv.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, h, http.MethodGet, "/api/v1/conversations/"+conv.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConversation_InvalidID(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, "hi")
	w := doJSON(t, h, http.MethodGet, "/api/v1/conversations/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendMessage(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, "Strong finish. Hydrate and rest.")
	conv := createConversation(t, h)

	w := doJSON(t, h, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages",
		model.SendMessageRequest{Content: "Done with today's session"})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp model.SendMessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.UserMessage)
	require.NotNil(t, resp.AssistantMessage)
	assert.Equal(t, "Strong finish. Hydrate and rest.", resp.AssistantMessage.Content)
	assert.Equal(t, model.SendSent, resp.UserMessage.SendStatus)

	w = doJSON(t, h, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msgs model.ListMessagesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	assert.Len(t, msgs.Messages, 2)
}

func TestSendMessage_EmptyContent(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, "hi")
	conv := createConversation(t, h)

	w := doJSON(t, h, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages",
		model.SendMessageRequest{Content: ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRetry_UnknownMessage(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, "hi")
	conv := createConversation(t, h)

	w := doJSON(t, h, http.MethodPost,
		"/api/v1/conversations/"+conv.ID+"/messages/"+uuid.New().String()+"/retry", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamWithMessage(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, "Let's go over your squat form.")
	conv := createConversation(t, h)

	w := doJSON(t, h, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/stream",
		model.SendMessageRequest{Content: "Can you check my squat?"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "event: user_message")
	assert.Contains(t, body, "event: message_complete")
	assert.Contains(t, body, "event: done")
	assert.Contains(t, body, "Let's go over your squat form.")
}

func TestStream_ReplaysHistory(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, "Answer one.")
	conv := createConversation(t, h)

	w := doJSON(t, h, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages",
		model.SendMessageRequest{Content: "First question"})
	require.Equal(t, http.StatusCreated, w.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+conv.ID+"/stream", nil)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "event: replay_complete")
	assert.Contains(t, body, "First question")
	assert.Contains(t, body, "Answer one.")
}
