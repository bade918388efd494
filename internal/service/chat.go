package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stridefit-ai/coaching-engine/internal/model"
	"github.com/stridefit-ai/coaching-engine/internal/orchestrator"
	"github.com/stridefit-ai/coaching-engine/internal/retry"
	"github.com/stridefit-ai/coaching-engine/internal/store"
	"github.com/stridefit-ai/coaching-engine/pkg/logger"
	"github.com/stridefit-ai/coaching-engine/pkg/metrics"
)

// ErrMessageNotFound is returned when a retry targets an unknown message.
var ErrMessageNotFound = errors.New("message not found")

// ChatService drives the send flow: append the user message to history,
// then run the turn loop under the retry coordinator so transient
// failures back off and offline sends queue instead of failing.
type ChatService struct {
	convs        *ConversationService
	orch         *orchestrator.Orchestrator
	coord        *retry.Coordinator
	store        store.Store
	logger       *logger.Logger
	systemPrompt string
}

// NewChatService creates a chat service.
func NewChatService(
	convs *ConversationService,
	orch *orchestrator.Orchestrator,
	coord *retry.Coordinator,
	st store.Store,
	log *logger.Logger,
	systemPrompt string,
) *ChatService {
	// Send-status transitions run inside the coordinator, including on
	// its drain goroutine; mirror each one into the conversation's
	// history so listing and replay see current status.
	coord.OnTransition(func(msg *model.Message) {
		if hist := convs.history(msg.ConversationID); hist != nil {
			hist.Update(msg)
		}
	})

	return &ChatService{
		convs:        convs,
		orch:         orch,
		coord:        coord,
		store:        st,
		logger:       log,
		systemPrompt: systemPrompt,
	}
}

// Send appends the user message and runs the turn loop to a final
// assistant answer. When offline the user message stays in history with
// a queued send status and retry.ErrQueuedOffline is returned; the
// queued send resumes automatically on reconnect.
func (s *ChatService) Send(ctx context.Context, userID, conversationID string, req *model.SendMessageRequest, opts orchestrator.TurnOptions) (*model.SendMessageResponse, error) {
	if req.Content == "" {
		return nil, &model.ClientError{StatusCode: 400, Err: errors.New("message content must not be empty")}
	}

	conv, err := s.convs.Get(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	userMsg := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		Role:           model.RoleUser,
		Content:        req.Content,
		State:          model.StateCompleted,
		SendStatus:     model.SendNotSent,
		CreatedAt:      time.Now(),
	}
	conv.History.Append(userMsg)
	if perr := s.store.AppendOrUpdate(ctx, userMsg); perr != nil {
		s.logger.Warn("failed to persist user message", zap.Error(perr))
	}
	metrics.MessagesTotal.WithLabelValues(string(model.RoleUser)).Inc()

	opts.Model = req.Model
	resp := &model.SendMessageResponse{UserMessage: userMsg}
	err = s.coord.Send(ctx, userMsg, s.attempt(conv, resp, opts))
	s.convs.Touch(conversationID)
	return resp, err
}

// Retry manually re-sends a failed user message.
func (s *ChatService) Retry(ctx context.Context, userID, conversationID, messageID string, opts orchestrator.TurnOptions) (*model.SendMessageResponse, error) {
	conv, err := s.convs.Get(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	msg := conv.History.Get(messageID)
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if msg.Role != model.RoleUser {
		return nil, &model.ClientError{StatusCode: 400, Err: fmt.Errorf("only user messages can be retried")}
	}

	resp := &model.SendMessageResponse{UserMessage: msg}
	err = s.coord.ManualRetry(ctx, msg, s.attempt(conv, resp, opts))
	s.convs.Touch(conversationID)
	return resp, err
}

// ListMessages returns the conversation history in order.
func (s *ChatService) ListMessages(ctx context.Context, userID, conversationID string) (*model.ListMessagesResponse, error) {
	conv, err := s.convs.Get(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	// Snapshot hands back copies, safe to return while a turn streams.
	snap := conv.History.Snapshot()
	out := make([]model.Message, 0, len(snap))
	for _, m := range snap {
		out = append(out, *m)
	}
	return &model.ListMessagesResponse{Messages: out}, nil
}

// attempt builds the AttemptFunc for one send: each attempt runs the
// full turn loop and records the resulting assistant message on resp.
func (s *ChatService) attempt(conv *model.Conversation, resp *model.SendMessageResponse, opts orchestrator.TurnOptions) retry.AttemptFunc {
	return func(ctx context.Context) error {
		msg, err := s.orch.RunTurn(ctx, conv.ID, conv.History, s.systemPrompt, opts)
		if msg != nil {
			resp.AssistantMessage = msg
		}
		return err
	}
}
