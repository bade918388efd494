// Package service implements the application services behind the HTTP
// handlers: conversation lifecycle and the send/retry chat flow.
package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stridefit-ai/coaching-engine/internal/model"
	"github.com/stridefit-ai/coaching-engine/internal/store"
	"github.com/stridefit-ai/coaching-engine/pkg/logger"
)

// ErrConversationNotFound is returned when a conversation does not
// exist or belongs to another user.
var ErrConversationNotFound = errors.New("conversation not found")

// ConversationService manages conversation lifecycle. Conversations are
// held in memory; their message history is hydrated from the store on
// first access so a restarted process picks up where it left off.
type ConversationService struct {
	store  store.Store
	logger *logger.Logger

	mu    sync.RWMutex
	convs map[string]*model.Conversation
}

// NewConversationService creates a conversation service.
func NewConversationService(st store.Store, log *logger.Logger) *ConversationService {
	return &ConversationService{
		store:  st,
		logger: log,
		convs:  make(map[string]*model.Conversation),
	}
}

// Create creates a new conversation for the user.
func (s *ConversationService) Create(ctx context.Context, userID string, req *model.CreateConversationRequest) (*model.Conversation, error) {
	now := time.Now()
	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    userID,
		Title:     req.Title,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  req.Metadata,
		History:   model.NewHistory(),
	}
	if conv.Title == "" {
		conv.Title = "New conversation"
	}

	s.mu.Lock()
	s.convs[conv.ID] = conv
	s.mu.Unlock()

	s.logger.WithConversation(conv.ID).Info("conversation created",
		zap.String("user_id", userID),
	)
	return conv, nil
}

// Get returns the conversation if it exists and belongs to the user,
// hydrating its history from the store on first access.
func (s *ConversationService) Get(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	s.mu.RLock()
	conv, ok := s.convs[conversationID]
	s.mu.RUnlock()

	if !ok || conv.Deleted || conv.UserID != userID {
		return nil, ErrConversationNotFound
	}

	if conv.History == nil {
		hist, err := s.hydrate(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if conv.History == nil {
			conv.History = hist
		}
		s.mu.Unlock()
	}
	return conv, nil
}

// List returns the user's conversations, newest first.
func (s *ConversationService) List(ctx context.Context, userID string, limit, offset int) (*model.ListConversationsResponse, error) {
	s.mu.RLock()
	all := make([]*model.Conversation, 0, len(s.convs))
	for _, c := range s.convs {
		if c.UserID == userID && !c.Deleted {
			all = append(all, c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})

	total := len(all)
	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	hasMore := false
	if limit > 0 && len(all) > limit {
		all = all[:limit]
		hasMore = true
	}

	out := make([]model.Conversation, len(all))
	for i, c := range all {
		out[i] = *c
	}
	return &model.ListConversationsResponse{
		Conversations: out,
		Total:         total,
		HasMore:       hasMore,
	}, nil
}

// Update changes conversation metadata.
func (s *ConversationService) Update(ctx context.Context, userID, conversationID string, req *model.UpdateConversationRequest) (*model.Conversation, error) {
	conv, err := s.Get(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if req.Title != "" {
		conv.Title = req.Title
	}
	if req.Metadata != nil {
		conv.Metadata = req.Metadata
	}
	conv.UpdatedAt = time.Now()
	s.mu.Unlock()
	return conv, nil
}

// Delete soft-deletes a conversation.
func (s *ConversationService) Delete(ctx context.Context, userID, conversationID string) error {
	conv, err := s.Get(ctx, userID, conversationID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	conv.Deleted = true
	conv.UpdatedAt = time.Now()
	s.mu.Unlock()

	s.logger.WithConversation(conversationID).Info("conversation deleted")
	return nil
}

// Touch bumps the conversation's updated timestamp.
func (s *ConversationService) Touch(conversationID string) {
	s.mu.Lock()
	if conv, ok := s.convs[conversationID]; ok {
		conv.UpdatedAt = time.Now()
	}
	s.mu.Unlock()
}

// history returns the live history for a conversation without an
// ownership check, for internal publishing paths. Returns nil when the
// conversation is unknown or not yet hydrated.
func (s *ConversationService) history(conversationID string) *model.History {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if conv, ok := s.convs[conversationID]; ok {
		return conv.History
	}
	return nil
}

func (s *ConversationService) hydrate(ctx context.Context, conversationID string) (*model.History, error) {
	msgs, err := s.store.LoadHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	hist := model.NewHistory()
	for i := range msgs {
		hist.Append(&msgs[i])
	}
	return hist, nil
}
