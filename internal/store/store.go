// Package store defines the persistence collaborator interface for
// conversation history, plus an in-memory implementation.
package store

import (
	"context"
	"sync"

	"github.com/stridefit-ai/coaching-engine/internal/model"
)

// Store is the persistence collaborator consumed by the orchestration
// core. AppendOrUpdate is called after every message state transition
// (created, content updated during streaming at the batched cadence,
// finalized) so that a crash mid-stream loses at most one batch
// interval of content.
type Store interface {
	LoadHistory(ctx context.Context, conversationID string) ([]model.Message, error)
	AppendOrUpdate(ctx context.Context, msg *model.Message) error
}

// Memory is an in-memory Store. Used for tests and as the default
// backend when no durable store is configured.
type Memory struct {
	mu     sync.RWMutex
	byConv map[string][]*model.Message
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{byConv: make(map[string][]*model.Message)}
}

// LoadHistory returns the stored history for a conversation in order.
func (s *Memory) LoadHistory(ctx context.Context, conversationID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.byConv[conversationID]
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, *m.Clone())
	}
	return out, nil
}

// AppendOrUpdate stores a snapshot of msg, replacing any earlier
// snapshot with the same ID.
func (s *Memory) AppendOrUpdate(ctx context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.byConv[msg.ConversationID]
	for i, m := range msgs {
		if m.ID == msg.ID {
			msgs[i] = msg.Clone()
			return nil
		}
	}
	s.byConv[msg.ConversationID] = append(msgs, msg.Clone())
	return nil
}
