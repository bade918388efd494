package model

import (
	"sync"
)

// History is the single canonical ordered log of messages for one
// conversation. The log owns its entries: Append and Update store a
// copy of the caller's message, and Get and Snapshot hand copies back.
// A writer streaming into its own Message instance therefore never
// shares memory with concurrent readers; the current state becomes
// visible only when the writer publishes it via Update.
type History struct {
	mu       sync.RWMutex
	messages []*Message
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Append adds a copy of the message to the end of the log.
func (h *History) Append(msg *Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg.Clone())
}

// Update replaces the stored message with the same ID by a copy of
// msg. Returns false if no message with that ID exists.
func (h *History) Update(msg *Message) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, m := range h.messages {
		if m.ID == msg.ID {
			h.messages[i] = msg.Clone()
			return true
		}
	}
	return false
}

// Get returns a copy of the message with the given ID, or nil.
func (h *History) Get(id string) *Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, m := range h.messages {
		if m.ID == id {
			return m.Clone()
		}
	}
	return nil
}

// Len returns the number of messages in the log.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Snapshot returns copies of the full log in order.
func (h *History) Snapshot() []*Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Message, len(h.messages))
	for i, m := range h.messages {
		out[i] = m.Clone()
	}
	return out
}

// APIView derives the model-facing context from the canonical log.
// There is deliberately no second "API messages" list to keep in sync:
// the view is a pure filter. Messages still streaming with no content
// yet, and failed messages, are excluded.
func (h *History) APIView() []ChatMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]ChatMessage, 0, len(h.messages))
	for _, m := range h.messages {
		if m.State == StateFailed {
			continue
		}
		if m.State == StateStreaming && m.Content == "" {
			continue
		}
		out = append(out, ChatMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}
