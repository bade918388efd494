// Package model defines data structures for the coaching conversation engine.
package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// State is the lifecycle state of a message. A message starts out
// streaming while content is still being appended, then settles into
// completed or failed. Once finalized it is immutable except for
// send-status transitions driven by the retry coordinator.
type State string

const (
	StateStreaming State = "streaming"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// SendStatus tracks the delivery state machine of a user-originated
// message. A message transitions to sent at most once; failed is
// terminal unless the caller manually retries.
type SendStatus string

const (
	SendNotSent  SendStatus = "not_sent"
	SendSending  SendStatus = "sending"
	SendSent     SendStatus = "sent"
	SendRetrying SendStatus = "retrying"
	SendOffline  SendStatus = "offline"
	SendQueued   SendStatus = "queued"
	SendFailed   SendStatus = "failed"
)

// Attachment is a binary payload carried with a message.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// Message represents one conversational turn.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`

	Role      Role    `json:"role"`
	Content   string  `json:"content"`
	Reasoning *string `json:"reasoning,omitempty"`

	State      State      `json:"state"`
	SendStatus SendStatus `json:"send_status,omitempty"`
	RetryCount int        `json:"retry_count,omitempty"`

	Attachments []Attachment `json:"attachments,omitempty"`

	// LLM metadata, nil for non-assistant messages.
	Model      *string `json:"model,omitempty"`
	TokensIn   *int    `json:"tokens_in,omitempty"`
	TokensOut  *int    `json:"tokens_out,omitempty"`
	StopReason *string `json:"stop_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// Stream sequence of the message's first stored snapshot, stamped
	// when history is loaded. Zero until then; any stored value is
	// overwritten on read.
	Sequence uint64 `json:"sequence,omitempty"`
}

// Clone returns a deep copy of the message. Reasoning and metadata
// pointers are duplicated so callers can mutate the copy freely.
func (m *Message) Clone() *Message {
	c := *m
	if m.Reasoning != nil {
		r := *m.Reasoning
		c.Reasoning = &r
	}
	if m.Model != nil {
		v := *m.Model
		c.Model = &v
	}
	if m.TokensIn != nil {
		v := *m.TokensIn
		c.TokensIn = &v
	}
	if m.TokensOut != nil {
		v := *m.TokensOut
		c.TokensOut = &v
	}
	if m.StopReason != nil {
		v := *m.StopReason
		c.StopReason = &v
	}
	if m.Attachments != nil {
		c.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	return &c
}

// ChatMessage is the wire shape of a history entry sent to the model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SendMessageRequest is the request to send a new message.
type SendMessageRequest struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

// SendMessageResponse is the response after sending a message.
type SendMessageResponse struct {
	UserMessage      *Message `json:"user_message,omitempty"`
	AssistantMessage *Message `json:"assistant_message,omitempty"`
}

// ListMessagesResponse is the response for listing messages.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}
