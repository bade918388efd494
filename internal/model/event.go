package model

import (
	"time"
)

// DeltaEvent is the batched presentation update pushed to streaming
// consumers. Content and Reasoning carry the full accumulated text so
// a consumer that misses a batch never diverges from the accumulator.
type DeltaEvent struct {
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
	Reasoning string `json:"reasoning,omitempty"`
}

// MessageCompleteEvent signals that a message finished streaming.
type MessageCompleteEvent struct {
	Message Message `json:"message"`
}

// ToolEvent notifies consumers that tool calls were executed mid-turn.
type ToolEvent struct {
	Results []ToolCallResult `json:"results"`
}

// ErrorEvent represents a stream-level error.
type ErrorEvent struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// HeartbeatEvent keeps SSE connections alive.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}
