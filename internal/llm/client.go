// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"

	"github.com/stridefit-ai/coaching-engine/internal/model"
)

// EventType tags a streaming event.
type EventType string

const (
	// EventContentDelta carries an incremental fragment of answer text.
	EventContentDelta EventType = "content_delta"
	// EventReasoningDelta carries an incremental fragment of model reasoning.
	EventReasoningDelta EventType = "reasoning_delta"
	// EventCompleted terminates a stream normally and carries final metadata.
	EventCompleted EventType = "completed"
	// EventFailed terminates a stream with an error.
	EventFailed EventType = "failed"
)

// StreamEvent is one tagged event in a streaming response. Exactly one
// of Delta, Response or Err is meaningful depending on Type. The
// channel is closed after a Completed or Failed event.
type StreamEvent struct {
	Type     EventType
	Delta    string
	Response *CompletionResponse
	Err      error
}

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	Messages     []model.ChatMessage
	MaxTokens    int
	Temperature  float64
	Reasoning    bool
}

// CompletionResponse represents a finished completion.
type CompletionResponse struct {
	Content    string
	Reasoning  string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a non-streaming completion request. Used as the
	// fallback path when streaming fails mid-turn.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Stream opens a streaming completion and returns an ordered
	// sequence of tagged events. A setup error is returned directly;
	// mid-stream failures arrive as an EventFailed event.
	Stream(ctx context.Context, req *CompletionRequest) (<-chan StreamEvent, error)

	// Name returns the provider name.
	Name() string

	// Models returns available models.
	Models() []string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// NewClient creates a new LLM client based on provider.
func NewClient(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey)
	default:
		return NewAnthropicClient(apiKey)
	}
}

// emit sends an event unless the context is already cancelled. Returns
// false when the consumer is gone so producers can stop reading.
func emit(ctx context.Context, ch chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
