package llm

import (
	"context"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/stridefit-ai/coaching-engine/internal/model"
)

// AnthropicClient is the Anthropic LLM client.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	return &AnthropicClient{
		client: &client,
	}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// Models returns available models.
func (c *AnthropicClient) Models() []string {
	return []string{
		string(anthropic.Model("claude-sonnet-4-5-20250929")),
		string(anthropic.ModelClaude3_5Haiku20241022),
		string(anthropic.ModelClaude_3_Opus_20240229),
		string(anthropic.ModelClaude_3_Haiku_20240307),
	}
}

func (c *AnthropicClient) buildParams(req *CompletionRequest) anthropic.MessageNewParams {
	modelName := req.Model
	if modelName == "" {
		modelName = string(anthropic.Model("claude-sonnet-4-5-20250929"))
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			// Tool-result system messages travel as user turns; the
			// Anthropic API only accepts user/assistant in the array.
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelName),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}

	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	if req.Reasoning {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(1024)
	} else if req.Temperature > 0 {
		// The API rejects a custom temperature when extended thinking
		// is enabled, so it is only set on non-thinking requests.
		params.Temperature = anthropic.Float(req.Temperature)
	}

	return params
}

// Complete sends a non-streaming completion request.
func (c *AnthropicClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	resp, err := c.client.Messages.New(ctx, c.buildParams(req))
	if err != nil {
		return nil, classifyAnthropicErr(err)
	}

	var content, reasoning string
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			content += b.Text
		case anthropic.ThinkingBlock:
			reasoning += b.Thinking
		}
	}

	return &CompletionResponse{
		Content:    content,
		Reasoning:  reasoning,
		Model:      string(resp.Model),
		TokensIn:   int(resp.Usage.InputTokens),
		TokensOut:  int(resp.Usage.OutputTokens),
		StopReason: string(resp.StopReason),
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// Stream opens a streaming completion request and converts the SDK
// event callbacks into the engine's tagged event sequence.
func (c *AnthropicClient) Stream(ctx context.Context, req *CompletionRequest) (<-chan StreamEvent, error) {
	start := time.Now()
	params := c.buildParams(req)

	out := make(chan StreamEvent, 64)

	go func() {
		defer close(out)

		stream := c.client.Messages.NewStreaming(ctx, params)

		var content, reasoning string
		var tokensOut int
		var stopReason string

		for stream.Next() {
			event := stream.Current()

			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch d := ev.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					content += d.Text
					if !emit(ctx, out, StreamEvent{Type: EventContentDelta, Delta: d.Text}) {
						return
					}
				case anthropic.ThinkingDelta:
					reasoning += d.Thinking
					if !emit(ctx, out, StreamEvent{Type: EventReasoningDelta, Delta: d.Thinking}) {
						return
					}
				}
			case anthropic.MessageDeltaEvent:
				stopReason = string(ev.Delta.StopReason)
				tokensOut = int(ev.Usage.OutputTokens)
			}
		}

		if err := stream.Err(); err != nil {
			emit(ctx, out, StreamEvent{Type: EventFailed, Err: classifyAnthropicErr(err)})
			return
		}

		emit(ctx, out, StreamEvent{Type: EventCompleted, Response: &CompletionResponse{
			Content:    content,
			Reasoning:  reasoning,
			Model:      string(params.Model),
			TokensOut:  tokensOut,
			StopReason: stopReason,
			LatencyMs:  time.Since(start).Milliseconds(),
		}})
	}()

	return out, nil
}

func classifyAnthropicErr(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return model.ClassifyStatus(apierr.StatusCode, err)
	}
	return &model.TransportError{Err: err}
}
