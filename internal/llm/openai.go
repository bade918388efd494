package llm

import (
	"context"
	"errors"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/stridefit-ai/coaching-engine/internal/model"
)

// OpenAIClient is the OpenAI LLM client.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	return &OpenAIClient{
		client: openai.NewClient(apiKey),
	}, nil
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Models returns available models.
func (c *OpenAIClient) Models() []string {
	return []string{
		"gpt-4o",
		"gpt-4o-mini",
		"o3-mini",
		"gpt-4-turbo",
	}
}

func (c *OpenAIClient) buildRequest(req *CompletionRequest, stream bool) openai.ChatCompletionRequest {
	modelName := req.Model
	if modelName == "" {
		modelName = "gpt-4o"
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	return openai.ChatCompletionRequest{
		Model:       modelName,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
		Stream:      stream,
	}
}

// Complete sends a non-streaming completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(req, false))
	if err != nil {
		return nil, classifyOpenAIErr(err)
	}

	var content, reasoning, stopReason string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		reasoning = resp.Choices[0].Message.ReasoningContent
		stopReason = string(resp.Choices[0].FinishReason)
	}

	return &CompletionResponse{
		Content:    content,
		Reasoning:  reasoning,
		Model:      resp.Model,
		TokensIn:   resp.Usage.PromptTokens,
		TokensOut:  resp.Usage.CompletionTokens,
		StopReason: stopReason,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// Stream opens a streaming completion request.
func (c *OpenAIClient) Stream(ctx context.Context, req *CompletionRequest) (<-chan StreamEvent, error) {
	start := time.Now()

	stream, err := c.client.CreateChatCompletionStream(ctx, c.buildRequest(req, true))
	if err != nil {
		return nil, classifyOpenAIErr(err)
	}

	out := make(chan StreamEvent, 64)

	go func() {
		defer close(out)
		defer stream.Close()

		var content, reasoning, stopReason string
		modelName := req.Model

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				emit(ctx, out, StreamEvent{Type: EventFailed, Err: classifyOpenAIErr(err)})
				return
			}

			if resp.Model != "" {
				modelName = resp.Model
			}
			if len(resp.Choices) == 0 {
				continue
			}

			choice := resp.Choices[0]
			if choice.Delta.ReasoningContent != "" {
				reasoning += choice.Delta.ReasoningContent
				if !emit(ctx, out, StreamEvent{Type: EventReasoningDelta, Delta: choice.Delta.ReasoningContent}) {
					return
				}
			}
			if choice.Delta.Content != "" {
				content += choice.Delta.Content
				if !emit(ctx, out, StreamEvent{Type: EventContentDelta, Delta: choice.Delta.Content}) {
					return
				}
			}
			if choice.FinishReason != "" {
				stopReason = string(choice.FinishReason)
			}
		}

		emit(ctx, out, StreamEvent{Type: EventCompleted, Response: &CompletionResponse{
			Content:    content,
			Reasoning:  reasoning,
			Model:      modelName,
			StopReason: stopReason,
			LatencyMs:  time.Since(start).Milliseconds(),
		}})
	}()

	return out, nil
}

func classifyOpenAIErr(err error) error {
	var apierr *openai.APIError
	if errors.As(err, &apierr) {
		return model.ClassifyStatus(apierr.HTTPStatusCode, err)
	}
	return &model.TransportError{Err: err}
}
