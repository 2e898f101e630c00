package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"calibra/backend/pkg/logger"
)

// LLMAdapter handles communication with an OpenAI-compatible endpoint.
// The same adapter serves the chat path, the topic extraction oracle and
// the judge; callers pick the model per request.
type LLMAdapter struct {
	client *openai.Client
	logger *zap.Logger
}

// NewLLMAdapter creates a new LLM adapter
func NewLLMAdapter(baseURL, apiKey string) *LLMAdapter {
	// Local gateways accept any key; the SDK requires a non-empty one
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = strings.TrimSuffix(baseURL, "/") + "/v1"

	return &LLMAdapter{
		client: openai.NewClientWithConfig(config),
		logger: logger.Get(),
	}
}

// ChatMessage is a single turn passed to the model
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionOptions tunes a single blocking completion
type CompletionOptions struct {
	Temperature float32
	MaxTokens   int
	JSONMode    bool
	Timeout     time.Duration
}

// Complete sends a blocking chat completion and returns the assistant text.
// There is no retry: callers that can degrade (the extraction oracle) fall
// back locally instead, and callers that cannot surface the error.
func (a *LLMAdapter) Complete(ctx context.Context, model, systemPrompt, userMsg string, opts CompletionOptions) (string, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMsg},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		a.logger.Error("LLM completion failed",
			zap.String("model", model),
			zap.Error(err),
		)
		return "", fmt.Errorf("llm completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)

	a.logger.Debug("LLM completion generated",
		zap.String("model", model),
		zap.Int("content_length", len(content)),
	)

	return content, nil
}

// StreamDelta is one incremental chunk from a streaming completion.
// Reasoning carries the model's thinking trace when the provider emits one.
type StreamDelta struct {
	Reasoning string
	Content   string
}

// StreamResult is the accumulated outcome of a completed stream
type StreamResult struct {
	Reasoning string
	Content   string
}

// Stream runs a streaming chat completion, invoking onDelta for every chunk.
// It returns the fully accumulated reasoning and content once the stream ends.
func (a *LLMAdapter) Stream(ctx context.Context, model string, messages []ChatMessage, temperature float32, maxTokens int, onDelta func(StreamDelta) error) (*StreamResult, error) {
	apiMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		apiMessages = append(apiMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    apiMessages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      true,
	}

	stream, err := a.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		a.logger.Error("LLM stream setup failed",
			zap.String("model", model),
			zap.Error(err),
		)
		return nil, fmt.Errorf("llm stream: %w", err)
	}
	defer stream.Close()

	result := &StreamResult{}
	chunks := 0
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("llm stream recv: %w", err)
		}
		chunks++

		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		d := StreamDelta{
			Reasoning: delta.ReasoningContent,
			Content:   delta.Content,
		}
		if d.Reasoning == "" && d.Content == "" {
			continue
		}
		result.Reasoning += d.Reasoning
		result.Content += d.Content

		if err := onDelta(d); err != nil {
			return nil, err
		}
	}

	a.logger.Debug("LLM stream completed",
		zap.String("model", model),
		zap.Int("chunks", chunks),
		zap.Int("reasoning_length", len(result.Reasoning)),
		zap.Int("content_length", len(result.Content)),
	)

	return result, nil
}
