package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pavelanni/quizgen/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api *openai.Client
	cfg model.PipelineConfig
}

// New creates a new LLM client.
func New(baseURL, apiKey string, cfg model.PipelineConfig) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api: openai.NewClientWithConfig(config),
		cfg: cfg,
	}
}

// Model returns the model identifier requests are sent to.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Ping checks that the endpoint answers and accepts the credential.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Complete sends one chat completion and returns the reply text as
// fragments. A non-streaming call returns a single fragment; a streaming
// call returns the deltas in arrival order. There is no retry.
func (c *Client) Complete(ctx context.Context, system, user string) ([]string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
	if c.cfg.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	if c.cfg.Stream {
		return c.stream(ctx, req)
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response",
		"model", c.cfg.Model,
		"finish_reason", resp.Choices[0].FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"preview", Preview(raw, PreviewLength),
	)
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyResponse
	}
	return []string{raw}, nil
}

func (c *Client) stream(ctx context.Context, req openai.ChatCompletionRequest) ([]string, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("LLM stream open: %w", err)
	}
	defer stream.Close()

	var fragments []string
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("LLM stream receive: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			fragments = append(fragments, delta)
		}
	}

	slog.Debug("LLM stream finished", "model", c.cfg.Model, "fragments", len(fragments))
	if len(fragments) == 0 {
		return nil, ErrEmptyResponse
	}
	return fragments, nil
}

// StatusCode returns the HTTP status reported by the API for err, or 0.
func StatusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
