// Package providers holds the non-Google model clients used by the course
// pipeline.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/Lllllllleong/coursecreator/internal/llm"
)

const (
	openAIDefaultModel = "gpt-4o-mini"
	openAITemperature  = 0.3
)

// ErrRateLimited wraps 429 responses so callers can tell them apart.
var ErrRateLimited = errors.New("openai rate limited")

// OpenAIConfig holds configuration for the OpenAI chat client.
type OpenAIConfig struct {
	APIKey  string
	Model   string        // "gpt-4o-mini" (default)
	Timeout time.Duration // HTTP timeout
	BaseURL string        // Optional (tests)
}

// OpenAIClient sends chat completion requests through the official SDK.
type OpenAIClient struct {
	model  string
	client openai.Client
}

// NewOpenAIClient creates a new OpenAI chat client. SDK retries are disabled;
// retries are applied by llm.WithRetry.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		model:  cfg.Model,
		client: openai.NewClient(opts...),
	}
}

// Model returns the configured model.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete sends one system + user exchange and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(openAITemperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", mapOpenAIError(err))
	}
	if len(resp.Choices) == 0 {
		return "", llm.ErrEmptyResponse
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}

// Requester binds a system instruction and returns the client as an
// llm.RequestFunc.
func (c *OpenAIClient) Requester(system string) llm.RequestFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		return c.Complete(ctx, system, prompt)
	}
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("OpenAI error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("OpenAI error (status %d)", apiErr.StatusCode)
	}
	return err
}
