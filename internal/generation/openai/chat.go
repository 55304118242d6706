// Package openai implements generation.Generator on the OpenAI chat
// completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"taxrag/internal/generation"
	"taxrag/internal/retry"
)

// Config configures the chat client.
type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Timeout     time.Duration
	MaxRetries  int
	MaxTokens   int
	Temperature float32
	Logger      *slog.Logger
}

// Client calls a chat completion model with the fixed tax assistant system
// message.
type Client struct {
	api         *goopenai.Client
	model       string
	maxTokens   int
	temperature float32
	retry       retry.Config
	logger      *slog.Logger
}

// NewClient creates a chat client. Zero-valued fields take the defaults
// gpt-4, 500 tokens, temperature 0.2 and a 60s timeout.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.2
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	rc := retry.DefaultConfig()
	if cfg.MaxRetries > 0 {
		rc.MaxRetries = cfg.MaxRetries
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	apiCfg := goopenai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		api:         goopenai.NewClientWithConfig(apiCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		retry:       rc,
		logger:      logger,
	}, nil
}

// Generate sends prompt as the user message and returns the trimmed answer.
func (c *Client) Generate(ctx context.Context, prompt string) generation.Result {
	req := goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: generation.SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	var resp goopenai.ChatCompletionResponse
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		var err error
		resp, err = c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			err = classify(err)
			if retry.IsTransient(err) {
				c.logger.Debug("Chat completion failed, retrying", "model", c.model, "error", err)
			}
		}
		return err
	})
	if err != nil {
		c.logger.Warn("Chat completion failed", "model", c.model, "error", err)
		return generation.Failed(err)
	}
	if len(resp.Choices) == 0 {
		return generation.Failed(errors.New("no choices returned"))
	}
	model := resp.Model
	if model == "" {
		model = c.model
	}
	return generation.Result{
		Text:  strings.TrimSpace(resp.Choices[0].Message.Content),
		Model: model,
	}
}

func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		if retry.IsTransientStatus(apiErr.HTTPStatusCode) {
			return retry.Transient(err)
		}
		return err
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		if retry.IsTransientStatus(reqErr.HTTPStatusCode) {
			return retry.Transient(err)
		}
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	// Transport-level failure.
	return retry.Transient(err)
}
