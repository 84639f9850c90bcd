package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/getsentry/sentry-go"

	"github.com/voltaicdata/voltaic/pkg/metrics"
)

const (
	DefaultModel     = anthropic.ModelClaudeSonnet4_5
	DefaultMaxTokens = 1024
)

type AnthropicConfig struct {
	Logger    *slog.Logger
	Model     anthropic.Model
	MaxTokens int64
	// Endpoint labels this client's requests in logs and metrics.
	Endpoint string
}

func (c *AnthropicConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Endpoint == "" {
		c.Endpoint = "planner"
	}
	return nil
}

// AnthropicClient implements LLMClient against the Anthropic API. The API
// key is read from ANTHROPIC_API_KEY by the underlying SDK.
type AnthropicClient struct {
	cfg    AnthropicConfig
	client anthropic.Client
}

func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &AnthropicClient{cfg: cfg, client: anthropic.NewClient()}, nil
}

func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	span := sentry.StartSpan(ctx, "gen_ai.chat", sentry.WithDescription(fmt.Sprintf("chat %s", c.cfg.Model)))
	span.SetData("gen_ai.operation.name", "chat")
	span.SetData("gen_ai.request.model", string(c.cfg.Model))
	span.SetData("gen_ai.request.max_tokens", c.cfg.MaxTokens)
	span.SetData("gen_ai.system", "anthropic")
	ctx = span.Context()
	defer span.Finish()

	start := time.Now()
	c.cfg.Logger.Debug("anthropic call starting",
		"endpoint", c.cfg.Endpoint,
		"model", c.cfg.Model,
		"max_tokens", c.cfg.MaxTokens,
		"user_prompt_len", len(userPrompt),
	)

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})

	duration := time.Since(start)
	metrics.RecordAnthropicRequest(c.cfg.Endpoint, duration, err)
	if err != nil {
		c.cfg.Logger.Error("anthropic call failed", "endpoint", c.cfg.Endpoint, "duration", duration, "error", err)
		span.Status = sentry.SpanStatusInternalError
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	c.cfg.Logger.Info("anthropic call completed",
		"endpoint", c.cfg.Endpoint,
		"duration", duration,
		"stop_reason", msg.StopReason,
		"input_tokens", msg.Usage.InputTokens,
		"output_tokens", msg.Usage.OutputTokens,
	)
	metrics.RecordAnthropicTokens(msg.Usage.InputTokens, msg.Usage.OutputTokens)

	span.SetData("gen_ai.usage.input_tokens", msg.Usage.InputTokens)
	span.SetData("gen_ai.usage.output_tokens", msg.Usage.OutputTokens)
	span.SetData("gen_ai.usage.total_tokens", msg.Usage.InputTokens+msg.Usage.OutputTokens)
	span.Status = sentry.SpanStatusOK

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errors.New("no text content in response")
}
