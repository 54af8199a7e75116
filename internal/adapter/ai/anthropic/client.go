// Package anthropic serves chat calls through the Anthropic Messages API.
// Anthropic has no embeddings endpoint, so Embed is delegated.
package anthropic

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/observability"
	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
)

const jsonOnly = "\n\nRespond with a single JSON object and nothing else."

// Embedder produces vectors for the memory store.
type Embedder interface {
	Embed(ctx domain.Context, texts []string) ([][]float32, error)
}

// Client implements domain.AIClient.
type Client struct {
	api      anthropic.Client
	model    string
	embedder Embedder
}

// New builds a client. Extra request options (base URL, HTTP client) are
// mostly useful in tests.
func New(apiKey, model string, embedder Embedder, opts ...option.RequestOption) *Client {
	all := append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(2)}, opts...)
	return &Client{
		api:      anthropic.NewClient(all...),
		model:    model,
		embedder: embedder,
	}
}

func (c *Client) Embed(ctx domain.Context, texts []string) ([][]float32, error) {
	if c.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured for anthropic provider", domain.ErrInvalidArgument)
	}
	return c.embedder.Embed(ctx, texts)
}

func (c *Client) ChatJSON(ctx domain.Context, systemPrompt, userPrompt string, opts domain.ChatOptions) (string, error) {
	return c.send(ctx, "chat_json", systemPrompt+jsonOnly, userPrompt, opts)
}

func (c *Client) Chat(ctx domain.Context, systemPrompt, userPrompt string, opts domain.ChatOptions) (string, error) {
	return c.send(ctx, "chat", systemPrompt, userPrompt, opts)
}

func (c *Client) send(ctx domain.Context, op, systemPrompt, userPrompt string, opts domain.ChatOptions) (string, error) {
	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
		Temperature: anthropic.Float(opts.Temperature),
	}

	start := time.Now()
	message, err := c.api.Messages.New(ctx, params)
	observability.ObserveAICall("anthropic", op, start)
	if err != nil {
		return "", mapError(ctx, op, err)
	}
	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		observability.FailAICall("anthropic", op, "empty")
		return "", fmt.Errorf("%w: no text content in anthropic response", domain.ErrModelResponseMalformed)
	}
	slog.Debug("anthropic call done",
		slog.String("op", op),
		slog.Int64("tokens_in", message.Usage.InputTokens),
		slog.Int64("tokens_out", message.Usage.OutputTokens))
	return sb.String(), nil
}

func mapError(ctx domain.Context, op string, err error) error {
	var apiErr *anthropic.Error
	switch {
	case ctx.Err() != nil:
		observability.FailAICall("anthropic", op, "timeout")
		return fmt.Errorf("%w: %v", domain.ErrModelTimeout, err)
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests:
		observability.FailAICall("anthropic", op, "rate_limited")
		return fmt.Errorf("%w: anthropic %s", domain.ErrUpstreamRateLimit, op)
	case errors.As(err, &apiErr) && apiErr.StatusCode < 500:
		observability.FailAICall("anthropic", op, "client_error")
		return fmt.Errorf("anthropic %s: %w", op, err)
	default:
		observability.FailAICall("anthropic", op, "upstream")
		return fmt.Errorf("%w: anthropic %s: %v", domain.ErrUpstreamTimeout, op, err)
	}
}
