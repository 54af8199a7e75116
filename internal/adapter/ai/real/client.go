// Package real implements the AI client against OpenAI compatible HTTP APIs:
// chat completions (OpenAI or OpenRouter), embeddings and Whisper
// transcription.
package real

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/observability"
	"github.com/fairyhunter13/ai-mock-interview/internal/config"
	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
)

// Client implements domain.AIClient and domain.Transcriber.
type Client struct {
	cfg      config.Config
	provider string
	chatURL  string
	chatKey  string
	hc       *http.Client
	limiter  *rate.Limiter
	backoff  func() backoff.BackOff
}

// New constructs a client. Chat goes to OpenRouter when an OpenRouter key is
// configured and to OpenAI otherwise; embeddings and transcription always
// use OpenAI.
func New(cfg config.Config) *Client {
	c := &Client{
		cfg:      cfg,
		provider: "openai",
		chatURL:  cfg.OpenAIBaseURL,
		chatKey:  cfg.OpenAIAPIKey,
		hc: &http.Client{
			Timeout:   cfg.AIRequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	if cfg.OpenRouterAPIKey != "" {
		c.provider = "openrouter"
		c.chatURL = cfg.OpenRouterBaseURL
		c.chatKey = cfg.OpenRouterAPIKey
	}
	if cfg.AIRequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.AIRequestsPerSecond), int(math.Max(1, math.Ceil(cfg.AIRequestsPerSecond))))
	}
	c.backoff = c.defaultBackoff
	return c
}

func (c *Client) defaultBackoff() backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.MaxElapsedTime, expo.InitialInterval, expo.MaxInterval, expo.Multiplier = c.cfg.GetAIBackoffConfig()
	return expo
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// ChatJSON asks for a JSON object reply.
func (c *Client) ChatJSON(ctx domain.Context, systemPrompt, userPrompt string, opts domain.ChatOptions) (string, error) {
	return c.chat(ctx, "chat_json", systemPrompt, userPrompt, opts, true)
}

// Chat asks for a free text reply.
func (c *Client) Chat(ctx domain.Context, systemPrompt, userPrompt string, opts domain.ChatOptions) (string, error) {
	return c.chat(ctx, "chat", systemPrompt, userPrompt, opts, false)
}

func (c *Client) chat(ctx domain.Context, op, systemPrompt, userPrompt string, opts domain.ChatOptions, jsonMode bool) (string, error) {
	if c.chatKey == "" {
		slog.Error("chat API key missing", slog.String("provider", c.provider))
		return "", fmt.Errorf("%w: OPENAI_API_KEY or OPENROUTER_API_KEY missing", domain.ErrInvalidArgument)
	}
	req := chatRequest{
		Model: c.cfg.ChatModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if jsonMode {
		req.ResponseFormat = map[string]string{"type": "json_object"}
	}
	b, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	var out chatResponse
	err = c.do(ctx, op, func() (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL+"/chat/completions", bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Authorization", "Bearer "+c.chatKey)
		r.Header.Set("Content-Type", "application/json")
		if c.provider == "openrouter" {
			if c.cfg.OpenRouterReferer != "" {
				r.Header.Set("HTTP-Referer", c.cfg.OpenRouterReferer)
			}
			if c.cfg.OpenRouterTitle != "" {
				r.Header.Set("X-Title", c.cfg.OpenRouterTitle)
			}
		}
		return r, nil
	}, &out)
	if err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		observability.FailAICall(c.provider, op, "empty")
		return "", fmt.Errorf("%w: empty choices", domain.ErrModelResponseMalformed)
	}
	if out.Model != "" && out.Model != c.cfg.ChatModel {
		slog.Debug("model substitution",
			slog.String("requested_model", c.cfg.ChatModel),
			slog.String("actual_model", out.Model))
	}
	return out.Choices[0].Message.Content, nil
}

// Embed calls the embeddings endpoint and returns one vector per text.
func (c *Client) Embed(ctx domain.Context, texts []string) ([][]float32, error) {
	if c.cfg.OpenAIAPIKey == "" || c.cfg.EmbeddingsModel == "" {
		slog.Error("OpenAI API key or model missing", slog.String("provider", "openai"), slog.Bool("has_api_key", c.cfg.OpenAIAPIKey != ""), slog.String("model", c.cfg.EmbeddingsModel))
		return nil, fmt.Errorf("%w: OPENAI_API_KEY or EMBEDDINGS_MODEL missing", domain.ErrInvalidArgument)
	}
	if len(texts) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(map[string]any{"model": c.cfg.EmbeddingsModel, "input": texts})
	if err != nil {
		return nil, err
	}
	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	err = c.do(ctx, "embed", func() (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OpenAIBaseURL+"/embeddings", bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Authorization", "Bearer "+c.cfg.OpenAIAPIKey)
		r.Header.Set("Content-Type", "application/json")
		return r, nil
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", domain.ErrModelResponseMalformed, len(out.Data), len(texts))
	}
	res := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		v := make([]float32, len(d.Embedding))
		for j := range d.Embedding {
			v[j] = float32(d.Embedding[j])
		}
		res[i] = v
	}
	return res, nil
}

type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		AvgLogprob float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// Transcribe uploads audio to the Whisper endpoint. Confidence is derived
// from the mean segment log probability; zero means the provider gave none.
func (c *Client) Transcribe(ctx domain.Context, audio io.Reader, filename string) (domain.Transcript, error) {
	if c.cfg.OpenAIAPIKey == "" {
		return domain.Transcript{}, fmt.Errorf("%w: OPENAI_API_KEY missing", domain.ErrTranscriptionUnavailable)
	}
	data, err := io.ReadAll(audio)
	if err != nil {
		return domain.Transcript{}, err
	}
	if len(data) == 0 {
		return domain.Transcript{}, fmt.Errorf("%w: empty audio", domain.ErrInvalidArgument)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return domain.Transcript{}, err
	}
	if _, err := fw.Write(data); err != nil {
		return domain.Transcript{}, err
	}
	_ = mw.WriteField("model", c.cfg.TranscriptionModel)
	_ = mw.WriteField("response_format", "verbose_json")
	if err := mw.Close(); err != nil {
		return domain.Transcript{}, err
	}
	payload := body.Bytes()

	var out transcriptionResponse
	err = c.do(ctx, "transcribe", func() (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OpenAIBaseURL+"/audio/transcriptions", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Authorization", "Bearer "+c.cfg.OpenAIAPIKey)
		r.Header.Set("Content-Type", mw.FormDataContentType())
		return r, nil
	}, &out)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			return domain.Transcript{}, err
		}
		return domain.Transcript{}, fmt.Errorf("%w: %v", domain.ErrTranscriptionUnavailable, err)
	}

	t := domain.Transcript{Text: out.Text, Language: out.Language, DurationSeconds: out.Duration}
	if n := len(out.Segments); n > 0 {
		sum := 0.0
		for _, s := range out.Segments {
			sum += s.AvgLogprob
		}
		t.Confidence = math.Min(1, math.Max(0, math.Exp(sum/float64(n))))
	}
	return t, nil
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.body)
}

// do runs one request under the rate limiter with exponential backoff. 429
// and 5xx are retried; other 4xx are permanent.
func (c *Client) do(ctx domain.Context, op string, build func() (*http.Request, error), out any) error {
	attempt := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		req, err := build()
		if err != nil {
			return backoff.Permanent(err)
		}
		start := time.Now()
		resp, err := c.hc.Do(req)
		observability.ObserveAICall(c.provider, op, start)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			slog.Warn("ai provider rate limited", slog.String("provider", c.provider), slog.String("op", op), slog.String("x_request_id", resp.Header.Get("X-Request-Id")))
			return &statusError{status: resp.StatusCode, body: snippet(raw)}
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			slog.Warn("ai provider 4xx", slog.String("provider", c.provider), slog.String("op", op), slog.Int("status", resp.StatusCode), slog.String("body", snippet(raw)))
			return backoff.Permanent(&statusError{status: resp.StatusCode, body: snippet(raw)})
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			slog.Error("ai provider non-2xx", slog.String("provider", c.provider), slog.String("op", op), slog.Int("status", resp.StatusCode), slog.String("body", snippet(raw)))
			return &statusError{status: resp.StatusCode, body: snippet(raw)}
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: decode %s: %v", domain.ErrModelResponseMalformed, op, err))
		}
		return nil
	}

	err := backoff.Retry(attempt, backoff.WithContext(c.backoff(), ctx))
	if err == nil {
		return nil
	}
	var se *statusError
	switch {
	case errors.Is(err, domain.ErrModelResponseMalformed):
		observability.FailAICall(c.provider, op, "malformed")
		return err
	case errors.As(err, &se) && se.status == http.StatusTooManyRequests:
		observability.FailAICall(c.provider, op, "rate_limited")
		return fmt.Errorf("%w: %s %s", domain.ErrUpstreamRateLimit, c.provider, op)
	case errors.As(err, &se) && se.status < 500:
		observability.FailAICall(c.provider, op, "client_error")
		return fmt.Errorf("%s %s: %w", c.provider, op, err)
	case ctx.Err() != nil:
		observability.FailAICall(c.provider, op, "timeout")
		return fmt.Errorf("%w: %v", domain.ErrModelTimeout, err)
	default:
		observability.FailAICall(c.provider, op, "upstream")
		return fmt.Errorf("%w: %s %s: %v", domain.ErrUpstreamTimeout, c.provider, op, err)
	}
}

func snippet(b []byte) string {
	if len(b) > 512 {
		b = b[:512]
	}
	return string(b)
}
