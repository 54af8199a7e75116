package app

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/ai"
	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/ai/anthropic"
	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/ai/real"
	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/ai/stub"
	"github.com/fairyhunter13/ai-mock-interview/internal/config"
	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
)

// AIStack is the model client used by the services plus the transcriber
// for recorded answers. Transcriber is nil when no provider can transcribe.
type AIStack struct {
	Client      domain.AIClient
	Transcriber domain.Transcriber
	Provider    string
}

// BuildAI selects the provider named by AI_PROVIDER and wraps it with the
// embedding cache and a circuit breaker.
func BuildAI(cfg config.Config) (AIStack, error) {
	var (
		base  domain.AIClient
		trans domain.Transcriber
	)
	provider := strings.ToLower(strings.TrimSpace(cfg.AIProvider))
	switch provider {
	case "stub":
		s := stub.New(cfg.EmbeddingsDim)
		base, trans = s, s
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return AIStack{}, fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
		openai := real.New(cfg)
		base = anthropic.New(cfg.AnthropicAPIKey, cfg.AnthropicModel, openai)
		if cfg.OpenAIAPIKey != "" {
			trans = openai
		}
	case "", "openai", "openrouter":
		provider = "openai"
		c := real.New(cfg)
		base = c
		if cfg.OpenAIAPIKey != "" {
			trans = c
		}
	default:
		return AIStack{}, fmt.Errorf("unknown AI_PROVIDER %q", cfg.AIProvider)
	}
	if trans == nil {
		slog.Warn("no transcription provider configured, audio answers are disabled", slog.String("provider", provider))
	}

	client := ai.NewEmbedCache(base, cfg.EmbedCacheSize)
	client = ai.WithCircuitBreaker(client, ai.NewCircuitBreaker(provider, 5, 30*time.Second))
	return AIStack{Client: client, Transcriber: trans, Provider: provider}, nil
}
