package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-mock-interview/internal/config"
	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
)

func TestBuildAI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		cfg           config.Config
		wantProvider  string
		wantTranscrib bool
		wantErr       bool
	}{
		{name: "stub", cfg: config.Config{AIProvider: "stub", EmbeddingsDim: 4}, wantProvider: "stub", wantTranscrib: true},
		{name: "openai with key", cfg: config.Config{AIProvider: "openai", OpenAIAPIKey: "k"}, wantProvider: "openai", wantTranscrib: true},
		{name: "openrouter without openai key", cfg: config.Config{AIProvider: "openrouter", OpenRouterAPIKey: "k"}, wantProvider: "openai"},
		{name: "anthropic", cfg: config.Config{AIProvider: "anthropic", AnthropicAPIKey: "a", OpenAIAPIKey: "k"}, wantProvider: "anthropic", wantTranscrib: true},
		{name: "anthropic without key", cfg: config.Config{AIProvider: "anthropic"}, wantErr: true},
		{name: "unknown", cfg: config.Config{AIProvider: "bard"}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			stack, err := BuildAI(tc.cfg)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantProvider, stack.Provider)
			assert.NotNil(t, stack.Client)
			assert.Equal(t, tc.wantTranscrib, stack.Transcriber != nil)
		})
	}
}

func TestBuildAI_StubEmbedsThroughWrappers(t *testing.T) {
	t.Parallel()

	stack, err := BuildAI(config.Config{AIProvider: "stub", EmbeddingsDim: 4, EmbedCacheSize: 8})
	require.NoError(t, err)
	vecs, err := stack.Client.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Len(t, vecs[0], 4)

	_, err = stack.Client.Chat(context.Background(), "sys", "user", domain.ChatOptions{})
	assert.NoError(t, err)
}
