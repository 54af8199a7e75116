package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
)

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(_ domain.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return out, nil
}

func messageServer(t *testing.T, status int, check func(map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if check != nil {
			check(body)
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"{\"questions\":[\"Why this team?\"]}"}],
			"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}`))
	}))
}

func TestClient_ChatJSON(t *testing.T) {
	t.Parallel()

	ts := messageServer(t, http.StatusOK, func(body map[string]any) {
		assert.Equal(t, "claude-test", body["model"])
		assert.EqualValues(t, 300, body["max_tokens"])
		system, _ := json.Marshal(body["system"])
		assert.Contains(t, string(system), "single JSON object")
	})
	defer ts.Close()

	c := New("k", "claude-test", fixedEmbedder{}, option.WithBaseURL(ts.URL), option.WithMaxRetries(0))
	out, err := c.ChatJSON(context.Background(), "You are an interviewer.", "Generate.", domain.ChatOptions{MaxTokens: 300, Temperature: 0.25})
	require.NoError(t, err)
	assert.JSONEq(t, `{"questions":["Why this team?"]}`, out)
}

func TestClient_ErrorMapping(t *testing.T) {
	t.Parallel()

	ts := messageServer(t, http.StatusTooManyRequests, nil)
	defer ts.Close()
	c := New("k", "claude-test", nil, option.WithBaseURL(ts.URL), option.WithMaxRetries(0))
	_, err := c.Chat(context.Background(), "s", "u", domain.ChatOptions{})
	require.ErrorIs(t, err, domain.ErrUpstreamRateLimit)

	bad := messageServer(t, http.StatusBadRequest, nil)
	defer bad.Close()
	c = New("k", "claude-test", nil, option.WithBaseURL(bad.URL), option.WithMaxRetries(0))
	_, err = c.Chat(context.Background(), "s", "u", domain.ChatOptions{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUpstreamTimeout)
}

func TestClient_EmbedDelegates(t *testing.T) {
	t.Parallel()

	vecs, err := New("k", "m", fixedEmbedder{}).Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)

	_, err = New("k", "m", nil).Embed(context.Background(), []string{"a"})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}
