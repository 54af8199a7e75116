package ai

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
)

// fakeAI replays scripted chat replies and counts calls.
type fakeAI struct {
	mu         sync.Mutex
	embedCalls int
	embedErr   error
	replies    []string
	errs       []error
	chatCalls  int
	prompts    []string
}

func (f *fakeAI) Embed(_ domain.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 2, 3}
	}
	return out, nil
}

func (f *fakeAI) next(user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.chatCalls
	f.chatCalls++
	f.prompts = append(f.prompts, user)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	reply := ""
	if i < len(f.replies) {
		reply = f.replies[i]
	} else if len(f.replies) > 0 {
		reply = f.replies[len(f.replies)-1]
	}
	return reply, err
}

func (f *fakeAI) ChatJSON(_ domain.Context, _ string, user string, _ domain.ChatOptions) (string, error) {
	return f.next(user)
}

func (f *fakeAI) Chat(_ domain.Context, _ string, user string, _ domain.ChatOptions) (string, error) {
	return f.next(user)
}

func Test_NewEmbedCache_UsesCache(t *testing.T) {
	t.Parallel()

	base := &fakeAI{}
	wrapped := NewEmbedCache(base, 8)
	ctx := context.Background()

	first, err := wrapped.Embed(ctx, []string{"hello", "world"})
	require.NoError(t, err)
	second, err := wrapped.Embed(ctx, []string{"hello", " world "})
	require.NoError(t, err)

	assert.Equal(t, 1, base.embedCalls)
	assert.Equal(t, first, second)

	_, err = wrapped.Embed(ctx, []string{"hello", "new"})
	require.NoError(t, err)
	assert.Equal(t, 2, base.embedCalls)
}

func Test_NewEmbedCache_Eviction(t *testing.T) {
	t.Parallel()

	base := &fakeAI{}
	wrapped := NewEmbedCache(base, 2)
	ctx := context.Background()

	for _, s := range []string{"a", "b", "c"} {
		_, err := wrapped.Embed(ctx, []string{s})
		require.NoError(t, err)
	}
	_, err := wrapped.Embed(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 4, base.embedCalls)
}

func Test_NewEmbedCache_PassThrough(t *testing.T) {
	t.Parallel()

	base := &fakeAI{replies: []string{"{}"}, embedErr: errors.New("down")}
	assert.Same(t, domain.AIClient(base), NewEmbedCache(base, 0))

	wrapped := NewEmbedCache(base, 4)
	_, err := wrapped.Embed(context.Background(), []string{"x"})
	require.Error(t, err)

	out, err := wrapped.ChatJSON(context.Background(), "s", "u", domain.ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "{}", out)
}
