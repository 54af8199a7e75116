package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
)

type constEmbedder struct{ err error }

func (e constEmbedder) Embed(_ domain.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.5, 0.5}
	}
	return out, nil
}

// fakeQdrant keeps upserted points in memory and answers searches by
// filtering on user_id.
type fakeQdrant struct {
	mu       sync.Mutex
	points   []Point
	requests []string
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	switch {
	case r.Method == http.MethodPut && strings.HasSuffix(r.URL.Path, "/points"):
		var body struct {
			Points []Point `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.points = append(f.points, body.Points...)
	case strings.HasSuffix(r.URL.Path, "/points/search"):
		var body struct {
			Limit  int    `json:"limit"`
			Filter Filter `json:"filter"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		user := body.Filter.Must[0].Match["value"]
		res := []ScoredPoint{}
		for _, p := range f.points {
			if p.Payload["user_id"] == user && len(res) < body.Limit {
				res = append(res, ScoredPoint{ID: p.ID, Score: 1, Payload: p.Payload})
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": res})
		return
	case r.Method == http.MethodDelete:
		f.points = nil
	case r.Method == http.MethodGet:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func TestMemoryStore_SaveAndRecall(t *testing.T) {
	t.Parallel()

	fq := &fakeQdrant{}
	ts := httptest.NewServer(fq)
	defer ts.Close()

	m := NewMemoryStore(New(ts.URL, ""), constEmbedder{}, "memory", 2)
	ctx := context.Background()

	require.NoError(t, m.SaveQA(ctx, domain.QARecord{ID: "a1", UserID: "u1", Question: "Why us?", Answer: "Mission.", Confidence: 0.8, Feedback: "tone: Positive"}))
	require.NoError(t, m.SaveQA(ctx, domain.QARecord{ID: "a2", UserID: "u2", Question: "Q2", Answer: "A2"}))

	got, err := m.PreviousQA(ctx, "u1", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Why us?", got[0].Question)
	assert.Equal(t, "Mission.", got[0].Answer)
	assert.InDelta(t, 0.8, got[0].Confidence, 1e-9)
	assert.False(t, got[0].Timestamp.IsZero())
	assert.Equal(t, "Q: Why us?\nA: Mission.", fq.points[0].Payload["document"])

	none, err := m.PreviousQA(ctx, "nobody", 0)
	require.NoError(t, err)
	assert.Equal(t, domain.NoHistory, domain.FormatHistory(none))
}

func TestMemoryStore_Errors(t *testing.T) {
	t.Parallel()

	m := NewMemoryStore(New("http://127.0.0.1:1", ""), constEmbedder{err: errors.New("no embeddings")}, "memory", 2)
	require.ErrorIs(t, m.SaveQA(context.Background(), domain.QARecord{}), domain.ErrInvalidArgument)
	require.Error(t, m.SaveQA(context.Background(), domain.QARecord{UserID: "u"}))
	_, err := m.PreviousQA(context.Background(), "u", 3)
	require.Error(t, err)
}

func TestMemoryStore_Reset(t *testing.T) {
	t.Parallel()

	fq := &fakeQdrant{}
	ts := httptest.NewServer(fq)
	defer ts.Close()

	m := NewMemoryStore(New(ts.URL, ""), constEmbedder{}, "memory", 2)
	ctx := context.Background()
	require.NoError(t, m.SaveQA(ctx, domain.QARecord{UserID: "u1", Question: "q", Answer: "a"}))
	require.NoError(t, m.Reset(ctx, DemoSeed()))

	require.Len(t, fq.points, 1)
	assert.Equal(t, "demo", fq.points[0].Payload["user_id"])
	assert.Contains(t, fq.requests, "DELETE /collections/memory")
	assert.Contains(t, fq.requests, "PUT /collections/memory")
}
