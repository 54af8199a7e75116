package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
)

// historyQuery is the probe text used to pull a user's past answers.
const historyQuery = "mock interview"

// Embedder turns documents into vectors.
type Embedder interface {
	Embed(ctx domain.Context, texts []string) ([][]float32, error)
}

// MemoryStore keeps question/answer pairs per user in one collection and
// implements domain.MemoryStore.
type MemoryStore struct {
	client     *Client
	embedder   Embedder
	collection string
	dim        int
}

// NewMemoryStore builds a store over collection with vectors of size dim.
func NewMemoryStore(client *Client, embedder Embedder, collection string, dim int) *MemoryStore {
	return &MemoryStore{client: client, embedder: embedder, collection: collection, dim: dim}
}

// Ensure creates the collection when missing.
func (m *MemoryStore) Ensure(ctx context.Context) error {
	return m.client.EnsureCollection(ctx, m.collection, m.dim, "Cosine")
}

// SaveQA embeds the record document and stores it with its metadata.
func (m *MemoryStore) SaveQA(ctx domain.Context, r domain.QARecord) error {
	if r.UserID == "" {
		return fmt.Errorf("%w: user_id required", domain.ErrInvalidArgument)
	}
	vecs, err := m.embedder.Embed(ctx, []string{r.Document()})
	if err != nil {
		return fmt.Errorf("embed qa: %w", err)
	}
	if len(vecs) != 1 {
		return fmt.Errorf("embed qa: got %d vectors", len(vecs))
	}
	id := r.ID
	if _, err := uuid.Parse(id); err != nil {
		// Qdrant ids must be UUIDs or integers; derive a stable one.
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(r.UserID+"|"+r.ID+"|"+r.Document())).String()
	}
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return m.client.UpsertPoints(ctx, m.collection, []Point{{
		ID:     id,
		Vector: vecs[0],
		Payload: map[string]any{
			"user_id":    r.UserID,
			"session_id": r.SessionID,
			"question":   r.Question,
			"answer":     r.Answer,
			"document":   r.Document(),
			"confidence": r.Confidence,
			"feedback":   r.Feedback,
			"timestamp":  ts.Format(time.RFC3339),
		},
	}})
}

// PreviousQA returns up to limit stored records for userID, most relevant
// to a generic interview probe first.
func (m *MemoryStore) PreviousQA(ctx domain.Context, userID string, limit int) ([]domain.QARecord, error) {
	if limit <= 0 {
		limit = 5
	}
	vecs, err := m.embedder.Embed(ctx, []string{historyQuery})
	if err != nil {
		return nil, fmt.Errorf("embed history probe: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed history probe: got %d vectors", len(vecs))
	}
	hits, err := m.client.Search(ctx, m.collection, vecs[0], limit, MatchKeyword("user_id", userID))
	if err != nil {
		return nil, err
	}
	out := make([]domain.QARecord, 0, len(hits))
	for _, h := range hits {
		out = append(out, recordFromPayload(h.ID, h.Payload))
	}
	return out, nil
}

// ForgetUser removes all records of userID.
func (m *MemoryStore) ForgetUser(ctx context.Context, userID string) error {
	return m.client.DeletePoints(ctx, m.collection, MatchKeyword("user_id", userID))
}

// Reset drops and recreates the collection, then stores seed.
func (m *MemoryStore) Reset(ctx context.Context, seed []domain.QARecord) error {
	if err := m.client.DeleteCollection(ctx, m.collection); err != nil {
		return err
	}
	if err := m.Ensure(ctx); err != nil {
		return err
	}
	for _, r := range seed {
		if err := m.SaveQA(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func recordFromPayload(id any, p map[string]any) domain.QARecord {
	str := func(k string) string {
		s, _ := p[k].(string)
		return s
	}
	r := domain.QARecord{
		ID:        fmt.Sprint(id),
		UserID:    str("user_id"),
		SessionID: str("session_id"),
		Question:  str("question"),
		Answer:    str("answer"),
		Feedback:  str("feedback"),
	}
	if c, ok := p["confidence"].(float64); ok {
		r.Confidence = c
	}
	if ts, err := time.Parse(time.RFC3339, str("timestamp")); err == nil {
		r.Timestamp = ts
	}
	return r
}

// DemoSeed is the record stored by a demo reset.
func DemoSeed() []domain.QARecord {
	return []domain.QARecord{{
		ID:         "demo_1",
		UserID:     "demo",
		Question:   "What is normalization in DBMS?",
		Answer:     "To reduce redundancy.",
		Confidence: 0.9,
	}}
}
