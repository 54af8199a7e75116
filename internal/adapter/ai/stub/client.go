// Package stub provides a deterministic AI client for local runs and tests.
package stub

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"strings"

	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
)

// Client answers every call without network access. Replies are stable for
// a given input so tests can assert on them.
type Client struct {
	dim int
}

// New returns a stub whose embeddings have dim components.
func New(dim int) *Client {
	if dim <= 0 {
		dim = 8
	}
	return &Client{dim: dim}
}

// Embed returns unit-ish vectors seeded from the text hash.
func (c *Client) Embed(_ domain.Context, texts []string) ([][]float32, error) {
	res := make([][]float32, len(texts))
	for i, t := range texts {
		res[i] = embedDeterministic(t, c.dim)
	}
	return res, nil
}

func embedDeterministic(text string, dim int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(text))))
	seed := h.Sum64()
	v := make([]float32, dim)
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		v[i] = float32(seed>>40)/float32(1<<24)*2 - 1
	}
	return v
}

// ChatJSON returns one object that satisfies every response schema used by
// the services.
func (c *Client) ChatJSON(_ domain.Context, _ string, _ string, _ domain.ChatOptions) (string, error) {
	days := make([]map[string]any, 7)
	for i := range days {
		days[i] = map[string]any{
			"day":   i + 1,
			"focus": fmt.Sprintf("Practice block %d", i+1),
			"tasks": []string{"Answer two questions aloud using STAR", "Review the recording for fillers"},
		}
	}
	payload := map[string]any{
		"confidence_score":   0.72,
		"filler_word_count":  1,
		"filler_words":       []string{"um"},
		"sentiment":          "Positive",
		"concise_summary":    "Candidate described their contribution with a clear outcome.",
		"feedback_tip":       "Add a metric that shows the impact.",
		"wpm_feedback":       "Pace is comfortable.",
		"clarity_score":      0.7,
		"pace_assessment":    "Good",
		"delivery_tip":       "Pause briefly between the situation and the result.",
		"questions":          []string{"Describe a project where you owned the outcome.", "How do you handle disagreements on design?", "Walk me through a production incident you resolved."},
		"overall_assessment": "Consistent answers with room to quantify results.",
		"strengths":          []string{"Clear structure"},
		"weaknesses":         []string{"Few concrete metrics"},
		"suggestions":        []string{"Prepare two stories with numbers"},
		"days":               days,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Chat echoes a short deterministic reply built from the prompt.
func (c *Client) Chat(_ domain.Context, _ string, user string, _ domain.ChatOptions) (string, error) {
	first := strings.TrimSpace(user)
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	if len(first) > 80 {
		first = first[:80]
	}
	return "In my last role I took ownership of this, set a clear plan, and delivered a measurable result. (" + first + ")", nil
}

// Transcribe reads the upload and reports a fixed transcript sized by the
// payload so duration based checks have something to work with.
func (c *Client) Transcribe(_ domain.Context, r io.Reader, _ string) (domain.Transcript, error) {
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return domain.Transcript{}, err
	}
	if n == 0 {
		return domain.Transcript{}, fmt.Errorf("%w: empty audio", domain.ErrInvalidArgument)
	}
	return domain.Transcript{
		Text:            "I led the migration and we reduced latency by forty percent.",
		DurationSeconds: float64(n) / 16000,
		Language:        "en",
	}, nil
}
