// Package tokencount counts and trims prompt text with tiktoken-go so that
// interview history and resume excerpts fit the model context budget.
package tokencount

import (
	"log/slog"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Counter provides thread-safe token counting for LLM models.
type Counter struct {
	encodingCache map[string]*tiktoken.Tiktoken
	mu            sync.RWMutex
}

// NewCounter creates a new token counter instance.
func NewCounter() *Counter {
	return &Counter{
		encodingCache: make(map[string]*tiktoken.Tiktoken),
	}
}

// DefaultCounter is a global token counter instance.
var DefaultCounter = NewCounter()

func (c *Counter) encoding(model string) (*tiktoken.Tiktoken, error) {
	normalized := normalizeModelName(model)

	c.mu.RLock()
	if enc, ok := c.encodingCache[normalized]; ok {
		c.mu.RUnlock()
		return enc, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encodingCache[normalized]; ok {
		return enc, nil
	}

	enc, err := tiktoken.EncodingForModel(normalized)
	if err != nil {
		slog.Debug("falling back to cl100k_base encoding",
			slog.String("model", model),
			slog.Any("error", err))
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	c.encodingCache[normalized] = enc
	return enc, nil
}

// normalizeModelName maps provider model IDs onto a tiktoken model. Anything
// that is not a GPT-3.5 model shares the cl100k_base vocabulary closely
// enough for budgeting.
func normalizeModelName(model string) string {
	model = strings.ToLower(model)
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	model = strings.TrimSuffix(model, ":free")
	if strings.Contains(model, "gpt-3.5") {
		return "gpt-3.5-turbo"
	}
	return "gpt-4"
}

// CountTokens counts the tokens of text. When no encoding can be loaded it
// estimates four characters per token.
func (c *Counter) CountTokens(text, model string) int {
	enc, err := c.encoding(model)
	if err != nil {
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// CountChatTokens counts tokens for a system plus user chat request,
// including the per message overhead of OpenAI compatible APIs.
func (c *Counter) CountChatTokens(systemPrompt, userPrompt, model string) int {
	const tokensPerMessage, replyPriming = 4, 3
	return 2*tokensPerMessage + c.CountTokens(systemPrompt, model) + c.CountTokens(userPrompt, model) + replyPriming
}

// Truncate cuts text to at most maxTokens tokens.
func (c *Counter) Truncate(text string, maxTokens int, model string) string {
	if maxTokens <= 0 {
		return ""
	}
	enc, err := c.encoding(model)
	if err != nil {
		if n := maxTokens * 4; len(text) > n {
			return text[:n]
		}
		return text
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return enc.Decode(tokens[:maxTokens])
}

// FitRecent keeps the longest suffix of entries whose total token count is
// within budget. Entries are ordered oldest first, so the newest survive.
func (c *Counter) FitRecent(entries []string, budget int, model string) []string {
	used := 0
	start := len(entries)
	for i := len(entries) - 1; i >= 0; i-- {
		n := c.CountTokens(entries[i], model)
		if used+n > budget {
			break
		}
		used += n
		start = i
	}
	return entries[start:]
}
