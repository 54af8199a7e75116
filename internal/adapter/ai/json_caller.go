package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
	"github.com/fairyhunter13/ai-mock-interview/internal/observability"
)

// JSONCaller asks the model for a JSON object, validates it against a schema
// and decodes it. A reply that fails cleaning, validation or decoding is
// retried once with the violations appended to the prompt; a second failure
// yields *domain.ParseError.
type JSONCaller struct {
	client domain.AIClient
}

// NewJSONCaller builds a JSONCaller over client.
func NewJSONCaller(client domain.AIClient) *JSONCaller {
	return &JSONCaller{client: client}
}

// Call fills out with the validated model reply.
func (j *JSONCaller) Call(ctx context.Context, schema Schema, system, user string, opts domain.ChatOptions, out any) error {
	prompt := user
	var last *domain.ParseError
	for attempt := 1; attempt <= 2; attempt++ {
		raw, err := j.client.ChatJSON(ctx, system, prompt, opts)
		if err != nil {
			return ModelError(err)
		}
		perr := decodeValidated(schema, raw, out)
		if perr == nil {
			return nil
		}
		last = perr
		observability.LoggerFromContext(ctx).Warn("model reply rejected",
			slog.String("schema", schema.Name),
			slog.Int("attempt", attempt),
			slog.String("reason", perr.Reason))
		prompt = user + "\n\nYour previous reply could not be used: " + perr.Reason +
			"\nReply again with only the JSON object, no prose and no markdown."
	}
	return last
}

func decodeValidated(schema Schema, raw string, out any) *domain.ParseError {
	cleaned := CleanJSONResponse(raw)
	if !json.Valid([]byte(cleaned)) {
		return &domain.ParseError{Schema: schema.Name, Raw: raw, Reason: "reply is not valid JSON"}
	}
	violations, err := schema.Validate(cleaned)
	if err != nil {
		return &domain.ParseError{Schema: schema.Name, Raw: raw, Reason: err.Error()}
	}
	if len(violations) > 0 {
		return &domain.ParseError{Schema: schema.Name, Raw: raw, Reason: strings.Join(violations, "; ")}
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return &domain.ParseError{Schema: schema.Name, Raw: raw, Reason: err.Error()}
	}
	return nil
}

// ModelError maps transport level failures onto the model error taxonomy.
func ModelError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrModelTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrUpstreamTimeout) {
		return fmt.Errorf("%w: %v", domain.ErrModelTimeout, err)
	}
	return err
}
