package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrRateLimited       = errors.New("rate limited")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrUpstreamRateLimit = errors.New("upstream rate limit")
	ErrSchemaInvalid     = errors.New("schema invalid")
	ErrInternal          = errors.New("internal error")
)

// External collaborator failures. Callers branch on these to decide between
// retrying, degrading and surfacing the problem.
var (
	// ErrTranscriptionUnavailable means no transcript could be produced for the audio.
	ErrTranscriptionUnavailable = errors.New("transcription unavailable")
	// ErrModelResponseMalformed means the model answered with something unusable.
	ErrModelResponseMalformed = errors.New("model response malformed")
	// ErrModelTimeout means the model did not answer within the deadline.
	// It wraps ErrUpstreamTimeout so HTTP mapping stays uniform.
	ErrModelTimeout = fmt.Errorf("model timeout: %w", ErrUpstreamTimeout)
	// ErrSessionCompleted rejects answers to a session that was closed.
	ErrSessionCompleted = fmt.Errorf("session completed: %w", ErrConflict)
)

// ParseError reports a model payload that failed decoding or schema validation.
type ParseError struct {
	Schema string
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s response: %s", e.Schema, e.Reason)
}

// Unwrap lets errors.Is(err, ErrModelResponseMalformed) match.
func (e *ParseError) Unwrap() error { return ErrModelResponseMalformed }

// QuotaExceededError rejects a model call that would exceed the caller's quota.
type QuotaExceededError struct {
	Operation  string
	RetryAfter time.Duration
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s quota exceeded, retry after %s", e.Operation, e.RetryAfter.Round(time.Second))
}

// Unwrap lets errors.Is(err, ErrRateLimited) match.
func (e *QuotaExceededError) Unwrap() error { return ErrRateLimited }
