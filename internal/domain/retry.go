package domain

import (
	"errors"
	"time"
)

// RetryPolicy defines how background event processing retries failures
// before the event is parked on the dead-letter topic.
type RetryPolicy struct {
	// MaxAttempts counts the first attempt too.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy returns the policy used by the answer indexer.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  4,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// Retryable reports whether err is worth another attempt. Caller mistakes
// and malformed payloads are final; everything else is assumed transient.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrSchemaInvalid),
		errors.Is(err, ErrModelResponseMalformed):
		return false
	}
	return true
}

// DeadLetter is an event that exhausted its retries.
type DeadLetter struct {
	Event    AnswerRecordedEvent `json:"event"`
	Attempts int                 `json:"attempts"`
	Reason   string              `json:"reason"`
	FailedAt time.Time           `json:"failed_at"`
}
