package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/observability"
	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
)

// DeadLetterPublisher parks events that could not be indexed.
type DeadLetterPublisher interface {
	PublishDeadLetter(ctx context.Context, dl domain.DeadLetter) error
}

// AnswerIndexer stores every recorded answer in the interview memory.
type AnswerIndexer struct {
	memory domain.MemoryStore
	dlq    DeadLetterPublisher
	policy domain.RetryPolicy
}

// NewAnswerIndexer builds the handler used by the worker.
func NewAnswerIndexer(memory domain.MemoryStore, dlq DeadLetterPublisher, policy domain.RetryPolicy) *AnswerIndexer {
	if policy.MaxAttempts <= 0 {
		policy = domain.DefaultRetryPolicy()
	}
	return &AnswerIndexer{memory: memory, dlq: dlq, policy: policy}
}

// Handle decodes the event and saves it. Transient failures are retried per
// the policy; exhausted or permanent failures go to the dead-letter topic.
// It only returns an error when the dead-letter publish fails as well.
func (h *AnswerIndexer) Handle(ctx context.Context, rec *kgo.Record) error {
	observability.StartProcessingEvent(EventAnswerRecorded)

	var ev domain.AnswerRecordedEvent
	if err := json.Unmarshal(rec.Value, &ev); err != nil {
		slog.Error("undecodable answer event dropped",
			slog.Int64("offset", rec.Offset),
			slog.Int("partition", int(rec.Partition)),
			slog.Any("error", err))
		observability.FailEvent(EventAnswerRecorded)
		return nil
	}

	attempts := 0
	op := func() error {
		attempts++
		err := h.memory.SaveQA(ctx, recordFromEvent(ev))
		if err != nil && !domain.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	err := backoff.RetryNotify(op, backoff.WithContext(h.backoff(), ctx), func(err error, next time.Duration) {
		slog.Warn("indexing answer failed, retrying",
			slog.String("answer_id", ev.AnswerID),
			slog.Int("attempt", attempts),
			slog.Duration("next", next),
			slog.Any("error", err))
	})
	if err == nil {
		observability.CompleteEvent(EventAnswerRecorded)
		slog.Debug("answer indexed", slog.String("answer_id", ev.AnswerID), slog.Int("attempts", attempts))
		return nil
	}

	observability.FailEvent(EventAnswerRecorded)
	slog.Error("indexing answer failed, moving to dead-letter topic",
		slog.String("answer_id", ev.AnswerID),
		slog.Int("attempts", attempts),
		slog.Any("error", err))
	if h.dlq == nil {
		return nil
	}
	dl := domain.DeadLetter{Event: ev, Attempts: attempts, Reason: err.Error(), FailedAt: time.Now().UTC()}
	if dlqErr := h.dlq.PublishDeadLetter(ctx, dl); dlqErr != nil {
		return fmt.Errorf("op=redpanda.AnswerIndexer.Handle: %w", dlqErr)
	}
	return nil
}

func (h *AnswerIndexer) backoff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(h.policy.InitialDelay),
		backoff.WithMaxInterval(h.policy.MaxDelay),
		backoff.WithMultiplier(h.policy.Multiplier),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithMaxRetries(eb, uint64(h.policy.MaxAttempts-1))
}

func recordFromEvent(ev domain.AnswerRecordedEvent) domain.QARecord {
	return domain.QARecord{
		ID:         ev.AnswerID,
		UserID:     ev.UserID,
		SessionID:  ev.SessionID,
		Question:   ev.Question,
		Answer:     ev.Answer,
		Confidence: ev.Confidence,
		Feedback:   ev.Feedback,
		Timestamp:  ev.RecordedAt,
	}
}
