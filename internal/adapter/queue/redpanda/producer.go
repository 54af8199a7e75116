// Package redpanda carries interview events over Redpanda (Kafka API).
//
// The server publishes answer.recorded events transactionally; the worker
// consumes them in a consumer group and indexes each answer into the
// interview memory, parking events that keep failing on a dead-letter topic.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/observability"
	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
)

// EventAnswerRecorded is the value of the event_type header on answer events.
const EventAnswerRecorded = "answer.recorded"

// txnClient is the part of *kgo.Client the producer needs.
type txnClient interface {
	BeginTransaction() error
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	EndTransaction(ctx context.Context, commit kgo.TransactionEndTry) error
	Ping(ctx context.Context) error
	Close()
}

// Producer publishes interview events. It implements domain.EventPublisher.
type Producer struct {
	client   txnClient
	topic    string
	dlqTopic string
	// Transactions on one client must not overlap.
	txn chan struct{}
}

// NewProducer connects a transactional producer and makes sure both
// topics exist.
func NewProducer(ctx context.Context, brokers []string, transactionalID, topic, dlqTopic string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.NewProducer: no seed brokers provided")
	}
	slog.Info("creating redpanda producer", slog.Any("brokers", brokers), slog.String("transactional_id", transactionalID))

	k := kotel.NewKotel(kotel.WithTracer(kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))))
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.TransactionalID(transactionalID),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1_000_000),
		kgo.WithHooks(k.Hooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.NewProducer: %w", err)
	}
	for _, t := range []string{topic, dlqTopic} {
		if err := EnsureTopic(ctx, client, t, 3, 1); err != nil {
			slog.Warn("failed to ensure topic", slog.String("topic", t), slog.Any("error", err))
		}
	}
	return newProducer(client, topic, dlqTopic), nil
}

func newProducer(client txnClient, topic, dlqTopic string) *Producer {
	return &Producer{client: client, topic: topic, dlqTopic: dlqTopic, txn: make(chan struct{}, 1)}
}

// PublishAnswerRecorded publishes ev keyed by user so one user's answers
// stay ordered.
func (p *Producer) PublishAnswerRecorded(ctx domain.Context, ev domain.AnswerRecordedEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("op=redpanda.PublishAnswerRecorded: marshal: %w", err)
	}
	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(ev.UserID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(EventAnswerRecorded)},
			{Key: "answer_id", Value: []byte(ev.AnswerID)},
			{Key: "session_id", Value: []byte(ev.SessionID)},
		},
	}
	err = p.produce(ctx, rec)
	observability.RecordPublish(p.topic, err)
	if err != nil {
		return fmt.Errorf("op=redpanda.PublishAnswerRecorded: %w", err)
	}
	slog.Debug("answer event published", slog.String("answer_id", ev.AnswerID), slog.String("topic", p.topic))
	return nil
}

// PublishDeadLetter parks an event that exhausted its retries.
func (p *Producer) PublishDeadLetter(ctx context.Context, dl domain.DeadLetter) error {
	if dl.FailedAt.IsZero() {
		dl.FailedAt = time.Now().UTC()
	}
	b, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("op=redpanda.PublishDeadLetter: marshal: %w", err)
	}
	rec := &kgo.Record{
		Topic: p.dlqTopic,
		Key:   []byte(dl.Event.AnswerID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(EventAnswerRecorded)},
			{Key: "reason", Value: []byte(dl.Reason)},
		},
	}
	err = p.produce(ctx, rec)
	observability.RecordPublish(p.dlqTopic, err)
	if err != nil {
		return fmt.Errorf("op=redpanda.PublishDeadLetter: %w", err)
	}
	return nil
}

func (p *Producer) produce(ctx context.Context, rec *kgo.Record) error {
	select {
	case p.txn <- struct{}{}:
		defer func() { <-p.txn }()
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := p.client.BeginTransaction(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		if abortErr := p.client.EndTransaction(ctx, kgo.TryAbort); abortErr != nil {
			slog.Error("failed to abort transaction", slog.Any("error", abortErr))
		}
		return fmt.Errorf("produce: %w", err)
	}
	if err := p.client.EndTransaction(ctx, kgo.TryCommit); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Ping checks broker connectivity.
func (p *Producer) Ping(ctx context.Context) error { return p.client.Ping(ctx) }

// Close flushes and closes the client.
func (p *Producer) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}
