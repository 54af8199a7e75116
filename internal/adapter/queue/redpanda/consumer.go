package redpanda

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

// RecordHandler processes one record. A returned error stops the current
// batch of that partition and rewinds the partition to the failed record, so
// it is fetched again on a later poll.
type RecordHandler interface {
	Handle(ctx context.Context, rec *kgo.Record) error
}

// fetchClient is the part of *kgo.Client the consumer needs.
type fetchClient interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
	SetOffsets(offsets map[string]map[int32]kgo.EpochOffset)
	Ping(ctx context.Context) error
	Close()
}

// Consumer reads a topic in a consumer group and fans partitions out to a
// bounded set of workers. Records of one partition are handled in order.
type Consumer struct {
	client  fetchClient
	handler RecordHandler
	workers int
	topic   string
	groupID string

	// retryDelay is waited before a failed record is fetched again.
	retryDelay time.Duration
}

// NewConsumer joins groupID on topic. Offsets are committed only after the
// handler succeeded.
func NewConsumer(brokers []string, groupID, topic string, workers int, handler RecordHandler) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.NewConsumer: no seed brokers provided")
	}
	if groupID == "" {
		return nil, fmt.Errorf("op=redpanda.NewConsumer: missing required group ID")
	}
	slog.Info("creating redpanda consumer", slog.Any("brokers", brokers), slog.String("group_id", groupID), slog.String("topic", topic))

	k := kotel.NewKotel(kotel.WithTracer(kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))))
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.RequireStableFetchOffsets(),
		kgo.DisableAutoCommit(),
		kgo.WithHooks(k.Hooks()...),
		kgo.DialTimeout(10*time.Second),
		kgo.SessionTimeout(30*time.Second),
		kgo.HeartbeatInterval(3*time.Second),
		kgo.FetchMaxWait(5*time.Second),
		kgo.FetchMaxPartitionBytes(2*1024*1024),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.NewConsumer: %w", err)
	}
	if err := EnsureTopic(context.Background(), client, topic, 3, 1); err != nil {
		slog.Warn("failed to ensure topic", slog.String("topic", topic), slog.Any("error", err))
	}
	return newConsumer(client, handler, workers, topic, groupID), nil
}

func newConsumer(client fetchClient, handler RecordHandler, workers int, topic, groupID string) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{client: client, handler: handler, workers: workers, topic: topic, groupID: groupID, retryDelay: time.Second}
}

// Run polls until ctx is cancelled or the client is closed.
func (c *Consumer) Run(ctx context.Context) error {
	slog.Info("redpanda consumer started", slog.String("topic", c.topic), slog.String("group_id", c.groupID), slog.Int("workers", c.workers))
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if ctx.Err() != nil {
			slog.Info("redpanda consumer stopping")
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			slog.Error("fetch error", slog.String("topic", topic), slog.Int("partition", int(partition)), slog.Any("error", err))
		})
		c.process(ctx, fetches)
	}
}

// process hands each partition to a worker, commits what succeeded and
// rewinds partitions whose batch stopped on a failure.
func (c *Consumer) process(ctx context.Context, fetches kgo.Fetches) {
	var g errgroup.Group
	g.SetLimit(c.workers)
	fetches.EachPartition(func(p kgo.FetchTopicPartition) {
		if len(p.Records) == 0 {
			return
		}
		g.Go(func() error {
			done, failed := c.handlePartition(ctx, p.Records)
			if len(done) > 0 {
				if err := c.client.CommitRecords(ctx, done...); err != nil {
					slog.Error("commit failed", slog.String("topic", p.Topic), slog.Int("partition", int(p.Partition)), slog.Any("error", err))
				}
			}
			if failed != nil {
				c.rewind(ctx, failed)
			}
			return nil
		})
	})
	_ = g.Wait()
}

// handlePartition stops at the first failure and returns the handled prefix
// together with the record that failed.
func (c *Consumer) handlePartition(ctx context.Context, records []*kgo.Record) ([]*kgo.Record, *kgo.Record) {
	done := make([]*kgo.Record, 0, len(records))
	for _, rec := range records {
		if err := c.handler.Handle(ctx, rec); err != nil {
			slog.Error("record handling failed, partition rewound",
				slog.String("topic", rec.Topic),
				slog.Int("partition", int(rec.Partition)),
				slog.Int64("offset", rec.Offset),
				slog.Any("error", err))
			return done, rec
		}
		done = append(done, rec)
	}
	return done, nil
}

// rewind moves the fetch position of rec's partition back to rec. Buffered
// records after it are dropped by the client, so nothing past the failure is
// committed before it succeeds.
func (c *Consumer) rewind(ctx context.Context, rec *kgo.Record) {
	if c.retryDelay > 0 {
		t := time.NewTimer(c.retryDelay)
		select {
		case <-ctx.Done():
		case <-t.C:
		}
		t.Stop()
	}
	c.client.SetOffsets(map[string]map[int32]kgo.EpochOffset{
		rec.Topic: {rec.Partition: {Epoch: rec.LeaderEpoch, Offset: rec.Offset}},
	})
}

// Ping checks broker connectivity.
func (c *Consumer) Ping(ctx context.Context) error { return c.client.Ping(ctx) }

// Close leaves the group and closes the client.
func (c *Consumer) Close() {
	if c.client != nil {
		c.client.Close()
	}
}
