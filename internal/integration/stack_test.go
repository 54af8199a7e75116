//go:build integration

// Package integration runs the adapters against real backing services
// started with testcontainers. Run with: go test -tags integration ./internal/integration/...
package integration

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	containerTypes "github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/ai/stub"
	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/repo/postgres"
	qdrantcli "github.com/fairyhunter13/ai-mock-interview/internal/adapter/vector/qdrant"
	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
	"github.com/fairyhunter13/ai-mock-interview/internal/feedback"
	"github.com/fairyhunter13/ai-mock-interview/internal/service/ratelimiter"
)

func start(t *testing.T, req tc.ContainerRequest) tc.Container {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })
	return c
}

func endpoint(t *testing.T, c tc.Container, port string) string {
	t.Helper()
	ctx := context.Background()
	host, err := c.Host(ctx)
	require.NoError(t, err)
	p, err := c.MappedPort(ctx, nat.Port(port))
	require.NoError(t, err)
	return net.JoinHostPort(host, p.Port())
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestPostgresRepositoriesAndCleanup(t *testing.T) {
	pg := start(t, tc.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "app"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(90 * time.Second),
	})
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, "postgres://postgres:postgres@"+endpoint(t, pg, "5432/tcp")+"/app?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.Migrate(ctx, pool))
	require.NoError(t, postgres.Migrate(ctx, pool), "migration must be idempotent")

	sessions := postgres.NewSessionRepo(pool)
	answers := postgres.NewAnswerRepo(pool)

	now := time.Now().UTC()
	sid, err := sessions.Create(ctx, domain.Session{
		ID: uuid.NewString(), UserID: "u-1", Mode: domain.ModeBank, Status: domain.SessionActive,
		Questions: []string{"Tell me about yourself."}, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	scorer := feedback.New(feedback.DefaultConfig())
	_, err = answers.Create(ctx, domain.Answer{
		ID: uuid.NewString(), SessionID: sid, UserID: "u-1", Question: "Tell me about yourself.",
		Text: "I led a migration that cut costs by 30%.", Source: domain.AnswerText,
		Feedback: scorer.Score("I led a migration that cut costs by 30%."), CreatedAt: now,
	})
	require.NoError(t, err)

	got, err := answers.ListBySession(ctx, sid)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u-1", got[0].UserID)

	sess, err := sessions.Get(ctx, sid)
	require.NoError(t, err)
	sess.Status = domain.SessionCompleted
	require.NoError(t, sessions.Update(ctx, sess))
	_, err = pool.Exec(ctx, `UPDATE sessions SET updated_at = $2 WHERE id = $1`, sid, now.AddDate(0, 0, -200))
	require.NoError(t, err)

	purged, err := postgres.NewCleanupService(pool, 90).CleanupOldData(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
	_, err = sessions.Get(ctx, sid)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	rd := start(t, tc.ContainerRequest{
		Image:        "redis:7",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	})
	rdb := redis.NewClient(&redis.Options{Addr: endpoint(t, rd, "6379/tcp")})
	t.Cleanup(func() { _ = rdb.Close() })

	limiter := ratelimiter.NewRedisLuaLimiter(rdb, pool, map[string]ratelimiter.BucketConfig{
		ratelimiter.UserAIPrefix: {Capacity: 2, RefillRate: 0.01},
	})
	key := ratelimiter.UserAIKey("u-1")
	for i := 0; i < 2; i++ {
		ok, _, err := limiter.Allow(ctx, key, 1)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, retry, err := limiter.Allow(ctx, key, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Positive(t, retry)

	require.NoError(t, rdb.FlushAll(ctx).Err())
	require.NoError(t, limiter.WarmFromPostgres(ctx))
	ok, _, err = limiter.Allow(ctx, key, 1)
	require.NoError(t, err)
	assert.False(t, ok, "quota survives a redis flush")
}

func TestAnswerEventsAreIndexedIntoMemory(t *testing.T) {
	qd := start(t, tc.ContainerRequest{
		Image:        "qdrant/qdrant:v1.12.4",
		ExposedPorts: []string{"6333/tcp"},
		WaitingFor:   wait.ForHTTP("/collections").WithPort("6333/tcp").WithStartupTimeout(90 * time.Second),
	})
	qcli := qdrantcli.New("http://"+endpoint(t, qd, "6333/tcp"), "")
	memory := qdrantcli.NewMemoryStore(qcli, stub.New(16), "it_memory", 16)
	ctx := context.Background()
	require.NoError(t, memory.Ensure(ctx))

	port := freePort(t)
	req := tc.ContainerRequest{
		Image:        "redpandadata/redpanda:v24.3.7",
		ExposedPorts: []string{"9092/tcp"},
		Cmd: []string{
			"redpanda", "start",
			"--overprovisioned",
			"--smp", "1",
			"--memory", "512M",
			"--reserve-memory", "0M",
			"--check=false",
			"--kafka-addr", "PLAINTEXT://0.0.0.0:9092",
			"--advertise-kafka-addr", fmt.Sprintf("PLAINTEXT://127.0.0.1:%d", port),
			"--mode", "dev-container",
		},
		WaitingFor: wait.ForListeningPort("9092/tcp").WithStartupTimeout(60 * time.Second),
	}
	req.HostConfigModifier = func(hc *containerTypes.HostConfig) {
		if hc.PortBindings == nil {
			hc.PortBindings = nat.PortMap{}
		}
		hc.PortBindings[nat.Port("9092/tcp")] = []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: strconv.Itoa(port)}}
	}
	start(t, req)
	brokers := []string{fmt.Sprintf("127.0.0.1:%d", port)}

	producer, err := redpanda.NewProducer(ctx, brokers, "it-producer", "it-answers", "it-answers-dlq")
	require.NoError(t, err)
	t.Cleanup(func() { _ = producer.Close() })

	indexer := redpanda.NewAnswerIndexer(memory, producer, domain.DefaultRetryPolicy())
	consumer, err := redpanda.NewConsumer(brokers, "it-indexer", "it-answers", 2, indexer)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	runCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	go func() { _ = consumer.Run(runCtx) }()

	require.NoError(t, producer.PublishAnswerRecorded(ctx, domain.AnswerRecordedEvent{
		AnswerID:   uuid.NewString(),
		SessionID:  "s-1",
		UserID:     "u-it",
		Question:   "What is normalization in DBMS?",
		Answer:     "It reduces redundancy.",
		Confidence: 0.72,
		Tone:       "positive",
		RecordedAt: time.Now().UTC(),
	}))

	require.Eventually(t, func() bool {
		recs, err := memory.PreviousQA(ctx, "u-it", 5)
		return err == nil && len(recs) == 1 && recs[0].Question == "What is normalization in DBMS?"
	}, 60*time.Second, time.Second)

	require.NoError(t, memory.ForgetUser(ctx, "u-it"))
	recs, err := memory.PreviousQA(ctx, "u-it", 5)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
