package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	httpserver "github.com/fairyhunter13/ai-mock-interview/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-mock-interview/internal/config"
)

// Pinger is anything that can report its own reachability.
type Pinger interface{ Ping(ctx context.Context) error }

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// RedisPinger adapts a go-redis client to Pinger.
func RedisPinger(rdb *redis.Client) Pinger {
	if rdb == nil {
		return nil
	}
	return PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
}

// Dependencies are the backends probed by /readyz. A nil entry is reported
// as not configured, except Tika and Kafka which are optional.
type Dependencies struct {
	DB     Pinger
	Redis  Pinger
	Qdrant Pinger
	Kafka  Pinger
}

// BuildReadinessChecks returns the readiness checks for db, redis, qdrant,
// kafka (when configured) and tika (when TIKA_URL is set).
func BuildReadinessChecks(cfg config.Config, deps Dependencies) []httpserver.Check {
	required := func(name string, p Pinger) httpserver.Check {
		return httpserver.Check{Name: name, Probe: func(ctx context.Context) error {
			if p == nil {
				return fmt.Errorf("%s not configured", name)
			}
			return p.Ping(ctx)
		}}
	}
	checks := []httpserver.Check{
		required("db", deps.DB),
		required("redis", deps.Redis),
		required("qdrant", deps.Qdrant),
	}
	if deps.Kafka != nil {
		checks = append(checks, required("kafka", deps.Kafka))
	}
	if cfg.TikaURL != "" {
		checks = append(checks, httpserver.Check{Name: "tika", Probe: tikaProbe(cfg.TikaURL)})
	}
	return checks
}

func tikaProbe(baseURL string) func(ctx context.Context) error {
	client := &http.Client{Timeout: 2 * time.Second}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/version", nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		return fmt.Errorf("tika status %d", resp.StatusCode)
	}
}
