// Package app wires application components and startup helpers.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// CollectionEnsurer creates the interview memory collection when missing.
type CollectionEnsurer interface {
	Ensure(ctx context.Context) error
}

// EnsureMemoryCollection creates the memory collection, retrying while
// Qdrant starts up. Failure is logged and returned; the API still serves
// without history.
func EnsureMemoryCollection(ctx context.Context, store CollectionEnsurer, maxWait time.Duration) error {
	if store == nil {
		return nil
	}
	bo := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(200*time.Millisecond),
		backoff.WithMaxInterval(5*time.Second),
		backoff.WithMaxElapsedTime(maxWait),
	)
	err := backoff.RetryNotify(func() error { return store.Ensure(ctx) }, backoff.WithContext(bo, ctx),
		func(err error, next time.Duration) {
			slog.Warn("qdrant not ready, retrying", slog.Any("error", err), slog.Duration("next", next))
		})
	if err != nil {
		slog.Error("ensure memory collection failed", slog.Any("error", err))
	}
	return err
}
