package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/observability"
)

// Purger deletes expired interview data and reports how many sessions went.
type Purger interface {
	CleanupOldData(ctx context.Context) (int64, error)
}

// ScheduleCleanup registers p on a cron scheduler using a five-field spec.
// The caller starts and stops the returned scheduler.
func ScheduleCleanup(spec string, p Purger, timeout time.Duration) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() { runCleanup(p, timeout) }); err != nil {
		return nil, fmt.Errorf("op=app.ScheduleCleanup: invalid schedule %q: %w", spec, err)
	}
	return c, nil
}

func runCleanup(p Purger, timeout time.Duration) {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	n, err := p.CleanupOldData(ctx)
	if err != nil {
		slog.Error("scheduled cleanup failed", slog.Any("error", err))
		return
	}
	observability.RecordSessionsPurged(n)
}
