package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CleanupService deletes sessions (and, by cascade, their answers) older
// than the retention period.
type CleanupService struct {
	Pool          PgxPool
	RetentionDays int
	now           func() time.Time
}

// NewCleanupService creates a new cleanup service
func NewCleanupService(pool PgxPool, retentionDays int) *CleanupService {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &CleanupService{Pool: pool, RetentionDays: retentionDays, now: time.Now}
}

// CleanupOldData removes expired sessions and returns how many were deleted.
func (s *CleanupService) CleanupOldData(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -s.RetentionDays)
	tag, err := s.Pool.Exec(ctx, `DELETE FROM sessions WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("op=cleanup.sessions: %w", err)
	}
	deleted := tag.RowsAffected()
	slog.Info("data cleanup completed",
		slog.Int64("deleted_sessions", deleted),
		slog.Time("cutoff", cutoff))
	return deleted, nil
}
