package usecase

import (
	"log/slog"

	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/observability"
	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
	obsctx "github.com/fairyhunter13/ai-mock-interview/internal/observability"
	"github.com/fairyhunter13/ai-mock-interview/internal/service/ratelimiter"
)

// spendQuota charges one model call to userID. Limiter failures let the
// call through.
func spendQuota(ctx domain.Context, limiter domain.QuotaLimiter, userID, operation string) error {
	if limiter == nil || userID == "" {
		return nil
	}
	allowed, retryAfter, err := limiter.Allow(ctx, ratelimiter.UserAIKey(userID), 1)
	if err != nil {
		obsctx.LoggerFromContext(ctx).Warn("quota check failed, allowing call",
			slog.String("operation", operation),
			slog.Any("error", err))
		return nil
	}
	if !allowed {
		observability.RecordQuotaRejection(operation)
		return &domain.QuotaExceededError{Operation: operation, RetryAfter: retryAfter}
	}
	return nil
}
