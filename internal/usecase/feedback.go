package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/observability"
	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
	"github.com/fairyhunter13/ai-mock-interview/internal/feedback"
	obsctx "github.com/fairyhunter13/ai-mock-interview/internal/observability"
	"github.com/fairyhunter13/ai-mock-interview/pkg/textx"
)

// FeedbackService scores free text outside of a session.
type FeedbackService struct {
	scorer *feedback.Scorer
	coach  *CoachService
}

// NewFeedbackService constructs a FeedbackService. coach may be nil, which
// disables the model analysis.
func NewFeedbackService(scorer *feedback.Scorer, coach *CoachService) *FeedbackService {
	return &FeedbackService{scorer: scorer, coach: coach}
}

// FeedbackInput is the text to score.
type FeedbackInput struct {
	UserID          string
	Question        string
	Text            string
	DurationSeconds float64
	Analyze         bool
}

// FeedbackResult is the heuristic record plus the optional model analysis.
type FeedbackResult struct {
	Feedback feedback.Record          `json:"feedback"`
	Analysis *domain.AnalysisFeedback `json:"analysis,omitempty"`
	// AnalysisError explains a requested analysis that could not run.
	AnalysisError string `json:"analysis_error,omitempty"`
}

// Evaluate scores in.Text. A failed analysis is reported in the result and
// does not fail the call, except when the caller ran out of quota.
func (s *FeedbackService) Evaluate(ctx context.Context, in FeedbackInput) (FeedbackResult, error) {
	text := textx.SanitizeText(in.Text)
	if text == "" {
		return FeedbackResult{}, fmt.Errorf("%w: text required", domain.ErrInvalidArgument)
	}
	res := FeedbackResult{Feedback: s.scorer.Score(text)}
	observability.ObserveAnswerScored(string(res.Feedback.Tone), res.Feedback.ConfidenceScore)

	if !in.Analyze || s.coach == nil {
		return res, nil
	}
	analysis, err := s.coach.AnalyzeAnswer(ctx, in.UserID, in.Question, text, in.DurationSeconds)
	if err != nil {
		var qe *domain.QuotaExceededError
		if errors.As(err, &qe) {
			return FeedbackResult{}, err
		}
		obsctx.LoggerFromContext(ctx).Warn("feedback analysis failed", slog.Any("error", err))
		res.AnalysisError = err.Error()
		return res, nil
	}
	res.Analysis = &analysis
	return res, nil
}
