package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/ai"
	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
	"github.com/fairyhunter13/ai-mock-interview/internal/feedback"
	"github.com/fairyhunter13/ai-mock-interview/pkg/textx"
)

// reportTokenBudget caps the transcript part of the report prompt.
const reportTokenBudget = 3000

// ReportService writes the end-of-session report and the preparation plan.
type ReportService struct {
	sessions domain.SessionRepository
	answers  domain.AnswerRepository
	json     *ai.JSONCaller
	quota    domain.QuotaLimiter
	rules    feedback.ImprovementRules
	tokens   *tokencount.Counter
	model    string
}

// NewReportService constructs a ReportService. quota may be nil.
func NewReportService(sessions domain.SessionRepository, answers domain.AnswerRepository, client domain.AIClient, quota domain.QuotaLimiter, rules feedback.ImprovementRules, model string) *ReportService {
	return &ReportService{
		sessions: sessions,
		answers:  answers,
		json:     ai.NewJSONCaller(client),
		quota:    quota,
		rules:    rules,
		tokens:   tokencount.DefaultCounter,
		model:    model,
	}
}

// SessionReport bundles the heuristic summary with the model write-up.
type SessionReport struct {
	SessionID string               `json:"session_id"`
	Summary   feedback.Summary     `json:"summary"`
	Report    domain.SessionReport `json:"report"`
	Strategy  []domain.StrategyDay `json:"strategy"`
}

// Report builds the report of a session with at least one answer.
func (s *ReportService) Report(ctx context.Context, sessionID string) (SessionReport, error) {
	ctx, span := otel.Tracer("usecase.report").Start(ctx, "report.Report")
	defer span.End()

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return SessionReport{}, fmt.Errorf("op=report.Report: %w", err)
	}
	answers, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return SessionReport{}, fmt.Errorf("op=report.Report: %w", err)
	}
	if len(answers) == 0 {
		return SessionReport{}, fmt.Errorf("%w: session has no answers", domain.ErrInvalidArgument)
	}
	summary := feedback.Summarize(feedbackRecords(answers), s.rules)

	if err := spendQuota(ctx, s.quota, sess.UserID, "report"); err != nil {
		return SessionReport{}, err
	}
	var report domain.SessionReport
	prompt := s.transcript(answers, summary)
	if err := s.json.Call(ctx, ai.ReportSchema, reportSystem, prompt, domain.ChatOptions{Temperature: tempCoach, MaxTokens: 700}, &report); err != nil {
		return SessionReport{}, fmt.Errorf("op=report.Report: %w", err)
	}

	focus := append(append([]string{}, report.Weaknesses...), summary.Improvements...)
	plan, err := s.Strategy(ctx, sess.UserID, focus)
	if err != nil {
		return SessionReport{}, err
	}
	return SessionReport{SessionID: sess.ID, Summary: summary, Report: report, Strategy: plan}, nil
}

// Strategy builds a seven day plan around weaknesses.
func (s *ReportService) Strategy(ctx context.Context, userID string, weaknesses []string) ([]domain.StrategyDay, error) {
	ctx, span := otel.Tracer("usecase.report").Start(ctx, "report.Strategy")
	defer span.End()

	if err := spendQuota(ctx, s.quota, userID, "strategy"); err != nil {
		return nil, err
	}
	focus := make([]string, 0, len(weaknesses))
	for _, w := range weaknesses {
		if w = textx.Collapse(w); w != "" {
			focus = append(focus, w)
		}
	}
	prompt := "Weaknesses:\n- general interview readiness"
	if len(focus) > 0 {
		prompt = "Weaknesses:\n- " + strings.Join(focus, "\n- ")
	}
	var out struct {
		Days []domain.StrategyDay `json:"days"`
	}
	if err := s.json.Call(ctx, ai.StrategySchema, strategySystem, prompt, domain.ChatOptions{Temperature: tempCoach, MaxTokens: 900}, &out); err != nil {
		return nil, fmt.Errorf("op=report.Strategy: %w", err)
	}
	sort.SliceStable(out.Days, func(i, j int) bool { return out.Days[i].Day < out.Days[j].Day })
	return out.Days, nil
}

// transcript renders the newest answers that fit the budget, oldest first.
func (s *ReportService) transcript(answers []domain.Answer, sum feedback.Summary) string {
	entries := make([]string, 0, len(answers))
	for _, a := range answers {
		entries = append(entries, fmt.Sprintf("Q: %s\nA: %s\nScore: %.1f/100, tone %s, %d fillers",
			a.Question, textx.TruncateRunes(a.Text, 1500), a.Feedback.ConfidenceScore, a.Feedback.Tone, a.Feedback.FillerWordCount))
	}
	kept := s.tokens.FitRecent(entries, reportTokenBudget, s.model)
	var b strings.Builder
	fmt.Fprintf(&b, "Answered: %d, average confidence %.1f/100, total fillers %d.\n\n", sum.Answered, sum.AverageConfidence, sum.TotalFillers)
	b.WriteString(strings.Join(kept, "\n\n"))
	return b.String()
}
