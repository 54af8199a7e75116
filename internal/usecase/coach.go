// Package usecase contains application business logic services.
package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/ai"
	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
	"github.com/fairyhunter13/ai-mock-interview/pkg/textx"
)

// Sampling temperatures per task.
const (
	tempAnalysis  = 0.0
	tempCoach     = 0.2
	tempQuestions = 0.25
	tempCode      = 0.18
)

// maxAnswerRunes bounds the answer text sent to the model.
const maxAnswerRunes = 6000

// CoachService runs the model-backed coaching features.
type CoachService struct {
	client domain.AIClient
	json   *ai.JSONCaller
	quota  domain.QuotaLimiter
}

// NewCoachService constructs a CoachService. quota may be nil.
func NewCoachService(client domain.AIClient, quota domain.QuotaLimiter) *CoachService {
	return &CoachService{client: client, json: ai.NewJSONCaller(client), quota: quota}
}

// AnalyzeAnswer asks the model for a narrative analysis of one answer.
// durationSeconds is optional; when known the pace is part of the prompt.
func (s *CoachService) AnalyzeAnswer(ctx context.Context, userID, question, answer string, durationSeconds float64) (domain.AnalysisFeedback, error) {
	ctx, span := otel.Tracer("usecase.coach").Start(ctx, "coach.AnalyzeAnswer")
	defer span.End()

	answer = textx.TruncateRunes(textx.SanitizeText(answer), maxAnswerRunes)
	if answer == "" {
		return domain.AnalysisFeedback{}, fmt.Errorf("%w: answer required", domain.ErrInvalidArgument)
	}
	if err := spendQuota(ctx, s.quota, userID, "analysis"); err != nil {
		return domain.AnalysisFeedback{}, err
	}
	var out domain.AnalysisFeedback
	prompt := analysisPrompt(question, answer, wordsPerMinute(answer, durationSeconds))
	if err := s.json.Call(ctx, ai.AnalysisSchema, analysisSystem, prompt, domain.ChatOptions{Temperature: tempAnalysis, MaxTokens: 400}, &out); err != nil {
		return domain.AnalysisFeedback{}, fmt.Errorf("op=coach.AnalyzeAnswer: %w", err)
	}
	span.SetAttributes(attribute.Float64("analysis.confidence", out.ConfidenceScore))
	return out, nil
}

// Clarity rates delivery clarity and pace.
func (s *CoachService) Clarity(ctx context.Context, userID, answer string, durationSeconds float64) (domain.ClarityFeedback, error) {
	ctx, span := otel.Tracer("usecase.coach").Start(ctx, "coach.Clarity")
	defer span.End()

	answer = textx.TruncateRunes(textx.SanitizeText(answer), maxAnswerRunes)
	if answer == "" {
		return domain.ClarityFeedback{}, fmt.Errorf("%w: answer required", domain.ErrInvalidArgument)
	}
	if err := spendQuota(ctx, s.quota, userID, "clarity"); err != nil {
		return domain.ClarityFeedback{}, err
	}
	var out domain.ClarityFeedback
	prompt := clarityPrompt(answer, wordsPerMinute(answer, durationSeconds))
	if err := s.json.Call(ctx, ai.ClaritySchema, claritySystem, prompt, domain.ChatOptions{Temperature: tempCoach, MaxTokens: 300}, &out); err != nil {
		return domain.ClarityFeedback{}, fmt.Errorf("op=coach.Clarity: %w", err)
	}
	return out, nil
}

// PerfectAnswer writes a model answer to question.
func (s *CoachService) PerfectAnswer(ctx context.Context, userID, question string) (string, error) {
	ctx, span := otel.Tracer("usecase.coach").Start(ctx, "coach.PerfectAnswer")
	defer span.End()

	question = textx.SanitizeText(question)
	if question == "" {
		return "", fmt.Errorf("%w: question required", domain.ErrInvalidArgument)
	}
	if err := spendQuota(ctx, s.quota, userID, "perfect_answer"); err != nil {
		return "", err
	}
	out, err := s.client.Chat(ctx, perfectAnswerSystem, "Question: "+question, domain.ChatOptions{Temperature: tempCoach, MaxTokens: 500})
	if err != nil {
		return "", fmt.Errorf("op=coach.PerfectAnswer: %w", ai.ModelError(err))
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("op=coach.PerfectAnswer: %w: empty reply", domain.ErrModelResponseMalformed)
	}
	return out, nil
}

// CodeStructure sketches the solution layout of a coding question.
// language defaults to Python.
func (s *CoachService) CodeStructure(ctx context.Context, userID, question, language string) (string, error) {
	ctx, span := otel.Tracer("usecase.coach").Start(ctx, "coach.CodeStructure")
	defer span.End()

	question = textx.SanitizeText(question)
	if question == "" {
		return "", fmt.Errorf("%w: question required", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(language) == "" {
		language = "Python"
	}
	if err := spendQuota(ctx, s.quota, userID, "code_structure"); err != nil {
		return "", err
	}
	prompt := fmt.Sprintf("Language: %s\nProblem: %s", language, question)
	out, err := s.client.Chat(ctx, codeStructureSystem, prompt, domain.ChatOptions{Temperature: tempCode, MaxTokens: 700})
	if err != nil {
		return "", fmt.Errorf("op=coach.CodeStructure: %w", ai.ModelError(err))
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("op=coach.CodeStructure: %w: empty reply", domain.ErrModelResponseMalformed)
	}
	return out, nil
}

func wordsPerMinute(text string, durationSeconds float64) float64 {
	if durationSeconds <= 0 {
		return 0
	}
	return float64(textx.WordCount(text)) / (durationSeconds / 60)
}
