package httpserver

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
	"github.com/fairyhunter13/ai-mock-interview/internal/feedback"
	"github.com/fairyhunter13/ai-mock-interview/internal/usecase"
)

type fakeInterview struct{ mock.Mock }

func (f *fakeInterview) StartSession(ctx context.Context, in usecase.StartSessionInput) (domain.Session, error) {
	args := f.Called(ctx, in)
	return args.Get(0).(domain.Session), args.Error(1)
}

func (f *fakeInterview) NextQuestion(ctx context.Context, id string) (domain.Question, error) {
	args := f.Called(ctx, id)
	return args.Get(0).(domain.Question), args.Error(1)
}

func (f *fakeInterview) SubmitAnswer(ctx context.Context, in usecase.SubmitAnswerInput) (domain.Answer, error) {
	args := f.Called(ctx, in)
	return args.Get(0).(domain.Answer), args.Error(1)
}

func (f *fakeInterview) Summary(ctx context.Context, id string) (feedback.Summary, error) {
	args := f.Called(ctx, id)
	return args.Get(0).(feedback.Summary), args.Error(1)
}

func (f *fakeInterview) CompleteSession(ctx context.Context, id string) (feedback.Summary, error) {
	args := f.Called(ctx, id)
	return args.Get(0).(feedback.Summary), args.Error(1)
}

func (f *fakeInterview) GetSession(ctx context.Context, id string) (domain.Session, []domain.Answer, error) {
	args := f.Called(ctx, id)
	answers, _ := args.Get(1).([]domain.Answer)
	return args.Get(0).(domain.Session), answers, args.Error(2)
}

func (f *fakeInterview) History(ctx context.Context, userID string, limit int) (usecase.History, error) {
	args := f.Called(ctx, userID, limit)
	return args.Get(0).(usecase.History), args.Error(1)
}

type fakeCoach struct{ mock.Mock }

func (f *fakeCoach) PerfectAnswer(ctx context.Context, userID, question string) (string, error) {
	args := f.Called(ctx, userID, question)
	return args.String(0), args.Error(1)
}

func (f *fakeCoach) CodeStructure(ctx context.Context, userID, question, language string) (string, error) {
	args := f.Called(ctx, userID, question, language)
	return args.String(0), args.Error(1)
}

func (f *fakeCoach) Clarity(ctx context.Context, userID, answer string, d float64) (domain.ClarityFeedback, error) {
	args := f.Called(ctx, userID, answer, d)
	return args.Get(0).(domain.ClarityFeedback), args.Error(1)
}

type fakeReports struct{ mock.Mock }

func (f *fakeReports) Report(ctx context.Context, id string) (usecase.SessionReport, error) {
	args := f.Called(ctx, id)
	return args.Get(0).(usecase.SessionReport), args.Error(1)
}

type fakeFeedback struct{ mock.Mock }

func (f *fakeFeedback) Evaluate(ctx context.Context, in usecase.FeedbackInput) (usecase.FeedbackResult, error) {
	args := f.Called(ctx, in)
	return args.Get(0).(usecase.FeedbackResult), args.Error(1)
}

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) ExtractPath(_ domain.Context, _ string, _ string) (string, error) {
	return f.text, f.err
}
