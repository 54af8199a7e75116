package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-mock-interview/internal/config"
	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
	"github.com/fairyhunter13/ai-mock-interview/internal/domain/mocks"
	"github.com/fairyhunter13/ai-mock-interview/internal/feedback"
	"github.com/fairyhunter13/ai-mock-interview/internal/usecase"
)

type fixture struct {
	sessions *mocks.MockSessionRepository
	answers  *mocks.MockAnswerRepository
	memory   *mocks.MockMemoryStore
	events   *mocks.MockEventPublisher
	content  config.InterviewContent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	content, err := config.DefaultInterviewContent()
	require.NoError(t, err)
	return &fixture{
		sessions: mocks.NewMockSessionRepository(t),
		answers:  mocks.NewMockAnswerRepository(t),
		memory:   mocks.NewMockMemoryStore(t),
		events:   mocks.NewMockEventPublisher(t),
		content:  content,
	}
}

func (f *fixture) service(client domain.AIClient, tr domain.Transcriber, quota domain.QuotaLimiter, opts usecase.InterviewOptions) *usecase.InterviewService {
	deps := usecase.InterviewDeps{
		Sessions:    f.sessions,
		Answers:     f.answers,
		Memory:      f.memory,
		Events:      f.events,
		Transcriber: tr,
		AI:          client,
		Scorer:      feedback.New(f.content.Scorer),
		Content:     f.content,
	}
	if quota != nil {
		deps.Quota = quota
	}
	return usecase.NewInterviewService(deps, opts)
}

func activeSession(mode domain.SessionMode, cursor int, questions ...string) domain.Session {
	return domain.Session{
		ID:        "s-1",
		UserID:    "u-1",
		Mode:      mode,
		Status:    domain.SessionActive,
		Questions: questions,
		Cursor:    cursor,
	}
}
