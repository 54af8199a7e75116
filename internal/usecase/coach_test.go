package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/ai/stub"
	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
	"github.com/fairyhunter13/ai-mock-interview/internal/domain/mocks"
	"github.com/fairyhunter13/ai-mock-interview/internal/usecase"
)

func TestCoach_AnalyzeAndClarity(t *testing.T) {
	t.Parallel()

	svc := usecase.NewCoachService(stub.New(8), nil)

	analysis, err := svc.AnalyzeAnswer(context.Background(), "u-1", "Why us?", "Because the mission fits me.", 4)
	require.NoError(t, err)
	assert.Equal(t, "Positive", analysis.Sentiment)
	assert.Equal(t, []string{"um"}, analysis.FillerWords)

	clarity, err := svc.Clarity(context.Background(), "u-1", "Because the mission fits me.", 0)
	require.NoError(t, err)
	assert.Equal(t, "Good", clarity.PaceAssessment)

	_, err = svc.AnalyzeAnswer(context.Background(), "u-1", "Why us?", " ", 0)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestCoach_MalformedJSONIsRetriedOnce(t *testing.T) {
	t.Parallel()

	client := mocks.NewMockAIClient(t)
	client.On("ChatJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("sure! here you go", nil).Twice()

	_, err := usecase.NewCoachService(client, nil).Clarity(context.Background(), "u-1", "some answer", 0)
	require.ErrorIs(t, err, domain.ErrModelResponseMalformed)
	var perr *domain.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "clarity", perr.Schema)
}

func TestCoach_FreeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		reply   string
		err     error
		call    func(*usecase.CoachService) (string, error)
		want    string
		wantErr error
	}{
		{
			name:  "perfect answer",
			reply: "  Situation, task, action, result.  ",
			call: func(s *usecase.CoachService) (string, error) {
				return s.PerfectAnswer(context.Background(), "u-1", "Tell me about a conflict.")
			},
			want: "Situation, task, action, result.",
		},
		{
			name:  "code structure",
			reply: "def solve(nums):\n    pass",
			call: func(s *usecase.CoachService) (string, error) {
				return s.CodeStructure(context.Background(), "u-1", "Two sum", "")
			},
			want: "def solve(nums):\n    pass",
		},
		{
			name:  "empty reply",
			reply: "   ",
			call: func(s *usecase.CoachService) (string, error) {
				return s.PerfectAnswer(context.Background(), "u-1", "q?")
			},
			wantErr: domain.ErrModelResponseMalformed,
		},
		{
			name: "timeout",
			err:  context.DeadlineExceeded,
			call: func(s *usecase.CoachService) (string, error) {
				return s.CodeStructure(context.Background(), "u-1", "q?", "Go")
			},
			wantErr: domain.ErrModelTimeout,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			client := mocks.NewMockAIClient(t)
			client.On("Chat", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(tc.reply, tc.err)

			got, err := tc.call(usecase.NewCoachService(client, nil))
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCoach_CodeStructureDefaultsToPython(t *testing.T) {
	t.Parallel()

	client := mocks.NewMockAIClient(t)
	client.On("Chat", mock.Anything, mock.Anything, "Language: Python\nProblem: Reverse a list", mock.Anything).Return("def reverse(xs): ...", nil)

	_, err := usecase.NewCoachService(client, nil).CodeStructure(context.Background(), "u-1", "Reverse a list", "  ")
	require.NoError(t, err)
}

func TestCoach_Quota(t *testing.T) {
	t.Parallel()

	t.Run("denied", func(t *testing.T) {
		t.Parallel()
		quota := mocks.NewMockQuotaLimiter(t)
		quota.On("Allow", mock.Anything, "ai:user:u-1", int64(1)).Return(false, 3*time.Second, nil)

		_, err := usecase.NewCoachService(mocks.NewMockAIClient(t), quota).PerfectAnswer(context.Background(), "u-1", "q?")
		require.ErrorIs(t, err, domain.ErrRateLimited)
		var qe *domain.QuotaExceededError
		require.True(t, errors.As(err, &qe))
		assert.Equal(t, "perfect_answer", qe.Operation)
		assert.Equal(t, 3*time.Second, qe.RetryAfter)
	})

	t.Run("limiter failure lets the call through", func(t *testing.T) {
		t.Parallel()
		quota := mocks.NewMockQuotaLimiter(t)
		quota.On("Allow", mock.Anything, "ai:user:u-1", int64(1)).Return(false, time.Duration(0), errors.New("redis down"))

		out, err := usecase.NewCoachService(stub.New(8), quota).PerfectAnswer(context.Background(), "u-1", "q?")
		require.NoError(t, err)
		assert.NotEmpty(t, out)
	})

	t.Run("anonymous callers are not metered", func(t *testing.T) {
		t.Parallel()
		quota := mocks.NewMockQuotaLimiter(t)

		_, err := usecase.NewCoachService(stub.New(8), quota).PerfectAnswer(context.Background(), "", "q?")
		require.NoError(t, err)
	})
}
