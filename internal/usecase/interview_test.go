package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/ai/stub"
	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
	"github.com/fairyhunter13/ai-mock-interview/internal/domain/mocks"
	"github.com/fairyhunter13/ai-mock-interview/internal/feedback"
	obsctx "github.com/fairyhunter13/ai-mock-interview/internal/observability"
	"github.com/fairyhunter13/ai-mock-interview/internal/usecase"
)

func TestStartSession(t *testing.T) {
	t.Parallel()

	t.Run("bank session plans the question bank", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.sessions.On("Create", mock.Anything, mock.MatchedBy(func(s domain.Session) bool {
			return s.UserID == "u-1" && s.Mode == domain.ModeBank && s.Status == domain.SessionActive &&
				assert.ObjectsAreEqual(f.content.Questions, s.Questions) && s.Persona == ""
		})).Return("s-1", nil)

		sess, err := f.service(stub.New(8), nil, nil, usecase.InterviewOptions{}).StartSession(context.Background(), usecase.StartSessionInput{UserID: " u-1 "})
		require.NoError(t, err)
		assert.Equal(t, "s-1", sess.ID)
		assert.Zero(t, sess.Cursor)
	})

	t.Run("resume adds three tailored questions first", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.sessions.On("Create", mock.Anything, mock.MatchedBy(func(s domain.Session) bool {
			return len(s.Questions) == 3+len(f.content.Questions) && s.ResumeText != ""
		})).Return("s-2", nil)

		sess, err := f.service(stub.New(8), nil, nil, usecase.InterviewOptions{}).StartSession(context.Background(), usecase.StartSessionInput{
			UserID:     "u-1",
			Mode:       domain.ModeAdaptive,
			ResumeText: "Go engineer. Built payment systems.",
		})
		require.NoError(t, err)
		assert.Equal(t, "Describe a project where you owned the outcome.", sess.Questions[0])
	})

	t.Run("resume model failure keeps the bank", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		client := mocks.NewMockAIClient(t)
		client.On("ChatJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", domain.ErrUpstreamTimeout).Once()
		f.sessions.On("Create", mock.Anything, mock.MatchedBy(func(s domain.Session) bool {
			return len(s.Questions) == len(f.content.Questions)
		})).Return("s-3", nil)

		_, err := f.service(client, nil, nil, usecase.InterviewOptions{}).StartSession(context.Background(), usecase.StartSessionInput{UserID: "u-1", ResumeText: "cv"})
		require.NoError(t, err)
	})

	t.Run("panel session resolves unknown persona to the default", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.sessions.On("Create", mock.Anything, mock.MatchedBy(func(s domain.Session) bool {
			return s.Persona == "alex"
		})).Return("s-4", nil)

		sess, err := f.service(stub.New(8), nil, nil, usecase.InterviewOptions{}).StartSession(context.Background(), usecase.StartSessionInput{UserID: "u-1", Mode: domain.ModePanel, Persona: "zed"})
		require.NoError(t, err)
		assert.Equal(t, "alex", sess.Persona)
	})

	t.Run("invalid input", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		svc := f.service(stub.New(8), nil, nil, usecase.InterviewOptions{})
		_, err := svc.StartSession(context.Background(), usecase.StartSessionInput{})
		require.ErrorIs(t, err, domain.ErrInvalidArgument)
		_, err = svc.StartSession(context.Background(), usecase.StartSessionInput{UserID: "u", Mode: "speed-dating"})
		require.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestNextQuestion_Bank(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	bank := f.content.Questions
	f.sessions.On("Get", mock.Anything, "s-1").Return(activeSession(domain.ModeBank, len(bank), bank...), nil)
	f.sessions.On("Update", mock.Anything, mock.MatchedBy(func(s domain.Session) bool {
		return s.Cursor == len(bank)+1 && len(s.Questions) == len(bank)+1
	})).Return(nil)

	q, err := f.service(stub.New(8), nil, nil, usecase.InterviewOptions{}).NextQuestion(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, bank[0], q.Text, "bank cycles once exhausted")
	assert.Equal(t, len(bank), q.Index)
	assert.Equal(t, domain.QuestionSourceBank, q.Source)
	assert.False(t, q.Fallback)
}

func TestNextQuestion_LabelsOnlyPlannedResumeQuestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		resumeQs   []string
		cursor     int
		wantSource string
	}{
		{name: "single resume question", resumeQs: []string{"r1?"}, cursor: 0, wantSource: domain.QuestionSourceResume},
		{name: "bank after one resume question", resumeQs: []string{"r1?"}, cursor: 1, wantSource: domain.QuestionSourceBank},
		{name: "bank two after one resume question", resumeQs: []string{"r1?"}, cursor: 2, wantSource: domain.QuestionSourceBank},
		{name: "third of three resume questions", resumeQs: []string{"r1?", "r2?", "r3?"}, cursor: 2, wantSource: domain.QuestionSourceResume},
		{name: "bank after three resume questions", resumeQs: []string{"r1?", "r2?", "r3?"}, cursor: 3, wantSource: domain.QuestionSourceBank},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			planned := append(append([]string(nil), tt.resumeQs...), f.content.Questions...)
			sess := activeSession(domain.ModeBank, tt.cursor, planned...)
			sess.ResumeText = "Go engineer. Built payment systems."
			f.sessions.On("Get", mock.Anything, "s-1").Return(sess, nil)
			f.sessions.On("Update", mock.Anything, mock.Anything).Return(nil)

			q, err := f.service(stub.New(8), nil, nil, usecase.InterviewOptions{}).NextQuestion(context.Background(), "s-1")
			require.NoError(t, err)
			assert.Equal(t, planned[tt.cursor], q.Text)
			assert.Equal(t, tt.wantSource, q.Source)
		})
	}
}

func TestNextQuestion_FallbackLogCarriesSessionOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	client := mocks.NewMockAIClient(t)
	client.On("Chat", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", context.DeadlineExceeded)
	f.memory.On("PreviousQA", mock.Anything, "u-1", 5).Return(nil, nil)
	f.sessions.On("Get", mock.Anything, "s-1").Return(activeSession(domain.ModeAdaptive, 1, "opening?", "planned second?"), nil)
	f.sessions.On("Update", mock.Anything, mock.Anything).Return(nil)

	var buf bytes.Buffer
	ctx := obsctx.ContextWithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))
	q, err := f.service(client, nil, nil, usecase.InterviewOptions{}).NextQuestion(ctx, "s-1")
	require.NoError(t, err)
	require.True(t, q.Fallback)

	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, "question generation failed") {
			line = l
		}
	}
	require.NotEmpty(t, line)
	assert.Equal(t, 1, strings.Count(line, "session_id=s-1"), line)
	assert.Contains(t, line, "user_id=u-1")
}

func TestNextQuestion_AdaptiveUsesHistory(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.sessions.On("Get", mock.Anything, "s-1").Return(activeSession(domain.ModeAdaptive, 1, "opening?", "planned second?"), nil)
	f.memory.On("PreviousQA", mock.Anything, "u-1", 5).Return([]domain.QARecord{
		{Question: "What is normalization in DBMS?", Answer: "To reduce redundancy.", Confidence: 0.9, Timestamp: time.Unix(0, 0)},
	}, nil)
	client := mocks.NewMockAIClient(t)
	client.On("Chat", mock.Anything, mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Q: What is normalization in DBMS?")
	}), mock.Anything).Return("1. How would you denormalize a reporting table?\n2. extra", nil)
	f.sessions.On("Update", mock.Anything, mock.MatchedBy(func(s domain.Session) bool {
		return s.Cursor == 2 && s.Questions[1] == "How would you denormalize a reporting table?"
	})).Return(nil)

	q, err := f.service(client, nil, nil, usecase.InterviewOptions{}).NextQuestion(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, "How would you denormalize a reporting table?", q.Text)
	assert.Equal(t, domain.QuestionSourceAdaptive, q.Source)
	assert.False(t, q.Fallback)
}

func TestNextQuestion_FallsBackToBank(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		mode  domain.SessionMode
		setup func(client *mocks.MockAIClient, quota *mocks.MockQuotaLimiter, f *fixture)
	}{
		{
			name: "model error",
			mode: domain.ModeAdaptive,
			setup: func(client *mocks.MockAIClient, quota *mocks.MockQuotaLimiter, f *fixture) {
				quota.On("Allow", mock.Anything, "ai:user:u-1", int64(1)).Return(true, time.Duration(0), nil)
				f.memory.On("PreviousQA", mock.Anything, "u-1", 5).Return(nil, nil)
				client.On("Chat", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", context.DeadlineExceeded)
			},
		},
		{
			name: "empty reply",
			mode: domain.ModePanel,
			setup: func(client *mocks.MockAIClient, quota *mocks.MockQuotaLimiter, _ *fixture) {
				quota.On("Allow", mock.Anything, "ai:user:u-1", int64(1)).Return(true, time.Duration(0), nil)
				client.On("Chat", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("\n\n", nil)
			},
		},
		{
			name: "quota exhausted",
			mode: domain.ModePanel,
			setup: func(_ *mocks.MockAIClient, quota *mocks.MockQuotaLimiter, _ *fixture) {
				quota.On("Allow", mock.Anything, "ai:user:u-1", int64(1)).Return(false, time.Minute, nil)
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			client := mocks.NewMockAIClient(t)
			quota := mocks.NewMockQuotaLimiter(t)
			tc.setup(client, quota, f)
			sess := activeSession(tc.mode, 1, "opening?", "planned second?")
			sess.Persona = "sarah"
			f.sessions.On("Get", mock.Anything, "s-1").Return(sess, nil)
			f.sessions.On("Update", mock.Anything, mock.Anything).Return(nil)

			q, err := f.service(client, nil, quota, usecase.InterviewOptions{}).NextQuestion(context.Background(), "s-1")
			require.NoError(t, err)
			assert.True(t, q.Fallback)
			assert.Equal(t, "planned second?", q.Text)
			if tc.mode == domain.ModePanel {
				assert.Equal(t, "sarah", q.Persona)
			}
		})
	}
}

func TestNextQuestion_CompletedSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	sess := activeSession(domain.ModeBank, 0, "q?")
	sess.Status = domain.SessionCompleted
	f.sessions.On("Get", mock.Anything, "s-1").Return(sess, nil)

	_, err := f.service(stub.New(8), nil, nil, usecase.InterviewOptions{}).NextQuestion(context.Background(), "s-1")
	require.ErrorIs(t, err, domain.ErrSessionCompleted)
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestSubmitAnswer_Text(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.sessions.On("Get", mock.Anything, "s-1").Return(activeSession(domain.ModeBank, 1, "Tell me about a win."), nil)
	f.answers.On("Create", mock.Anything, mock.MatchedBy(func(a domain.Answer) bool {
		return a.Question == "Tell me about a win." && a.Source == domain.AnswerText && a.Analysis == nil
	})).Return("a-1", nil)
	var published domain.AnswerRecordedEvent
	f.events.On("PublishAnswerRecorded", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(1).(domain.AnswerRecordedEvent) }).
		Return(errors.New("broker down"))

	text := "I led the redesign of our payment system and I achieved a 30% latency reduction."
	ans, err := f.service(stub.New(8), nil, nil, usecase.InterviewOptions{}).SubmitAnswer(context.Background(), usecase.SubmitAnswerInput{SessionID: "s-1", Text: text})
	require.NoError(t, err, "publish failures do not fail the answer")
	assert.Equal(t, "a-1", ans.ID)
	assert.Equal(t, 2, ans.Feedback.ConfidentPhraseCount)

	assert.Equal(t, "a-1", published.AnswerID)
	assert.Equal(t, "u-1", published.UserID)
	assert.Equal(t, text, published.Answer)
	assert.Equal(t, string(ans.Feedback.Tone), published.Tone)
	assert.InDelta(t, ans.Feedback.ConfidenceScore/100, published.Confidence, 0.001)
	assert.GreaterOrEqual(t, published.Confidence, 0.0)
	assert.LessOrEqual(t, published.Confidence, 1.0)
}

func TestSubmitAnswer_WithAnalysis(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.sessions.On("Get", mock.Anything, "s-1").Return(activeSession(domain.ModeBank, 1, "q?"), nil)
	f.answers.On("Create", mock.Anything, mock.MatchedBy(func(a domain.Answer) bool {
		return a.Analysis != nil && a.Analysis.Sentiment == "Positive"
	})).Return("a-2", nil)
	f.events.On("PublishAnswerRecorded", mock.Anything, mock.MatchedBy(func(ev domain.AnswerRecordedEvent) bool {
		return strings.Contains(ev.Feedback, "tip: Add a metric")
	})).Return(nil)

	_, err := f.service(stub.New(8), nil, nil, usecase.InterviewOptions{AnalysisEnabled: true}).
		SubmitAnswer(context.Background(), usecase.SubmitAnswerInput{SessionID: "s-1", Text: "We shipped it on time.", DurationSeconds: 3})
	require.NoError(t, err)
}

func TestSubmitAnswer_Audio(t *testing.T) {
	t.Parallel()

	t.Run("heuristic confidence when provider reports none", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		tr := mocks.NewMockTranscriber(t)
		tr.On("Transcribe", mock.Anything, mock.Anything, "a.webm").Return(domain.Transcript{Text: "one two three four five", DurationSeconds: 2}, nil)
		f.sessions.On("Get", mock.Anything, "s-1").Return(activeSession(domain.ModeBank, 1, "q?"), nil)
		f.answers.On("Create", mock.Anything, mock.MatchedBy(func(a domain.Answer) bool {
			return a.Source == domain.AnswerAudio && a.TranscriptionConfidence == 0.5 && a.DurationSeconds == 2
		})).Return("a-3", nil)
		f.events.On("PublishAnswerRecorded", mock.Anything, mock.Anything).Return(nil)

		ans, err := f.service(stub.New(8), tr, nil, usecase.InterviewOptions{}).SubmitAnswer(context.Background(), usecase.SubmitAnswerInput{
			SessionID: "s-1", Audio: bytes.NewReader([]byte("RIFF")), AudioFilename: "a.webm",
		})
		require.NoError(t, err)
		assert.Equal(t, "one two three four five", ans.Text)
	})

	t.Run("transcription failure is typed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		tr := mocks.NewMockTranscriber(t)
		tr.On("Transcribe", mock.Anything, mock.Anything, "a.wav").Return(domain.Transcript{}, errors.New("connection reset"))
		f.sessions.On("Get", mock.Anything, "s-1").Return(activeSession(domain.ModeBank, 1, "q?"), nil)

		_, err := f.service(stub.New(8), tr, nil, usecase.InterviewOptions{}).SubmitAnswer(context.Background(), usecase.SubmitAnswerInput{
			SessionID: "s-1", Audio: bytes.NewReader([]byte("x")), AudioFilename: "a.wav",
		})
		require.ErrorIs(t, err, domain.ErrTranscriptionUnavailable)
	})

	t.Run("no transcriber configured", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.sessions.On("Get", mock.Anything, "s-1").Return(activeSession(domain.ModeBank, 1, "q?"), nil)
		_, err := f.service(stub.New(8), nil, nil, usecase.InterviewOptions{}).SubmitAnswer(context.Background(), usecase.SubmitAnswerInput{
			SessionID: "s-1", Audio: bytes.NewReader([]byte("x")),
		})
		require.ErrorIs(t, err, domain.ErrTranscriptionUnavailable)
	})
}

func TestSubmitAnswer_Rejects(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.sessions.On("Get", mock.Anything, "fresh").Return(activeSession(domain.ModeBank, 0, "q?"), nil)
	svc := f.service(stub.New(8), nil, nil, usecase.InterviewOptions{})

	_, err := svc.SubmitAnswer(context.Background(), usecase.SubmitAnswerInput{SessionID: "fresh", Text: "hello there"})
	require.ErrorIs(t, err, domain.ErrInvalidArgument, "nothing asked yet")

	_, err = svc.SubmitAnswer(context.Background(), usecase.SubmitAnswerInput{SessionID: "fresh", Question: "q?", Text: "  \x00 "})
	require.ErrorIs(t, err, domain.ErrInvalidArgument, "blank answer")

	_, err = svc.SubmitAnswer(context.Background(), usecase.SubmitAnswerInput{})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestCompleteSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.sessions.On("Get", mock.Anything, "s-1").Return(activeSession(domain.ModeBank, 2, "a?", "b?"), nil)
	f.sessions.On("Update", mock.Anything, mock.MatchedBy(func(s domain.Session) bool {
		return s.Status == domain.SessionCompleted
	})).Return(nil).Once()
	f.answers.On("ListBySession", mock.Anything, "s-1").Return([]domain.Answer{
		{Feedback: feedback.Record{ConfidenceScore: 50, FillerWordCount: 4, Tone: feedback.ToneNeutral}},
		{Feedback: feedback.Record{ConfidenceScore: 60, FillerWordCount: 3, Tone: feedback.TonePositive, Polarity: 0.1}},
	}, nil)

	sum, err := f.service(stub.New(8), nil, nil, usecase.InterviewOptions{}).CompleteSession(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Answered)
	assert.InDelta(t, 55.0, sum.AverageConfidence, 1e-9)
	assert.Equal(t, 7, sum.TotalFillers)
	assert.Equal(t, []string{feedback.ImprovementConfidence, feedback.ImprovementFillers, feedback.ImprovementTone}, sum.Improvements)
}

func TestSummary_EmptySessionAndNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.sessions.On("Get", mock.Anything, "s-1").Return(activeSession(domain.ModeBank, 0), nil)
	f.sessions.On("Get", mock.Anything, "missing").Return(domain.Session{}, domain.ErrNotFound)
	f.answers.On("ListBySession", mock.Anything, "s-1").Return([]domain.Answer{}, nil)
	svc := f.service(stub.New(8), nil, nil, usecase.InterviewOptions{})

	sum, err := svc.Summary(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Zero(t, sum.Answered)
	assert.Empty(t, sum.Improvements)

	_, err = svc.Summary(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHistory(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.answers.On("ListByUser", mock.Anything, "u-1", 10).Return([]domain.Answer{{ID: "a-1"}}, nil)
	f.memory.On("PreviousQA", mock.Anything, "u-1", 5).Return(nil, errors.New("qdrant down"))

	h, err := f.service(stub.New(8), nil, nil, usecase.InterviewOptions{}).History(context.Background(), "u-1", 10)
	require.NoError(t, err)
	assert.Len(t, h.Answers, 1)
	assert.Equal(t, domain.NoHistory, h.Memory)
}

func TestTranscriptConfidence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want float64
	}{
		{"", 0.5},
		{"short answer", 0.5},
		{"one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen", 0.6},
		{strings.Repeat("word ", 40), 1},
	}
	for _, tc := range tests {
		assert.InDelta(t, tc.want, usecase.TranscriptConfidence(tc.text), 1e-9, tc.text)
	}
}
