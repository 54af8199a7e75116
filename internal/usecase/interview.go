package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/ai"
	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/observability"
	"github.com/fairyhunter13/ai-mock-interview/internal/config"
	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
	"github.com/fairyhunter13/ai-mock-interview/internal/feedback"
	obsctx "github.com/fairyhunter13/ai-mock-interview/internal/observability"
	"github.com/fairyhunter13/ai-mock-interview/pkg/textx"
)

const (
	resumeQuestionCount = 3
	historyLimit        = 5
	maxResumeTokens     = 2000
)

// InterviewDeps are the collaborators of InterviewService. Memory, Events,
// Transcriber, Quota and Drift may be nil.
type InterviewDeps struct {
	Sessions    domain.SessionRepository
	Answers     domain.AnswerRepository
	Memory      domain.MemoryStore
	Events      domain.EventPublisher
	Transcriber domain.Transcriber
	AI          domain.AIClient
	Quota       domain.QuotaLimiter
	Scorer      *feedback.Scorer
	Content     config.InterviewContent
	Drift       *observability.ConfidenceDriftMonitor
	Tokens      *tokencount.Counter
}

// InterviewOptions tunes InterviewService.
type InterviewOptions struct {
	AnalysisEnabled    bool
	HistoryTokenBudget int
	// ChatModel selects the tokenizer used for prompt budgets.
	ChatModel string
}

// InterviewService owns the session lifecycle and the question flow.
type InterviewService struct {
	deps  InterviewDeps
	opts  InterviewOptions
	json  *ai.JSONCaller
	coach *CoachService
	now   func() time.Time
}

// NewInterviewService wires an InterviewService.
func NewInterviewService(deps InterviewDeps, opts InterviewOptions) *InterviewService {
	if deps.Tokens == nil {
		deps.Tokens = tokencount.DefaultCounter
	}
	if opts.HistoryTokenBudget <= 0 {
		opts.HistoryTokenBudget = 1500
	}
	return &InterviewService{
		deps:  deps,
		opts:  opts,
		json:  ai.NewJSONCaller(deps.AI),
		coach: NewCoachService(deps.AI, deps.Quota),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// StartSessionInput describes a new session.
type StartSessionInput struct {
	UserID     string
	Mode       domain.SessionMode
	Persona    string
	ResumeText string
}

// SubmitAnswerInput is a typed answer (Text) or a recorded one (Audio).
type SubmitAnswerInput struct {
	SessionID string
	// Question defaults to the last question handed out.
	Question      string
	Text          string
	Audio         io.Reader
	AudioFilename string
	// DurationSeconds is the speaking time of a typed answer, when the client measured it.
	DurationSeconds float64
}

// StartSession creates a session and plans its opening questions: three
// tailored ones when a resume is given, the question bank otherwise.
func (s *InterviewService) StartSession(ctx context.Context, in StartSessionInput) (domain.Session, error) {
	ctx, span := otel.Tracer("usecase.interview").Start(ctx, "interview.StartSession")
	defer span.End()

	in.UserID = strings.TrimSpace(in.UserID)
	if in.UserID == "" {
		return domain.Session{}, fmt.Errorf("%w: user_id required", domain.ErrInvalidArgument)
	}
	if in.Mode == "" {
		in.Mode = domain.ModeBank
	}
	switch in.Mode {
	case domain.ModeBank, domain.ModeAdaptive, domain.ModePanel:
	default:
		return domain.Session{}, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidArgument, in.Mode)
	}

	now := s.now()
	sess := domain.Session{
		ID:        uuid.New().String(),
		UserID:    in.UserID,
		Mode:      in.Mode,
		Status:    domain.SessionActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Mode == domain.ModePanel {
		sess.Persona, _ = s.deps.Content.Persona(in.Persona)
	}
	if resume := textx.SanitizeText(in.ResumeText); resume != "" {
		sess.ResumeText = s.deps.Tokens.Truncate(resume, maxResumeTokens, s.opts.ChatModel)
	}

	sess.Questions = append([]string(nil), s.deps.Content.Questions...)
	if sess.ResumeText != "" {
		qs, err := s.resumeQuestions(ctx, sess.UserID, sess.ResumeText)
		if err != nil {
			obsctx.LoggerFromContext(ctx).Warn("resume questions unavailable, using the question bank",
				slog.String("user_id", sess.UserID), slog.Any("error", err))
			observability.RecordQuestionFallback(string(domain.ModeBank))
		} else {
			sess.Questions = append(qs, sess.Questions...)
		}
	}

	id, err := s.deps.Sessions.Create(ctx, sess)
	if err != nil {
		return domain.Session{}, fmt.Errorf("op=interview.StartSession: %w", err)
	}
	sess.ID = id
	span.SetAttributes(attribute.String("session.id", id), attribute.String("session.mode", string(sess.Mode)))
	return sess, nil
}

// plannedResumeQuestions is how many resume questions StartSession put in
// front of the bank, which may be fewer than requested.
func (s *InterviewService) plannedResumeQuestions(sess domain.Session) int {
	if sess.ResumeText == "" {
		return 0
	}
	n := len(sess.Questions) - len(s.deps.Content.Questions)
	return max(0, min(n, resumeQuestionCount))
}

func (s *InterviewService) resumeQuestions(ctx context.Context, userID, resume string) ([]string, error) {
	if err := spendQuota(ctx, s.deps.Quota, userID, "resume_questions"); err != nil {
		return nil, err
	}
	var out struct {
		Questions []string `json:"questions"`
	}
	opts := domain.ChatOptions{Temperature: tempQuestions, MaxTokens: 400}
	if err := s.json.Call(ctx, ai.QuestionsSchema, resumeQuestionsSystem, resumeQuestionsPrompt(resume), opts, &out); err != nil {
		return nil, err
	}
	qs := make([]string, 0, resumeQuestionCount)
	for _, q := range out.Questions {
		if q = strings.TrimSpace(q); q != "" {
			qs = append(qs, q)
		}
		if len(qs) == resumeQuestionCount {
			break
		}
	}
	return qs, nil
}

// NextQuestion hands out the next question and advances the cursor. Bank
// sessions walk the planned list, then cycle the bank. Adaptive and panel
// sessions open with the first planned question and ask the model after
// that; any model failure falls back to the bank question at the cursor.
func (s *InterviewService) NextQuestion(ctx context.Context, sessionID string) (domain.Question, error) {
	ctx, span := otel.Tracer("usecase.interview").Start(ctx, "interview.NextQuestion")
	defer span.End()

	sess, err := s.activeSession(ctx, sessionID)
	if err != nil {
		return domain.Question{}, err
	}
	ctx = obsctx.WithSession(ctx, sess.ID, sess.UserID)
	idx := sess.Cursor
	q := domain.Question{Index: idx, Text: s.plannedQuestion(sess, idx), Source: domain.QuestionSourceBank}
	if idx < s.plannedResumeQuestions(sess) {
		q.Source = domain.QuestionSourceResume
	}

	if sess.Mode != domain.ModeBank && idx > 0 {
		text, source, err := s.generateQuestion(ctx, sess)
		if err != nil {
			obsctx.LoggerFromContext(ctx).Warn("question generation failed, using the question bank",
				slog.String("mode", string(sess.Mode)),
				slog.Any("error", err))
			observability.RecordQuestionFallback(string(sess.Mode))
			q.Fallback = true
		} else {
			q.Text, q.Source = text, source
		}
	}
	if sess.Mode == domain.ModePanel {
		q.Persona = sess.Persona
	}

	if idx < len(sess.Questions) {
		sess.Questions[idx] = q.Text
	} else {
		sess.Questions = append(sess.Questions, q.Text)
	}
	sess.Cursor = idx + 1
	sess.UpdatedAt = s.now()
	if err := s.deps.Sessions.Update(ctx, sess); err != nil {
		return domain.Question{}, fmt.Errorf("op=interview.NextQuestion: %w", err)
	}
	span.SetAttributes(attribute.String("question.source", q.Source), attribute.Bool("question.fallback", q.Fallback))
	return q, nil
}

// plannedQuestion is the planned question at idx, or the bank question at
// idx once the plan is exhausted.
func (s *InterviewService) plannedQuestion(sess domain.Session, idx int) string {
	if idx < len(sess.Questions) {
		return sess.Questions[idx]
	}
	bank := s.deps.Content.Questions
	return bank[idx%len(bank)]
}

func (s *InterviewService) generateQuestion(ctx context.Context, sess domain.Session) (string, string, error) {
	if err := spendQuota(ctx, s.deps.Quota, sess.UserID, "question"); err != nil {
		return "", "", err
	}
	opts := domain.ChatOptions{Temperature: tempQuestions, MaxTokens: 120}
	var system, prompt, source string
	switch sess.Mode {
	case domain.ModePanel:
		_, persona := s.deps.Content.Persona(sess.Persona)
		system = panelSystem(persona)
		prompt = panelPrompt(sess.Questions[:min(sess.Cursor, len(sess.Questions))], sess.ResumeText)
		source = domain.QuestionSourcePanel
	default:
		system = adaptiveSystem
		prompt = adaptivePrompt(s.history(ctx, sess.UserID), sess.ResumeText)
		source = domain.QuestionSourceAdaptive
	}
	out, err := s.deps.AI.Chat(ctx, system, prompt, opts)
	if err != nil {
		return "", "", ai.ModelError(err)
	}
	text := ai.FirstLine(out)
	if len(text) < 5 {
		return "", "", fmt.Errorf("%w: no question in reply", domain.ErrModelResponseMalformed)
	}
	return text, source, nil
}

// history renders the newest stored answers of userID that fit the token budget.
func (s *InterviewService) history(ctx context.Context, userID string) string {
	if s.deps.Memory == nil {
		return domain.NoHistory
	}
	records, err := s.deps.Memory.PreviousQA(ctx, userID, historyLimit)
	if err != nil {
		obsctx.LoggerFromContext(ctx).Warn("history lookup failed", slog.String("user_id", userID), slog.Any("error", err))
		return domain.NoHistory
	}
	if len(records) == 0 {
		return domain.NoHistory
	}
	// FitRecent keeps a suffix, so order oldest first.
	blocks := make([]string, len(records))
	for i, r := range records {
		blocks[len(records)-1-i] = domain.FormatHistory([]domain.QARecord{r})
	}
	kept := s.deps.Tokens.FitRecent(blocks, s.opts.HistoryTokenBudget, s.opts.ChatModel)
	if len(kept) == 0 {
		return domain.NoHistory
	}
	return strings.Join(kept, "\n\n")
}

// SubmitAnswer transcribes (audio), scores, stores and publishes an answer.
// The model analysis runs only when enabled and never fails the submission.
func (s *InterviewService) SubmitAnswer(ctx context.Context, in SubmitAnswerInput) (domain.Answer, error) {
	ctx, span := otel.Tracer("usecase.interview").Start(ctx, "interview.SubmitAnswer")
	defer span.End()

	sess, err := s.activeSession(ctx, in.SessionID)
	if err != nil {
		return domain.Answer{}, err
	}
	ctx = obsctx.WithSession(ctx, sess.ID, sess.UserID)
	lg := obsctx.LoggerFromContext(ctx)
	question := strings.TrimSpace(in.Question)
	if question == "" {
		if sess.Cursor == 0 || sess.Cursor > len(sess.Questions) {
			return domain.Answer{}, fmt.Errorf("%w: no question has been asked yet", domain.ErrInvalidArgument)
		}
		question = sess.Questions[sess.Cursor-1]
	}

	ans := domain.Answer{
		ID:              uuid.New().String(),
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		Question:        question,
		Source:          domain.AnswerText,
		DurationSeconds: in.DurationSeconds,
		CreatedAt:       s.now(),
	}
	if in.Audio != nil {
		tr, err := s.transcribe(ctx, in.Audio, in.AudioFilename)
		if err != nil {
			return domain.Answer{}, err
		}
		ans.Source = domain.AnswerAudio
		ans.Text = tr.Text
		ans.TranscriptionConfidence = tr.Confidence
		ans.DurationSeconds = tr.DurationSeconds
	} else {
		ans.Text = textx.SanitizeText(in.Text)
		if ans.Text == "" {
			return domain.Answer{}, fmt.Errorf("%w: answer text required", domain.ErrInvalidArgument)
		}
	}

	ans.Feedback = s.deps.Scorer.Score(ans.Text)
	observability.ObserveAnswerScored(string(ans.Feedback.Tone), ans.Feedback.ConfidenceScore)
	if s.deps.Drift != nil {
		if drift, ok := s.deps.Drift.Record(string(sess.Mode), ans.Feedback.ConfidenceScore); ok {
			lg.Warn("confidence score drift", slog.String("mode", string(sess.Mode)), slog.Float64("drift", drift))
		}
	}

	if s.opts.AnalysisEnabled {
		analysis, err := s.coach.AnalyzeAnswer(ctx, sess.UserID, question, ans.Text, ans.DurationSeconds)
		if err != nil {
			lg.Warn("answer analysis skipped", slog.Any("error", err))
		} else {
			ans.Analysis = &analysis
		}
	}

	id, err := s.deps.Answers.Create(ctx, ans)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("op=interview.SubmitAnswer: %w", err)
	}
	ans.ID = id
	span.SetAttributes(attribute.String("answer.id", id), attribute.Float64("answer.confidence", ans.Feedback.ConfidenceScore))

	if s.deps.Events != nil {
		if err := s.deps.Events.PublishAnswerRecorded(ctx, answerEvent(ans)); err != nil {
			// The answer is stored; memory indexing is best effort.
			lg.Error("publish answer event failed", slog.String("answer_id", id), slog.Any("error", err))
		}
	}
	return ans, nil
}

func (s *InterviewService) transcribe(ctx context.Context, audio io.Reader, filename string) (domain.Transcript, error) {
	if s.deps.Transcriber == nil {
		observability.RecordTranscription("unavailable")
		return domain.Transcript{}, fmt.Errorf("op=interview.transcribe: %w: no transcriber configured", domain.ErrTranscriptionUnavailable)
	}
	tr, err := s.deps.Transcriber.Transcribe(ctx, audio, filename)
	if err != nil {
		observability.RecordTranscription("error")
		if errors.Is(err, domain.ErrTranscriptionUnavailable) || errors.Is(err, domain.ErrInvalidArgument) {
			return domain.Transcript{}, fmt.Errorf("op=interview.transcribe: %w", err)
		}
		return domain.Transcript{}, fmt.Errorf("op=interview.transcribe: %w: %v", domain.ErrTranscriptionUnavailable, err)
	}
	tr.Text = textx.SanitizeText(tr.Text)
	if tr.Text == "" {
		observability.RecordTranscription("empty")
		return domain.Transcript{}, fmt.Errorf("op=interview.transcribe: %w: empty transcript", domain.ErrTranscriptionUnavailable)
	}
	if tr.Confidence <= 0 || tr.Confidence > 1 || math.IsNaN(tr.Confidence) {
		tr.Confidence = TranscriptConfidence(tr.Text)
	}
	observability.RecordTranscription("ok")
	return tr, nil
}

// TranscriptConfidence estimates transcript reliability from its length
// when the provider reports none: min(1, max(0.5, words/25)).
func TranscriptConfidence(text string) float64 {
	return math.Min(1, math.Max(0.5, float64(textx.WordCount(text))/25))
}

func answerEvent(a domain.Answer) domain.AnswerRecordedEvent {
	fb := fmt.Sprintf("tone: %s, fillers: %d, hesitations: %d, structure: %s",
		a.Feedback.Tone, a.Feedback.FillerWordCount, a.Feedback.HesitationPhraseCount, a.Feedback.SentenceStructure)
	if a.Analysis != nil && a.Analysis.FeedbackTip != "" {
		fb += ", tip: " + a.Analysis.FeedbackTip
	}
	return domain.AnswerRecordedEvent{
		AnswerID:  a.ID,
		SessionID: a.SessionID,
		UserID:    a.UserID,
		Question:  a.Question,
		Answer:    a.Text,
		// Memory keeps confidence on a 0..1 scale.
		Confidence: math.Round(a.Feedback.ConfidenceScore*10) / 1000,
		Tone:       string(a.Feedback.Tone),
		Feedback:   fb,
		RecordedAt: a.CreatedAt,
	}
}

// Summary aggregates the scored answers of a session.
func (s *InterviewService) Summary(ctx context.Context, sessionID string) (feedback.Summary, error) {
	ctx, span := otel.Tracer("usecase.interview").Start(ctx, "interview.Summary")
	defer span.End()

	if _, err := s.deps.Sessions.Get(ctx, sessionID); err != nil {
		return feedback.Summary{}, fmt.Errorf("op=interview.Summary: %w", err)
	}
	return s.summarize(ctx, sessionID)
}

func (s *InterviewService) summarize(ctx context.Context, sessionID string) (feedback.Summary, error) {
	answers, err := s.deps.Answers.ListBySession(ctx, sessionID)
	if err != nil {
		return feedback.Summary{}, fmt.Errorf("op=interview.Summary: %w", err)
	}
	return feedback.Summarize(feedbackRecords(answers), s.deps.Content.Improvements), nil
}

// CompleteSession closes the session and returns its summary. Completing
// a completed session only returns the summary again.
func (s *InterviewService) CompleteSession(ctx context.Context, sessionID string) (feedback.Summary, error) {
	ctx, span := otel.Tracer("usecase.interview").Start(ctx, "interview.CompleteSession")
	defer span.End()

	sess, err := s.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		return feedback.Summary{}, fmt.Errorf("op=interview.CompleteSession: %w", err)
	}
	if sess.Status != domain.SessionCompleted {
		sess.Status = domain.SessionCompleted
		sess.UpdatedAt = s.now()
		if err := s.deps.Sessions.Update(ctx, sess); err != nil {
			return feedback.Summary{}, fmt.Errorf("op=interview.CompleteSession: %w", err)
		}
	}
	return s.summarize(ctx, sessionID)
}

// GetSession returns the session with its answers, oldest first.
func (s *InterviewService) GetSession(ctx context.Context, sessionID string) (domain.Session, []domain.Answer, error) {
	sess, err := s.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.Session{}, nil, fmt.Errorf("op=interview.GetSession: %w", err)
	}
	answers, err := s.deps.Answers.ListBySession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, nil, fmt.Errorf("op=interview.GetSession: %w", err)
	}
	return sess, answers, nil
}

// History is what the service knows about a user's past answers.
type History struct {
	Answers []domain.Answer `json:"answers"`
	// Memory is the interview memory as shown to the model.
	Memory string `json:"memory"`
}

// History lists the newest answers of userID together with the rendered memory.
func (s *InterviewService) History(ctx context.Context, userID string, limit int) (History, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return History{}, fmt.Errorf("%w: user_id required", domain.ErrInvalidArgument)
	}
	answers, err := s.deps.Answers.ListByUser(ctx, userID, limit)
	if err != nil {
		return History{}, fmt.Errorf("op=interview.History: %w", err)
	}
	return History{Answers: answers, Memory: s.history(ctx, userID)}, nil
}

func (s *InterviewService) activeSession(ctx context.Context, id string) (domain.Session, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Session{}, fmt.Errorf("%w: session id required", domain.ErrInvalidArgument)
	}
	sess, err := s.deps.Sessions.Get(ctx, id)
	if err != nil {
		return domain.Session{}, fmt.Errorf("op=interview.session: %w", err)
	}
	if sess.Status == domain.SessionCompleted {
		return domain.Session{}, fmt.Errorf("op=interview.session: %w", domain.ErrSessionCompleted)
	}
	return sess, nil
}

func feedbackRecords(answers []domain.Answer) []feedback.Record {
	out := make([]feedback.Record, 0, len(answers))
	for _, a := range answers {
		out = append(out, a.Feedback)
	}
	return out
}
