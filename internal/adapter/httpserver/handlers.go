package httpserver

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/ai-mock-interview/internal/config"
	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
	"github.com/fairyhunter13/ai-mock-interview/internal/feedback"
	"github.com/fairyhunter13/ai-mock-interview/internal/usecase"
)

// InterviewAPI is the session flow used by the handlers.
type InterviewAPI interface {
	StartSession(ctx context.Context, in usecase.StartSessionInput) (domain.Session, error)
	NextQuestion(ctx context.Context, sessionID string) (domain.Question, error)
	SubmitAnswer(ctx context.Context, in usecase.SubmitAnswerInput) (domain.Answer, error)
	Summary(ctx context.Context, sessionID string) (feedback.Summary, error)
	CompleteSession(ctx context.Context, sessionID string) (feedback.Summary, error)
	GetSession(ctx context.Context, sessionID string) (domain.Session, []domain.Answer, error)
	History(ctx context.Context, userID string, limit int) (usecase.History, error)
}

// CoachAPI is the model backed coaching used by the handlers.
type CoachAPI interface {
	PerfectAnswer(ctx context.Context, userID, question string) (string, error)
	CodeStructure(ctx context.Context, userID, question, language string) (string, error)
	Clarity(ctx context.Context, userID, answer string, durationSeconds float64) (domain.ClarityFeedback, error)
}

// ReportAPI builds end of session reports.
type ReportAPI interface {
	Report(ctx context.Context, sessionID string) (usecase.SessionReport, error)
}

// FeedbackAPI scores free text.
type FeedbackAPI interface {
	Evaluate(ctx context.Context, in usecase.FeedbackInput) (usecase.FeedbackResult, error)
}

// Check is one readiness probe.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Server aggregates handlers dependencies.
type Server struct {
	Cfg       config.Config
	Interview InterviewAPI
	Coach     CoachAPI
	Reports   ReportAPI
	Feedback  FeedbackAPI
	Extractor domain.TextExtractor
	Checks    []Check
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, interview InterviewAPI, coach CoachAPI, reports ReportAPI, fb FeedbackAPI, extractor domain.TextExtractor, checks ...Check) *Server {
	return &Server{Cfg: cfg, Interview: interview, Coach: coach, Reports: reports, Feedback: fb, Extractor: extractor, Checks: checks}
}

// MountV1 registers the /v1 routes on r. mutating wraps the routes that
// change state or spend model quota.
func (s *Server) MountV1(r chi.Router, mutating ...func(http.Handler) http.Handler) {
	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(JSONOnly)
		v1.Get("/sessions/{id}", s.GetSessionHandler())
		v1.Get("/sessions/{id}/summary", s.SummaryHandler())
		v1.Get("/users/{user_id}/history", s.HistoryHandler())

		v1.Group(func(m chi.Router) {
			m.Use(mutating...)
			m.Post("/feedback", s.FeedbackHandler())
			m.Post("/sessions", s.StartSessionHandler())
			m.Post("/sessions/{id}/next-question", s.NextQuestionHandler())
			m.Post("/sessions/{id}/answers", s.SubmitAnswerHandler())
			m.Post("/sessions/{id}/complete", s.CompleteHandler())
			m.Post("/sessions/{id}/report", s.ReportHandler())
			m.Post("/coach/perfect-answer", s.PerfectAnswerHandler())
			m.Post("/coach/code-structure", s.CodeStructureHandler())
			m.Post("/coach/clarity", s.ClarityHandler())
		})
	})
}

type recordView struct {
	feedback.Record
	ToneLabel      string `json:"tone_label"`
	StructureLabel string `json:"sentence_structure_label"`
}

func viewRecord(r feedback.Record) recordView {
	return recordView{Record: r, ToneLabel: r.Tone.Label(), StructureLabel: r.SentenceStructure.Label()}
}

type sessionView struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Mode      string    `json:"mode"`
	Persona   string    `json:"persona,omitempty"`
	Status    string    `json:"status"`
	Cursor    int       `json:"cursor"`
	Questions []string  `json:"questions"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func viewSession(s domain.Session) sessionView {
	return sessionView{
		ID:        s.ID,
		UserID:    s.UserID,
		Mode:      string(s.Mode),
		Persona:   s.Persona,
		Status:    string(s.Status),
		Cursor:    s.Cursor,
		Questions: s.Questions,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

type answerView struct {
	ID                      string                   `json:"id"`
	SessionID               string                   `json:"session_id"`
	Question                string                   `json:"question"`
	Text                    string                   `json:"text"`
	Source                  string                   `json:"source"`
	TranscriptionConfidence float64                  `json:"transcription_confidence,omitempty"`
	DurationSeconds         float64                  `json:"duration_seconds,omitempty"`
	Feedback                recordView               `json:"feedback"`
	Analysis                *domain.AnalysisFeedback `json:"analysis,omitempty"`
	CreatedAt               time.Time                `json:"created_at"`
}

func viewAnswer(a domain.Answer) answerView {
	return answerView{
		ID:                      a.ID,
		SessionID:               a.SessionID,
		Question:                a.Question,
		Text:                    a.Text,
		Source:                  string(a.Source),
		TranscriptionConfidence: a.TranscriptionConfidence,
		DurationSeconds:         a.DurationSeconds,
		Feedback:                viewRecord(a.Feedback),
		Analysis:                a.Analysis,
		CreatedAt:               a.CreatedAt,
	}
}

func viewAnswers(in []domain.Answer) []answerView {
	out := make([]answerView, 0, len(in))
	for _, a := range in {
		out = append(out, viewAnswer(a))
	}
	return out
}

// FeedbackHandler scores arbitrary text.
func (s *Server) FeedbackHandler() http.HandlerFunc {
	type request struct {
		UserID          string  `json:"user_id" validate:"max=128"`
		Question        string  `json:"question" validate:"max=2000"`
		Text            string  `json:"text" validate:"required,max=20000"`
		DurationSeconds float64 `json:"duration_seconds" validate:"gte=0,lte=3600"`
		Analyze         bool    `json:"analyze"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if verrs, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, verrs)
			return
		}
		res, err := s.Feedback.Evaluate(r.Context(), usecase.FeedbackInput{
			UserID:          req.UserID,
			Question:        req.Question,
			Text:            req.Text,
			DurationSeconds: req.DurationSeconds,
			Analyze:         req.Analyze,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"feedback":       viewRecord(res.Feedback),
			"analysis":       res.Analysis,
			"analysis_error": res.AnalysisError,
		})
	}
}

type startSessionRequest struct {
	UserID     string `json:"user_id" validate:"required,max=128"`
	Mode       string `json:"mode" validate:"omitempty,oneof=bank adaptive panel"`
	Persona    string `json:"persona" validate:"max=32"`
	ResumeText string `json:"resume_text" validate:"max=100000"`
}

// StartSessionHandler starts a session from JSON, or from a multipart form
// carrying a resume file.
func (s *Server) StartSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startSessionRequest
		if isMultipart(r) {
			if err := parseMultipart(w, r, s.Cfg.MaxUploadMB<<20); err != nil {
				writeError(w, r, err, nil)
				return
			}
			req = startSessionRequest{
				UserID:  r.FormValue("user_id"),
				Mode:    r.FormValue("mode"),
				Persona: r.FormValue("persona"),
			}
			data, hdr, err := readFormFile(r, "resume", resumeExts, resumeMIMEs)
			if err != nil {
				writeError(w, r, err, map[string]string{"field": "resume"})
				return
			}
			if data != nil {
				if req.ResumeText, err = extractResume(r.Context(), s.Extractor, hdr, data); err != nil {
					writeError(w, r, err, map[string]string{"field": "resume"})
					return
				}
			}
			if verrs, err := validateStruct(req); err != nil {
				writeError(w, r, err, verrs)
				return
			}
		} else if verrs, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, verrs)
			return
		}

		sess, err := s.Interview.StartSession(r.Context(), usecase.StartSessionInput{
			UserID:     req.UserID,
			Mode:       domain.SessionMode(req.Mode),
			Persona:    req.Persona,
			ResumeText: req.ResumeText,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.Header().Set("Location", "/v1/sessions/"+sess.ID)
		writeJSON(w, http.StatusCreated, viewSession(sess))
	}
}

// GetSessionHandler returns a session with its answers.
func (s *Server) GetSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		sess, answers, err := s.Interview.GetSession(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session": viewSession(sess), "answers": viewAnswers(answers)})
	}
}

// NextQuestionHandler hands out the next question of a session. Each call
// advances the session cursor, so it is served on POST only.
func (s *Server) NextQuestionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		q, err := s.Interview.NextQuestion(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// SubmitAnswerHandler accepts a JSON text answer or a multipart audio answer.
func (s *Server) SubmitAnswerHandler() http.HandlerFunc {
	type request struct {
		Question        string  `json:"question" validate:"max=2000"`
		Text            string  `json:"text" validate:"required,max=20000"`
		DurationSeconds float64 `json:"duration_seconds" validate:"gte=0,lte=3600"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		in := usecase.SubmitAnswerInput{SessionID: id}
		if isMultipart(r) {
			if err := parseMultipart(w, r, s.Cfg.MaxUploadMB<<20); err != nil {
				writeError(w, r, err, nil)
				return
			}
			data, hdr, err := readFormFile(r, "audio", audioExts, audioMIMEs)
			if err != nil {
				writeError(w, r, err, map[string]string{"field": "audio"})
				return
			}
			if data == nil {
				writeError(w, r, fmt.Errorf("%w: audio file required", domain.ErrInvalidArgument), map[string]string{"field": "audio"})
				return
			}
			in.Question = r.FormValue("question")
			in.Audio = bytes.NewReader(data)
			in.AudioFilename = hdr.Filename
		} else {
			var req request
			if verrs, err := decodeJSON(w, r, &req); err != nil {
				writeError(w, r, err, verrs)
				return
			}
			in.Question, in.Text, in.DurationSeconds = req.Question, req.Text, req.DurationSeconds
		}

		ans, err := s.Interview.SubmitAnswer(r.Context(), in)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, viewAnswer(ans))
	}
}

// SummaryHandler returns the running summary of a session.
func (s *Server) SummaryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		sum, err := s.Interview.Summary(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

// CompleteHandler closes a session and returns its summary.
func (s *Server) CompleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		sum, err := s.Interview.CompleteSession(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

// ReportHandler builds the model report and strategy of a session.
func (s *Server) ReportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		rep, err := s.Reports.Report(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

// PerfectAnswerHandler writes a model answer for a question.
func (s *Server) PerfectAnswerHandler() http.HandlerFunc {
	type request struct {
		UserID   string `json:"user_id" validate:"max=128"`
		Question string `json:"question" validate:"required,max=2000"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if verrs, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, verrs)
			return
		}
		out, err := s.Coach.PerfectAnswer(r.Context(), req.UserID, req.Question)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"answer": out})
	}
}

// CodeStructureHandler sketches the solution layout of a coding question.
func (s *Server) CodeStructureHandler() http.HandlerFunc {
	type request struct {
		UserID   string `json:"user_id" validate:"max=128"`
		Question string `json:"question" validate:"required,max=4000"`
		Language string `json:"language" validate:"max=32"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if verrs, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, verrs)
			return
		}
		out, err := s.Coach.CodeStructure(r.Context(), req.UserID, req.Question, req.Language)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"structure": out})
	}
}

// ClarityHandler rates delivery clarity and pace of an answer.
func (s *Server) ClarityHandler() http.HandlerFunc {
	type request struct {
		UserID          string  `json:"user_id" validate:"max=128"`
		Answer          string  `json:"answer" validate:"required,max=20000"`
		DurationSeconds float64 `json:"duration_seconds" validate:"gte=0,lte=3600"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if verrs, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, verrs)
			return
		}
		out, err := s.Coach.Clarity(r.Context(), req.UserID, req.Answer, req.DurationSeconds)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// HistoryHandler lists a user's recent answers and interview memory.
func (s *Server) HistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := pathID(r, "user_id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		limit, err := parseLimit(r, 20, 100)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		h, err := s.Interview.History(r.Context(), userID, limit)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"answers": viewAnswers(h.Answers), "memory": h.Memory})
	}
}

// ReadyzHandler runs every readiness probe and reports 503 when one fails.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, len(s.Checks))
		ok := true
		for _, c := range s.Checks {
			if err := c.Probe(ctx); err != nil {
				ok = false
				checks = append(checks, check{Name: c.Name, Details: err.Error()})
				continue
			}
			checks = append(checks, check{Name: c.Name, OK: true})
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
