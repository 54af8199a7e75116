package domain

import (
	"context"
	"io"
	"time"

	"github.com/fairyhunter13/ai-mock-interview/internal/feedback"
)

// SessionMode selects where follow-up questions come from.
type SessionMode string

const (
	// ModeBank walks the configured question bank in order.
	ModeBank SessionMode = "bank"
	// ModeAdaptive asks the model for a question based on the candidate's history.
	ModeAdaptive SessionMode = "adaptive"
	// ModePanel asks the model for a question in a panel persona's voice.
	ModePanel SessionMode = "panel"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// Session is one interview run.
// Invariants: Cursor in [0, len(Questions)]; Persona set only in panel mode.
type Session struct {
	ID         string
	UserID     string
	Mode       SessionMode
	Persona    string
	Status     SessionStatus
	Questions  []string
	Cursor     int
	ResumeText string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Question is a question handed to the candidate.
type Question struct {
	Text     string `json:"text"`
	Index    int    `json:"index"`
	Source   string `json:"source"`
	Persona  string `json:"persona,omitempty"`
	Fallback bool   `json:"fallback"`
}

// Question sources.
const (
	QuestionSourceBank     = "bank"
	QuestionSourceResume   = "resume"
	QuestionSourceAdaptive = "adaptive"
	QuestionSourcePanel    = "panel"
)

type AnswerSource string

const (
	AnswerText  AnswerSource = "text"
	AnswerAudio AnswerSource = "audio"
)

// Answer is a scored answer to one question.
type Answer struct {
	ID                      string
	SessionID               string
	UserID                  string
	Question                string
	Text                    string
	Source                  AnswerSource
	TranscriptionConfidence float64
	DurationSeconds         float64
	Feedback                feedback.Record
	Analysis                *AnalysisFeedback
	CreatedAt               time.Time
}

// QARecord is one question/answer pair kept in the interview memory.
type QARecord struct {
	ID         string
	UserID     string
	SessionID  string
	Question   string
	Answer     string
	Confidence float64
	Feedback   string
	Timestamp  time.Time
}

// Transcript is the output of a transcription provider.
type Transcript struct {
	Text            string
	Confidence      float64
	DurationSeconds float64
	Language        string
}

// AnalysisFeedback is the model's narrative analysis of one answer.
type AnalysisFeedback struct {
	ConfidenceScore float64  `json:"confidence_score"`
	FillerWordCount int      `json:"filler_word_count"`
	FillerWords     []string `json:"filler_words"`
	Sentiment       string   `json:"sentiment"`
	ConciseSummary  string   `json:"concise_summary"`
	FeedbackTip     string   `json:"feedback_tip"`
	WPMFeedback     string   `json:"wpm_feedback"`
}

// ClarityFeedback is the model's assessment of delivery clarity and pace.
type ClarityFeedback struct {
	ClarityScore    float64 `json:"clarity_score"`
	PaceAssessment  string  `json:"pace_assessment"`
	FillerWordCount int     `json:"filler_word_count"`
	DeliveryTip     string  `json:"delivery_tip"`
}

// SessionReport is the model's end-of-session write-up.
type SessionReport struct {
	OverallAssessment string   `json:"overall_assessment"`
	Strengths         []string `json:"strengths"`
	Weaknesses        []string `json:"weaknesses"`
	Suggestions       []string `json:"suggestions"`
}

// StrategyDay is one day of a preparation plan.
type StrategyDay struct {
	Day   int      `json:"day"`
	Focus string   `json:"focus"`
	Tasks []string `json:"tasks"`
}

// AnswerRecordedEvent is published after an answer has been persisted.
type AnswerRecordedEvent struct {
	AnswerID   string    `json:"answer_id"`
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Confidence float64   `json:"confidence"`
	Tone       string    `json:"tone"`
	Feedback   string    `json:"feedback"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Repositories (ports)

type SessionRepository interface {
	Create(ctx Context, s Session) (string, error)
	Get(ctx Context, id string) (Session, error)
	Update(ctx Context, s Session) error
}

type AnswerRepository interface {
	Create(ctx Context, a Answer) (string, error)
	ListBySession(ctx Context, sessionID string) ([]Answer, error)
	ListByUser(ctx Context, userID string, limit int) ([]Answer, error)
}

// MemoryStore keeps the Q&A history of each user across sessions.
type MemoryStore interface {
	SaveQA(ctx Context, r QARecord) error
	// PreviousQA returns up to limit records for the user, most recent first.
	PreviousQA(ctx Context, userID string, limit int) ([]QARecord, error)
}

// EventPublisher (port)

type EventPublisher interface {
	PublishAnswerRecorded(ctx Context, ev AnswerRecordedEvent) error
}

// ChatOptions tunes a single completion.
type ChatOptions struct {
	MaxTokens   int
	Temperature float64
}

// AIClient (port)

type AIClient interface {
	// Embed returns embedding vectors for texts; deterministic in stub mode
	Embed(ctx Context, texts []string) ([][]float32, error)
	// ChatJSON returns a JSON object as raw text; callers validate it
	ChatJSON(ctx Context, systemPrompt, userPrompt string, opts ChatOptions) (string, error)
	// Chat returns free text
	Chat(ctx Context, systemPrompt, userPrompt string, opts ChatOptions) (string, error)
}

// Transcriber (port)

type Transcriber interface {
	Transcribe(ctx Context, audio io.Reader, filename string) (Transcript, error)
}

// TextExtractor (port)
// ExtractPath extracts text from a file at path with provided original filename.
type TextExtractor interface {
	ExtractPath(ctx Context, fileName, path string) (string, error)
}

// QuotaLimiter (port)

type QuotaLimiter interface {
	Allow(ctx Context, key string, cost int64) (allowed bool, retryAfter time.Duration, err error)
}

// Context is an alias so ports read the same across packages.
type Context = context.Context
