package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
)

// AnswerRepo persists scored answers.
type AnswerRepo struct{ Pool PgxPool }

// NewAnswerRepo constructs an AnswerRepo with the given pool.
func NewAnswerRepo(p PgxPool) *AnswerRepo { return &AnswerRepo{Pool: p} }

const answerColumns = `id, session_id, user_id, question, text, source, transcription_confidence, duration_seconds, feedback, analysis, created_at`

// Create inserts an answer and returns its id.
func (r *AnswerRepo) Create(ctx domain.Context, a domain.Answer) (string, error) {
	ctx, span := otel.Tracer("repo.answers").Start(ctx, "answers.Create")
	defer span.End()

	id := a.ID
	if id == "" {
		id = uuid.New().String()
	}
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	fb, err := json.Marshal(a.Feedback)
	if err != nil {
		return "", fmt.Errorf("op=answer.create: %w", err)
	}
	var analysis []byte
	if a.Analysis != nil {
		if analysis, err = json.Marshal(a.Analysis); err != nil {
			return "", fmt.Errorf("op=answer.create: %w", err)
		}
	}
	q := `INSERT INTO answers (` + answerColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	if _, err := r.Pool.Exec(ctx, q, id, a.SessionID, a.UserID, a.Question, a.Text, string(a.Source),
		a.TranscriptionConfidence, a.DurationSeconds, fb, analysis, created); err != nil {
		return "", fmt.Errorf("op=answer.create: %w", err)
	}
	return id, nil
}

// ListBySession returns the answers of a session in submission order.
func (r *AnswerRepo) ListBySession(ctx domain.Context, sessionID string) ([]domain.Answer, error) {
	ctx, span := otel.Tracer("repo.answers").Start(ctx, "answers.ListBySession")
	defer span.End()

	rows, err := r.Pool.Query(ctx, `SELECT `+answerColumns+` FROM answers WHERE session_id=$1 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("op=answer.list_session: %w", err)
	}
	return scanAnswers(rows, "op=answer.list_session")
}

// ListByUser returns up to limit of the user's most recent answers, newest first.
func (r *AnswerRepo) ListByUser(ctx domain.Context, userID string, limit int) ([]domain.Answer, error) {
	ctx, span := otel.Tracer("repo.answers").Start(ctx, "answers.ListByUser")
	defer span.End()

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.Pool.Query(ctx, `SELECT `+answerColumns+` FROM answers WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("op=answer.list_user: %w", err)
	}
	return scanAnswers(rows, "op=answer.list_user")
}

func scanAnswers(rows pgx.Rows, op string) ([]domain.Answer, error) {
	defer rows.Close()
	out := []domain.Answer{}
	for rows.Next() {
		var (
			a        domain.Answer
			source   string
			fb       []byte
			analysis []byte
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &a.UserID, &a.Question, &a.Text, &source,
			&a.TranscriptionConfidence, &a.DurationSeconds, &fb, &analysis, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.Source = domain.AnswerSource(source)
		if err := json.Unmarshal(fb, &a.Feedback); err != nil {
			return nil, fmt.Errorf("%s: decode feedback: %w", op, err)
		}
		if len(analysis) > 0 && string(analysis) != "null" {
			a.Analysis = &domain.AnalysisFeedback{}
			if err := json.Unmarshal(analysis, a.Analysis); err != nil {
				return nil, fmt.Errorf("%s: decode analysis: %w", op, err)
			}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
