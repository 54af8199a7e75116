package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
)

// SessionRepo persists interview sessions.
type SessionRepo struct{ Pool PgxPool }

// NewSessionRepo constructs a SessionRepo with the given pool.
func NewSessionRepo(p PgxPool) *SessionRepo { return &SessionRepo{Pool: p} }

// Create inserts a session and returns its id.
func (r *SessionRepo) Create(ctx domain.Context, s domain.Session) (string, error) {
	ctx, span := otel.Tracer("repo.sessions").Start(ctx, "sessions.Create")
	defer span.End()

	id := s.ID
	if id == "" {
		id = uuid.New().String()
	}
	questions, err := json.Marshal(nonNil(s.Questions))
	if err != nil {
		return "", fmt.Errorf("op=session.create: %w", err)
	}
	now := time.Now().UTC()
	q := `INSERT INTO sessions (id, user_id, mode, persona, status, questions, next_index, resume_text, created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	if _, err := r.Pool.Exec(ctx, q, id, s.UserID, string(s.Mode), s.Persona, string(s.Status), questions, s.Cursor, s.ResumeText, now, now); err != nil {
		return "", fmt.Errorf("op=session.create: %w", err)
	}
	span.SetAttributes(attribute.String("session.id", id))
	return id, nil
}

// Get loads a session by id.
func (r *SessionRepo) Get(ctx domain.Context, id string) (domain.Session, error) {
	ctx, span := otel.Tracer("repo.sessions").Start(ctx, "sessions.Get")
	defer span.End()

	q := `SELECT id, user_id, mode, persona, status, questions, next_index, resume_text, created_at, updated_at FROM sessions WHERE id=$1`
	var (
		s         domain.Session
		mode      string
		status    string
		questions []byte
	)
	err := r.Pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.UserID, &mode, &s.Persona, &status, &questions, &s.Cursor, &s.ResumeText, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, fmt.Errorf("op=session.get: %w", domain.ErrNotFound)
		}
		return domain.Session{}, fmt.Errorf("op=session.get: %w", err)
	}
	s.Mode = domain.SessionMode(mode)
	s.Status = domain.SessionStatus(status)
	if err := json.Unmarshal(questions, &s.Questions); err != nil {
		return domain.Session{}, fmt.Errorf("op=session.get: decode questions: %w", err)
	}
	return s, nil
}

// Update writes the mutable fields of a session.
func (r *SessionRepo) Update(ctx domain.Context, s domain.Session) error {
	ctx, span := otel.Tracer("repo.sessions").Start(ctx, "sessions.Update")
	defer span.End()

	questions, err := json.Marshal(nonNil(s.Questions))
	if err != nil {
		return fmt.Errorf("op=session.update: %w", err)
	}
	q := `UPDATE sessions SET status=$2, questions=$3, next_index=$4, persona=$5, updated_at=$6 WHERE id=$1`
	tag, err := r.Pool.Exec(ctx, q, s.ID, string(s.Status), questions, s.Cursor, s.Persona, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=session.update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=session.update: %w", domain.ErrNotFound)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
