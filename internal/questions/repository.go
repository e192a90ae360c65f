package questions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/expertlive/backend/internal/models"
	"github.com/expertlive/backend/pkg/apperr"
)

// Repository handles question persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a questions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new question.
func (r *Repository) Create(ctx context.Context, q *models.Question) error {
	const query = `INSERT INTO questions (session_id, question_text)
		VALUES ($1, $2)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query, q.SessionID, q.Text).
		Scan(&q.ID, &q.CreatedAt)
}

// GetByID returns a question by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	const query = `SELECT id, session_id, question_text, answer_text, created_at
		FROM questions WHERE id = $1`
	var q models.Question
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&q.ID, &q.SessionID, &q.Text, &q.Answer, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("question_not_found", "question not found")
		}
		return nil, err
	}
	return &q, nil
}

// SetAnswer records the expert's answer to a question.
func (r *Repository) SetAnswer(ctx context.Context, id uuid.UUID, answer string) error {
	const query = `UPDATE questions SET answer_text = $1 WHERE id = $2`
	tag, err := r.pool.Exec(ctx, query, answer, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("question_not_found", "question not found")
	}
	return nil
}

// ListBySession returns all questions for a session, oldest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Question, error) {
	const query = `SELECT id, session_id, question_text, answer_text, created_at
		FROM questions WHERE session_id = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Question
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.SessionID, &q.Text, &q.Answer, &q.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, q)
	}
	return list, rows.Err()
}
