package quizzes

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/expertlive/backend/internal/models"
	"github.com/expertlive/backend/pkg/apperr"
)

// Repository handles quiz and response persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a quizzes repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new quiz. Options are stored as JSONB.
func (r *Repository) Create(ctx context.Context, q *models.Quiz) error {
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return err
	}
	const query = `INSERT INTO quizzes (session_id, question, options, correct_answer)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query, q.SessionID, q.Question, opts, q.CorrectAnswer).
		Scan(&q.ID, &q.CreatedAt)
}

// GetByID returns a quiz by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	const query = `SELECT id, session_id, question, options, correct_answer, created_at
		FROM quizzes WHERE id = $1`
	var q models.Quiz
	var opts []byte
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&q.ID, &q.SessionID, &q.Question, &opts, &q.CorrectAnswer, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("quiz_not_found", "quiz not found")
		}
		return nil, err
	}
	if err := json.Unmarshal(opts, &q.Options); err != nil {
		return nil, err
	}
	return &q, nil
}

// ListBySession returns a session's quizzes, newest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Quiz, error) {
	const query = `SELECT id, session_id, question, options, correct_answer, created_at
		FROM quizzes WHERE session_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Quiz
	for rows.Next() {
		var q models.Quiz
		var opts []byte
		if err := rows.Scan(&q.ID, &q.SessionID, &q.Question, &opts, &q.CorrectAnswer, &q.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(opts, &q.Options); err != nil {
			return nil, err
		}
		list = append(list, q)
	}
	return list, rows.Err()
}

// Delete removes a quiz; its responses cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM quizzes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("quiz_not_found", "quiz not found")
	}
	return nil
}

// CreateResponse records one device's answer. A device may answer each quiz
// at most once; a duplicate is surfaced as a conflict error.
func (r *Repository) CreateResponse(ctx context.Context, resp *models.QuizResponse) error {
	const query = `INSERT INTO quiz_responses (quiz_id, device_id, selected_option)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query, resp.QuizID, resp.DeviceID, resp.SelectedOption).
		Scan(&resp.ID, &resp.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperr.Conflict("already_answered", "device already answered this quiz")
		}
		return err
	}
	return nil
}

// Results aggregates response counts per option for one quiz.
func (r *Repository) Results(ctx context.Context, quizID uuid.UUID) (map[int]int, error) {
	const query = `SELECT selected_option, COUNT(*) FROM quiz_responses
		WHERE quiz_id = $1 GROUP BY selected_option`
	rows, err := r.pool.Query(ctx, query, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var option, n int
		if err := rows.Scan(&option, &n); err != nil {
			return nil, err
		}
		counts[option] = n
	}
	return counts, rows.Err()
}
