package sessions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/expertlive/backend/internal/models"
	"github.com/expertlive/backend/pkg/apperr"
)

// Repository handles session persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const sessionColumns = `id, title, description, starts_at, ends_at, status, stream_key, owner_id, created_at, updated_at`

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	err := row.Scan(&s.ID, &s.Title, &s.Description, &s.StartsAt, &s.EndsAt, &s.Status, &s.StreamKey, &s.OwnerID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("session_not_found", "session not found")
		}
		return nil, err
	}
	return &s, nil
}

// Create inserts a new session in status scheduled.
func (r *Repository) Create(ctx context.Context, s *models.Session) error {
	const q = `INSERT INTO sessions (title, description, starts_at, ends_at, status, stream_key, owner_id)
		VALUES ($1, $2, $3, $4, 'scheduled', $5, $6)
		RETURNING id, status, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, s.Title, s.Description, s.StartsAt, s.EndsAt, s.StreamKey, s.OwnerID).
		Scan(&s.ID, &s.Status, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID returns a session by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
}

// GetByStreamKey returns a session by its broadcast stream key.
func (r *Repository) GetByStreamKey(ctx context.Context, streamKey string) (*models.Session, error) {
	return scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE stream_key = $1`, streamKey))
}

// ListByOwner returns sessions created by an expert, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Session, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE owner_id = $1 ORDER BY starts_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.Title, &s.Description, &s.StartsAt, &s.EndsAt, &s.Status, &s.StreamKey, &s.OwnerID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// SetStatus transitions a session's lifecycle status. Moving to live trips
// the partial unique index when another session already holds it, surfaced
// as a conflict error.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus) error {
	const q = `UPDATE sessions SET status = $1, updated_at = NOW() WHERE id = $2`
	tag, err := r.pool.Exec(ctx, q, string(status), id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperr.Conflict("session_already_live", "another session is already live")
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("session_not_found", "session not found")
	}
	return nil
}

// CountLive returns the number of live sessions (at most one by invariant).
func (r *Repository) CountLive(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sessions WHERE status = 'live'`).Scan(&n)
	return n, err
}

// Delete removes a session; dependent questions, quizzes and spectators go
// with it via FK cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("session_not_found", "session not found")
	}
	return nil
}
