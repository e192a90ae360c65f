package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/expertlive/backend/internal/models"
	"github.com/expertlive/backend/pkg/apperr"
)

// Repository is the PostgreSQL-backed queue store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a spectator queue repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert persists a new queue entry, assigning the next per-session sequence
// number. The engine holds the session lock across this call; the unique
// (session_id, seq) constraint backstops concurrent writers on other
// instances.
func (r *Repository) Insert(ctx context.Context, s *models.Spectator) error {
	const q = `INSERT INTO spectators (session_id, spectator_id, status, stream_key, seq)
		VALUES ($1, $2, $3, $4, COALESCE((SELECT MAX(seq) + 1 FROM spectators WHERE session_id = $1), 1))
		RETURNING id, seq, created_at`
	return r.pool.QueryRow(ctx, q, s.SessionID, s.SpectatorID, string(s.Status), s.StreamKey).
		Scan(&s.ID, &s.Seq, &s.CreatedAt)
}

// GetBySpectatorID returns a queue entry by its opaque spectator token.
func (r *Repository) GetBySpectatorID(ctx context.Context, sessionID uuid.UUID, spectatorID string) (*models.Spectator, error) {
	const q = `SELECT id, session_id, spectator_id, status, stream_key, seq, created_at
		FROM spectators WHERE session_id = $1 AND spectator_id = $2`
	var s models.Spectator
	err := r.pool.QueryRow(ctx, q, sessionID, spectatorID).
		Scan(&s.ID, &s.SessionID, &s.SpectatorID, &s.Status, &s.StreamKey, &s.Seq, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("spectator_not_found", "spectator not found")
		}
		return nil, err
	}
	return &s, nil
}

// ListBySession returns all entries for a session in arrival order, each with
// its position computed among pending entries of the same session.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.QueueEntry, error) {
	const q = `SELECT s.id, s.session_id, s.spectator_id, s.status, s.stream_key, s.seq, s.created_at,
		(SELECT COUNT(*) FROM spectators p
			WHERE p.session_id = s.session_id AND p.status = 'pending' AND p.seq < s.seq) AS queue_position
		FROM spectators s WHERE s.session_id = $1 ORDER BY s.seq ASC`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.QueueEntry
	for rows.Next() {
		var e models.QueueEntry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.SpectatorID, &e.Status, &e.StreamKey, &e.Seq, &e.CreatedAt, &e.Position); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// UpdateStatus transitions a queue entry's admission status.
func (r *Repository) UpdateStatus(ctx context.Context, sessionID uuid.UUID, spectatorID string, status models.SpectatorStatus) error {
	const q = `UPDATE spectators SET status = $1 WHERE session_id = $2 AND spectator_id = $3`
	tag, err := r.pool.Exec(ctx, q, string(status), sessionID, spectatorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("spectator_not_found", "spectator not found")
	}
	return nil
}

// Delete removes a queue entry. Rejection and stream end are destructive; no
// terminal history is kept.
func (r *Repository) Delete(ctx context.Context, sessionID uuid.UUID, spectatorID string) error {
	const q = `DELETE FROM spectators WHERE session_id = $1 AND spectator_id = $2`
	tag, err := r.pool.Exec(ctx, q, sessionID, spectatorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("spectator_not_found", "spectator not found")
	}
	return nil
}

// CountPendingBefore returns the number of pending entries ahead of the given
// sequence number, i.e. the queue position of the entry holding it.
func (r *Repository) CountPendingBefore(ctx context.Context, sessionID uuid.UUID, seq int64) (int, error) {
	const q = `SELECT COUNT(*) FROM spectators WHERE session_id = $1 AND status = 'pending' AND seq < $2`
	var n int
	err := r.pool.QueryRow(ctx, q, sessionID, seq).Scan(&n)
	return n, err
}

// CountPending returns the number of pending entries for a session.
func (r *Repository) CountPending(ctx context.Context, sessionID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM spectators WHERE session_id = $1 AND status = 'pending'`
	var n int
	err := r.pool.QueryRow(ctx, q, sessionID).Scan(&n)
	return n, err
}
