// Package sessions is the broadcast session registry: lifecycle state,
// the single-live-session invariant, and ownership checks used by the
// moderator-only surfaces.
package sessions

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/expertlive/backend/internal/models"
	"github.com/expertlive/backend/internal/realtime"
	"github.com/expertlive/backend/pkg/apperr"
)

// Store is the durable session record. Implemented by Repository.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus) error
	CountLive(ctx context.Context) (int, error)
}

// Broadcaster fans committed lifecycle events out to the session room.
type Broadcaster interface {
	Publish(sessionID uuid.UUID, ev realtime.Event)
}

// Registry coordinates session lifecycle transitions and enforces that at
// most one session is live at any time.
type Registry struct {
	store  Store
	hub    Broadcaster
	logger *zap.Logger
}

// NewRegistry creates a session registry.
func NewRegistry(store Store, hub Broadcaster, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{store: store, hub: hub, logger: logger}
}

// Start transitions a session to live and tells the room. Fails with a
// conflict error when a different session is already live; restarting the
// session that already holds the live slot is a no-op.
func (r *Registry) Start(ctx context.Context, id uuid.UUID) error {
	sess, err := r.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	switch sess.Status {
	case models.SessionLive:
		return nil
	case models.SessionEnded:
		return apperr.InvalidState("session_ended", "session has already ended")
	}
	if err := r.store.SetStatus(ctx, id, models.SessionLive); err != nil {
		return err
	}
	r.hub.Publish(id, realtime.SessionStatusChanged{SessionID: id, Status: string(models.SessionLive)})
	r.logger.Info("session started", zap.String("session_id", id.String()))
	return nil
}

// Stop transitions a session to ended and tells the room.
func (r *Registry) Stop(ctx context.Context, id uuid.UUID) error {
	if _, err := r.store.GetByID(ctx, id); err != nil {
		return err
	}
	if err := r.store.SetStatus(ctx, id, models.SessionEnded); err != nil {
		return err
	}
	r.hub.Publish(id, realtime.SessionStatusChanged{SessionID: id, Status: string(models.SessionEnded)})
	r.logger.Info("session stopped", zap.String("session_id", id.String()))
	return nil
}

// GetByID exposes session lookups to collaborators (admission engine
// liveness checks, moderator authorization).
func (r *Registry) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return r.store.GetByID(ctx, id)
}

// CanModerate reports whether the caller may perform moderator actions on
// the session: its owning expert, or a platform admin.
func CanModerate(sess *models.Session, userID uuid.UUID, role models.Role) bool {
	return role == models.RoleAdmin || sess.OwnerID == userID
}
