// Package queue implements the spectator admission queue: a FIFO waiting
// line of anonymous viewers asking to join a live session as co-broadcasters,
// with moderator approval and realtime position fan-out.
package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/expertlive/backend/internal/models"
	"github.com/expertlive/backend/internal/realtime"
	"github.com/expertlive/backend/pkg/apperr"
	"github.com/expertlive/backend/pkg/metrics"
)

// Store is the durable queue record. Implemented by Repository; the engine is
// the only writer.
type Store interface {
	Insert(ctx context.Context, s *models.Spectator) error
	GetBySpectatorID(ctx context.Context, sessionID uuid.UUID, spectatorID string) (*models.Spectator, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.QueueEntry, error)
	UpdateStatus(ctx context.Context, sessionID uuid.UUID, spectatorID string, status models.SpectatorStatus) error
	Delete(ctx context.Context, sessionID uuid.UUID, spectatorID string) error
	CountPendingBefore(ctx context.Context, sessionID uuid.UUID, seq int64) (int, error)
	CountPending(ctx context.Context, sessionID uuid.UUID) (int, error)
}

// SessionSource provides session lookups for liveness checks.
type SessionSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// Broadcaster fans committed queue events out to the session room.
type Broadcaster interface {
	Publish(sessionID uuid.UUID, ev realtime.Event)
}

// Engine owns all mutations of the spectator queue. Mutations for one session
// serialize on a per-session mutex so position reads never observe a
// half-applied change; sessions are independent of each other.
type Engine struct {
	store    Store
	sessions SessionSource
	hub      Broadcaster
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewEngine creates an admission engine.
func NewEngine(store Store, sessions SessionSource, hub Broadcaster, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:    store,
		sessions: sessions,
		hub:      hub,
		logger:   logger,
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

func (e *Engine) sessionLock(id uuid.UUID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

// newToken generates an opaque identity or stream key token.
func newToken(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}

// Join adds a viewer to the session's waiting queue, or returns the existing
// entry when a still-valid spectator token is supplied. Fails with an
// invalid-state error unless the session is live.
func (e *Engine) Join(ctx context.Context, sessionID uuid.UUID, existingToken string) (*models.QueueEntry, error) {
	sess, err := e.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.SessionLive {
		metrics.QueueOperations.WithLabelValues("join", "rejected").Inc()
		return nil, apperr.InvalidState("session_not_live", "session is not live")
	}

	l := e.sessionLock(sessionID)
	l.Lock()
	defer l.Unlock()

	if existingToken != "" {
		sp, err := e.store.GetBySpectatorID(ctx, sessionID, existingToken)
		if err == nil {
			pos, err := e.store.CountPendingBefore(ctx, sessionID, sp.Seq)
			if err != nil {
				return nil, err
			}
			metrics.QueueOperations.WithLabelValues("join", "rejoined").Inc()
			entry := &models.QueueEntry{Spectator: *sp, Position: pos}
			e.broadcastPosition(entry)
			return entry, nil
		}
		if !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
		// token no longer valid, fall through and create a fresh entry
	}

	sp := &models.Spectator{
		SessionID:   sessionID,
		SpectatorID: newToken("spectator"),
		Status:      models.SpectatorPending,
		StreamKey:   newToken("spectator"),
	}
	if err := e.store.Insert(ctx, sp); err != nil {
		metrics.QueueOperations.WithLabelValues("join", "error").Inc()
		return nil, err
	}
	pos, err := e.store.CountPendingBefore(ctx, sessionID, sp.Seq)
	if err != nil {
		return nil, err
	}

	metrics.QueueOperations.WithLabelValues("join", "ok").Inc()
	e.updateDepth(ctx, sessionID)
	entry := &models.QueueEntry{Spectator: *sp, Position: pos}
	e.broadcastPosition(entry)
	e.logger.Info("spectator joined queue",
		zap.String("session_id", sessionID.String()),
		zap.String("spectator_id", sp.SpectatorID),
		zap.Int("position", pos),
	)
	return entry, nil
}

// List returns all queue entries for a session ordered by arrival, each
// annotated with its position among pending entries.
func (e *Engine) List(ctx context.Context, sessionID uuid.UUID) ([]models.QueueEntry, error) {
	if _, err := e.sessions.GetByID(ctx, sessionID); err != nil {
		return nil, err
	}
	return e.store.ListBySession(ctx, sessionID)
}

// Get returns one queue entry without mutating anything. Used by the
// negotiation bridge's approved-status precondition.
func (e *Engine) Get(ctx context.Context, sessionID uuid.UUID, spectatorID string) (*models.Spectator, error) {
	return e.store.GetBySpectatorID(ctx, sessionID, spectatorID)
}

// Approve marks a pending spectator as approved and hands the room its stream
// key so the client can start media negotiation. The entry stays in the store.
func (e *Engine) Approve(ctx context.Context, sessionID uuid.UUID, spectatorID string) error {
	l := e.sessionLock(sessionID)
	l.Lock()
	defer l.Unlock()

	sp, err := e.store.GetBySpectatorID(ctx, sessionID, spectatorID)
	if err != nil {
		metrics.QueueOperations.WithLabelValues("approve", "not_found").Inc()
		return err
	}
	if err := e.store.UpdateStatus(ctx, sessionID, spectatorID, models.SpectatorApproved); err != nil {
		metrics.QueueOperations.WithLabelValues("approve", "error").Inc()
		return err
	}

	metrics.QueueOperations.WithLabelValues("approve", "ok").Inc()
	e.updateDepth(ctx, sessionID)
	e.hub.Publish(sessionID, realtime.SpectatorApproved{
		SessionID:   sessionID,
		SpectatorID: spectatorID,
		StreamKey:   sp.StreamKey,
	})
	e.logger.Info("spectator approved",
		zap.String("session_id", sessionID.String()),
		zap.String("spectator_id", spectatorID),
	)
	return nil
}

// Reject removes a pending spectator from the queue entirely and tells the
// room. Repeating a reject fails with a not-found error.
func (e *Engine) Reject(ctx context.Context, sessionID uuid.UUID, spectatorID string) error {
	l := e.sessionLock(sessionID)
	l.Lock()
	defer l.Unlock()

	if _, err := e.store.GetBySpectatorID(ctx, sessionID, spectatorID); err != nil {
		metrics.QueueOperations.WithLabelValues("reject", "not_found").Inc()
		return err
	}
	if err := e.store.Delete(ctx, sessionID, spectatorID); err != nil {
		metrics.QueueOperations.WithLabelValues("reject", "error").Inc()
		return err
	}

	metrics.QueueOperations.WithLabelValues("reject", "ok").Inc()
	e.updateDepth(ctx, sessionID)
	e.hub.Publish(sessionID, realtime.QueueUpdated{
		SessionID:   sessionID,
		SpectatorID: spectatorID,
		Status:      string(models.SpectatorRejected),
	})
	e.hub.Publish(sessionID, realtime.SpectatorStreamStopped{
		SessionID:   sessionID,
		SpectatorID: spectatorID,
	})
	e.logger.Info("spectator rejected",
		zap.String("session_id", sessionID.String()),
		zap.String("spectator_id", spectatorID),
	)
	return nil
}

// Stop ends an approved spectator's turn: the entry is removed and the room
// is told to tear the stream down.
func (e *Engine) Stop(ctx context.Context, sessionID uuid.UUID, spectatorID string) error {
	l := e.sessionLock(sessionID)
	l.Lock()
	defer l.Unlock()

	if _, err := e.store.GetBySpectatorID(ctx, sessionID, spectatorID); err != nil {
		metrics.QueueOperations.WithLabelValues("stop", "not_found").Inc()
		return err
	}
	if err := e.store.Delete(ctx, sessionID, spectatorID); err != nil {
		metrics.QueueOperations.WithLabelValues("stop", "error").Inc()
		return err
	}

	metrics.QueueOperations.WithLabelValues("stop", "ok").Inc()
	e.updateDepth(ctx, sessionID)
	e.hub.Publish(sessionID, realtime.SpectatorStreamStopped{
		SessionID:   sessionID,
		SpectatorID: spectatorID,
	})
	e.logger.Info("spectator stream stopped",
		zap.String("session_id", sessionID.String()),
		zap.String("spectator_id", spectatorID),
	)
	return nil
}

func (e *Engine) broadcastPosition(entry *models.QueueEntry) {
	e.hub.Publish(entry.SessionID, realtime.QueueUpdated{
		SessionID:   entry.SessionID,
		SpectatorID: entry.SpectatorID,
		Status:      string(entry.Status),
		Position:    entry.Position,
	})
}

func (e *Engine) updateDepth(ctx context.Context, sessionID uuid.UUID) {
	if n, err := e.store.CountPending(ctx, sessionID); err == nil {
		metrics.QueueDepth.WithLabelValues(sessionID.String()).Set(float64(n))
	}
}
