package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/expertlive/backend/pkg/metrics"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// ReplayProvider returns the events a late joiner needs to render current
// session state (open questions, quizzes, and for moderators the queue).
type ReplayProvider func(ctx context.Context, sessionID uuid.UUID, moderator bool) []Event

// Hub maintains session room membership and fans events out to clients.
// Uses Redis pub/sub for horizontal scaling: local broadcast + publish to Redis.
type Hub struct {
	// sessionID -> map[clientID]*Client
	rooms    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per session
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
	replay   ReplayProvider
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishSessionEvent(sessionID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to session channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeSession(sessionID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		rooms:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// SetReplayProvider sets the callback that produces late-joiner replay events.
func (h *Hub) SetReplayProvider(fn ReplayProvider) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.replay = fn
}

// Register adds a client to a session room. Starts the Redis subscription for
// this session when the first client joins.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.SessionID] == nil {
		h.rooms[c.SessionID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeSession(c.SessionID, func(event string, payload []byte) {
				h.BroadcastToSession(c.SessionID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.SessionID] = cancel
			}
		}
	}
	h.rooms[c.SessionID][c.ID] = c
	count := len(h.rooms[c.SessionID])
	h.mu.Unlock()
	metrics.RoomClients.WithLabelValues(c.SessionID.String()).Set(float64(count))
	h.logger.Debug("client joined room", zap.String("client_id", c.ID), zap.String("session_id", c.SessionID.String()))
}

// Unregister removes a client from a session room. Cancels the Redis
// subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	var count int
	if m, ok := h.rooms[c.SessionID]; ok {
		delete(m, c.ID)
		count = len(m)
		if count == 0 {
			delete(h.rooms, c.SessionID)
			if cancel, ok := h.subs[c.SessionID]; ok {
				cancel()
				delete(h.subs, c.SessionID)
			}
		}
	}
	h.mu.Unlock()
	metrics.RoomClients.WithLabelValues(c.SessionID.String()).Set(float64(count))
	h.logger.Debug("client left room", zap.String("client_id", c.ID), zap.String("session_id", c.SessionID.String()))
}

// BroadcastToSession sends a raw message to all clients in a session room (local only).
func (h *Hub) BroadcastToSession(sessionID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.rooms[sessionID]
	h.mu.RUnlock()

	if clients == nil {
		return
	}
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish broadcasts a typed event to the session room on every instance.
// With Redis configured it publishes to the channel only; the per-room
// subscription performs the local broadcast exactly once per instance.
// Callers invoke this only after the causing mutation committed.
func (h *Hub) Publish(sessionID uuid.UUID, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event", zap.String("event", ev.Name()), zap.Error(err))
		return
	}
	metrics.EventsBroadcast.WithLabelValues(ev.Name()).Inc()
	if h.redis != nil {
		if err := h.redis.PublishSessionEvent(sessionID, ev.Name(), data); err == nil {
			return
		} else {
			// The mutation already committed; deliver locally and let clients
			// on other instances catch up via replay on their next join.
			h.logger.Warn("redis publish failed", zap.String("event", ev.Name()), zap.Error(err))
		}
	}
	h.BroadcastToSession(sessionID, ev.Name(), json.RawMessage(data))
}

// SendToClient sends a typed event to a single client in a session room
// (used for late-joiner replay).
func (h *Hub) SendToClient(sessionID uuid.UUID, clientID string, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	msg := WSMessage{Event: ev.Name(), Data: data}
	h.mu.RLock()
	clients := h.rooms[sessionID]
	c, ok := clients[clientID]
	h.mu.RUnlock()
	if !ok || c == nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// ReplayTo pushes current-state events to one client after it joins a room.
func (h *Hub) ReplayTo(ctx context.Context, c *Client) {
	h.mu.RLock()
	replay := h.replay
	h.mu.RUnlock()
	if replay == nil {
		return
	}
	for _, ev := range replay(ctx, c.SessionID, c.Moderator) {
		h.SendToClient(c.SessionID, c.ID, ev)
	}
}

// RoomSize returns the number of connected clients in a session room.
func (h *Hub) RoomSize(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}
