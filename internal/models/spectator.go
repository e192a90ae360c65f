package models

import (
	"time"

	"github.com/google/uuid"
)

// SpectatorStatus is the admission state of a queue entry. Rejected and ended
// entries are removed from the store rather than kept as terminal states.
type SpectatorStatus string

const (
	SpectatorPending  SpectatorStatus = "pending"
	SpectatorApproved SpectatorStatus = "approved"
	SpectatorRejected SpectatorStatus = "rejected"
	SpectatorEnded    SpectatorStatus = "ended"
)

// Spectator is an anonymous viewer's request to join a session as a
// co-broadcaster. SpectatorID is the opaque token handed to the client as a
// cookie; StreamKey addresses this spectator's stream on the media server and
// is never reused. Seq is a per-session monotone insert counter and is the
// FIFO tie-breaker for queue ordering.
type Spectator struct {
	ID          uuid.UUID       `json:"-"`
	SessionID   uuid.UUID       `json:"session_id"`
	SpectatorID string          `json:"spectator_id"`
	Status      SpectatorStatus `json:"status"`
	StreamKey   string          `json:"stream_key,omitempty"`
	Seq         int64           `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
}

// QueueEntry is a Spectator annotated with its computed position among
// pending entries. Position is derived on read, never stored.
type QueueEntry struct {
	Spectator
	Position int `json:"queue_position"`
}
