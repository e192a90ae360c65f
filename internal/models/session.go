package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a broadcast session.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionLive      SessionStatus = "live"
	SessionEnded     SessionStatus = "ended"
)

// Session represents one scheduled or live expert broadcast. At most one
// session is live at any time, enforced by the sessions store.
type Session struct {
	ID          uuid.UUID     `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	StartsAt    time.Time     `json:"starts_at"`
	EndsAt      time.Time     `json:"ends_at"`
	Status      SessionStatus `json:"status"`
	StreamKey   string        `json:"stream_key"`
	OwnerID     uuid.UUID     `json:"owner_id"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// IsActive reports whether the session is live and inside its scheduling window.
func (s *Session) IsActive(now time.Time) bool {
	return s.Status == SessionLive && !now.Before(s.StartsAt) && !now.After(s.EndsAt)
}
