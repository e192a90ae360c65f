package models

import (
	"time"

	"github.com/google/uuid"
)

// Question is a viewer question asked during a live session. Answer stays nil
// until the expert responds.
type Question struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Text      string    `json:"question_text"`
	Answer    *string   `json:"answer_text,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
}
