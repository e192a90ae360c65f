package models

import (
	"time"

	"github.com/google/uuid"
)

// Quiz is a multiple-choice question pushed to all viewers of a session.
// Options are indexed from zero; CorrectAnswer is an index into Options.
type Quiz struct {
	ID            uuid.UUID `json:"id"`
	SessionID     uuid.UUID `json:"session_id"`
	Question      string    `json:"question"`
	Options       []string  `json:"options"`
	CorrectAnswer int       `json:"correct_answer"`
	CreatedAt     time.Time `json:"timestamp"`
}

// QuizResponse is one anonymous device's answer to a quiz. A device may
// answer each quiz at most once.
type QuizResponse struct {
	ID             uuid.UUID `json:"id"`
	QuizID         uuid.UUID `json:"quiz_id"`
	DeviceID       string    `json:"device_id"`
	SelectedOption int       `json:"selected_option"`
	CreatedAt      time.Time `json:"timestamp"`
}

// QuizResults aggregates response counts per option for one quiz.
type QuizResults struct {
	QuizID         uuid.UUID   `json:"quiz_id"`
	Counts         map[int]int `json:"counts"`
	TotalResponses int         `json:"total_responses"`
}
