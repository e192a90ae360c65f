package realtime

import (
	"time"

	"github.com/google/uuid"
)

// Event is a typed payload broadcast to a session room. Each event carries a
// fixed field set; Name is the wire-level event tag.
type Event interface {
	Name() string
}

// QueueUpdated reports a spectator's admission state and recomputed position.
type QueueUpdated struct {
	SessionID   uuid.UUID `json:"session_id"`
	SpectatorID string    `json:"spectator_id"`
	Status      string    `json:"status"`
	Position    int       `json:"queue_position"`
}

func (QueueUpdated) Name() string { return "queue_updated" }

// SpectatorApproved carries the stream key the approved spectator needs to
// start media negotiation.
type SpectatorApproved struct {
	SessionID   uuid.UUID `json:"session_id"`
	SpectatorID string    `json:"spectator_id"`
	StreamKey   string    `json:"stream_key"`
}

func (SpectatorApproved) Name() string { return "spectator_approved" }

// SpectatorStreamStopped tells clients to tear down a spectator's stream.
type SpectatorStreamStopped struct {
	SessionID   uuid.UUID `json:"session_id"`
	SpectatorID string    `json:"spectator_id"`
}

func (SpectatorStreamStopped) Name() string { return "spectator_stream_stopped" }

// SessionStatusChanged reports a session lifecycle transition.
type SessionStatusChanged struct {
	SessionID uuid.UUID `json:"session_id"`
	Status    string    `json:"status"`
}

func (SessionStatusChanged) Name() string { return "session_status_changed" }

// ToggleQRCode shows or hides the join-link QR code on viewer screens.
type ToggleQRCode struct {
	SessionID uuid.UUID `json:"session_id"`
	Show      bool      `json:"show"`
	JoinURL   string    `json:"qr_url"`
}

func (ToggleQRCode) Name() string { return "toggle_qr_code" }

// NewQuestion announces a viewer question to the room.
type NewQuestion struct {
	SessionID  uuid.UUID `json:"session_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Text       string    `json:"question_text"`
	Answer     string    `json:"answer_text,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func (NewQuestion) Name() string { return "new_question" }

// NewAnswer announces the expert's answer to a question.
type NewAnswer struct {
	SessionID  uuid.UUID `json:"session_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Text       string    `json:"question_text"`
	Answer     string    `json:"answer_text"`
	Timestamp  time.Time `json:"timestamp"`
}

func (NewAnswer) Name() string { return "new_answer" }

// NewQuiz pushes a quiz to all viewers. The correct answer is not included.
type NewQuiz struct {
	SessionID uuid.UUID `json:"session_id"`
	QuizID    uuid.UUID `json:"id"`
	Question  string    `json:"question"`
	Options   []string  `json:"options"`
	Timestamp time.Time `json:"timestamp"`
}

func (NewQuiz) Name() string { return "new_quiz" }

// NewQuizResponse reports one anonymous quiz answer.
type NewQuizResponse struct {
	SessionID      uuid.UUID `json:"session_id"`
	QuizID         uuid.UUID `json:"quiz_id"`
	SelectedOption int       `json:"selected_option"`
}

func (NewQuizResponse) Name() string { return "new_quiz_response" }
