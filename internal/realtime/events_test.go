package realtime

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The wire field names are consumed by deployed clients; renaming any of them
// is a breaking change.
func TestEventWireShapes(t *testing.T) {
	sessionID := uuid.New()

	data, err := json.Marshal(QueueUpdated{SessionID: sessionID, SpectatorID: "spectator_ab12cd34", Status: "pending", Position: 3})
	require.NoError(t, err)
	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Contains(t, fields, "queue_position")
	assert.Equal(t, float64(3), fields["queue_position"])

	data, err = json.Marshal(ToggleQRCode{SessionID: sessionID, Show: true, JoinURL: "https://example.com/spectator/join/x"})
	require.NoError(t, err)
	fields = nil
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Contains(t, fields, "qr_url")

	data, err = json.Marshal(NewQuestion{SessionID: sessionID, Text: "why?"})
	require.NoError(t, err)
	fields = nil
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Contains(t, fields, "question_text")
	assert.NotContains(t, fields, "answer_text", "unanswered questions omit the answer field")
}

func TestEventNames(t *testing.T) {
	assert.Equal(t, "queue_updated", QueueUpdated{}.Name())
	assert.Equal(t, "spectator_approved", SpectatorApproved{}.Name())
	assert.Equal(t, "spectator_stream_stopped", SpectatorStreamStopped{}.Name())
	assert.Equal(t, "session_status_changed", SessionStatusChanged{}.Name())
	assert.Equal(t, "toggle_qr_code", ToggleQRCode{}.Name())
	assert.Equal(t, "new_question", NewQuestion{}.Name())
	assert.Equal(t, "new_answer", NewAnswer{}.Name())
	assert.Equal(t, "new_quiz", NewQuiz{}.Name())
	assert.Equal(t, "new_quiz_response", NewQuizResponse{}.Name())
}
