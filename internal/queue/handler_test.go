package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/expertlive/backend/config"
	"github.com/expertlive/backend/internal/models"
	"github.com/expertlive/backend/internal/realtime"
	"github.com/expertlive/backend/internal/srs"
	"github.com/expertlive/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(engine *Engine, bridge *srs.Client) *gin.Engine {
	h := NewHandler(engine, nil, bridge, realtime.NewHub(zap.NewNop(), nil, nil),
		config.ServerConfig{PublicDomain: "http://localhost:8080"},
		config.SpectatorConfig{CookieMaxAge: 60},
		zap.NewNop(),
	)
	r := gin.New()
	r.POST("/api/queue/:id/join", h.Join)
	r.POST("/api/queue/:id/spectator/:spectatorId/publish", h.Publish)
	return r
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJoinEndpointCreatesEntryAndSetsCookie(t *testing.T) {
	engine, sessionID, _, _ := newTestEngine(models.SessionLive)
	r := newTestRouter(engine, nil)

	w := doJSON(r, http.MethodPost, fmt.Sprintf("/api/queue/%s/join", sessionID), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var body response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.True(t, body.Success)
	data := body.Data.(map[string]interface{})
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, float64(0), data["queue_position"])
	assert.NotEmpty(t, data["spectator_id"])
	assert.NotEmpty(t, data["stream_key"])

	cookie := w.Header().Get("Set-Cookie")
	assert.Contains(t, cookie, "spectator_id_"+sessionID.String())
}

func TestJoinEndpointRejectsInactiveSession(t *testing.T) {
	engine, sessionID, _, _ := newTestEngine(models.SessionScheduled)
	r := newTestRouter(engine, nil)

	w := doJSON(r, http.MethodPost, fmt.Sprintf("/api/queue/%s/join", sessionID), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "session_not_live", body.Code)
}

func TestJoinEndpointRejoinsViaBody(t *testing.T) {
	engine, sessionID, _, _ := newTestEngine(models.SessionLive)
	r := newTestRouter(engine, nil)

	first, err := engine.Join(context.Background(), sessionID, "")
	require.NoError(t, err)

	w := doJSON(r, http.MethodPost, fmt.Sprintf("/api/queue/%s/join", sessionID),
		JoinRequest{SpectatorID: first.SpectatorID})
	require.Equal(t, http.StatusCreated, w.Code)

	var body response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data := body.Data.(map[string]interface{})
	assert.Equal(t, first.SpectatorID, data["spectator_id"])
}

func TestPublishRequiresApprovedSpectator(t *testing.T) {
	engine, sessionID, _, _ := newTestEngine(models.SessionLive)
	r := newTestRouter(engine, nil)

	entry, err := engine.Join(context.Background(), sessionID, "")
	require.NoError(t, err)

	w := doJSON(r, http.MethodPost,
		fmt.Sprintf("/api/queue/%s/spectator/%s/publish", sessionID, entry.SpectatorID),
		gin.H{"sdp": "v=0\r\noffer"})
	require.Equal(t, http.StatusForbidden, w.Code)

	var body response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "spectator_not_approved", body.Code)
}

func TestPublishRejectsMissingSDP(t *testing.T) {
	engine, sessionID, _, _ := newTestEngine(models.SessionLive)
	r := newTestRouter(engine, nil)

	entry, err := engine.Join(context.Background(), sessionID, "")
	require.NoError(t, err)
	require.NoError(t, engine.Approve(context.Background(), sessionID, entry.SpectatorID))

	w := doJSON(r, http.MethodPost,
		fmt.Sprintf("/api/queue/%s/spectator/%s/publish", sessionID, entry.SpectatorID),
		gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "sdp_missing", body.Code)
}

func TestPublishRelaysNegotiatedAnswer(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/version" {
			w.WriteHeader(http.StatusOK)
			return
		}
		json.NewEncoder(w).Encode(gin.H{"code": 0, "sdp": "v=0\r\nanswer"})
	}))
	defer upstream.Close()

	engine, sessionID, _, _ := newTestEngine(models.SessionLive)
	bridge := srs.NewClient(upstream.URL, "media.example.com", nil)
	r := newTestRouter(engine, bridge)

	entry, err := engine.Join(context.Background(), sessionID, "")
	require.NoError(t, err)
	require.NoError(t, engine.Approve(context.Background(), sessionID, entry.SpectatorID))

	// offers arrive either as a bare string or as a session description object
	for _, payload := range []gin.H{
		{"sdp": "v=0\r\noffer"},
		{"sdp": gin.H{"type": "offer", "sdp": "v=0\r\noffer"}},
	} {
		w := doJSON(r, http.MethodPost,
			fmt.Sprintf("/api/queue/%s/spectator/%s/publish", sessionID, entry.SpectatorID),
			payload)
		require.Equal(t, http.StatusOK, w.Code)

		var body response.Body
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		data := body.Data.(map[string]interface{})
		sdp := data["sdp"].(map[string]interface{})
		assert.Equal(t, "answer", sdp["type"])
		assert.Equal(t, "v=0\r\nanswer", sdp["sdp"])
	}
}
