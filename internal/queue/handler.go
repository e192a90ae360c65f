package queue

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	webrtc "github.com/pion/webrtc/v3"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/expertlive/backend/config"
	"github.com/expertlive/backend/internal/middleware"
	"github.com/expertlive/backend/internal/models"
	"github.com/expertlive/backend/internal/realtime"
	"github.com/expertlive/backend/internal/sessions"
	"github.com/expertlive/backend/internal/srs"
	"github.com/expertlive/backend/pkg/apperr"
	"github.com/expertlive/backend/pkg/response"
)

// JoinRequest is the body for POST /api/queue/:id/join.
type JoinRequest struct {
	SpectatorID string `json:"spectator_id"`
}

// ToggleQRRequest is the body for POST /api/queue/:id/toggle_qr.
type ToggleQRRequest struct {
	Show bool `json:"show"`
}

// PublishRequest is the body for the negotiation endpoint. SDP accepts either
// a bare string or a {type, sdp} session description object.
type PublishRequest struct {
	SDP sdpField `json:"sdp"`
}

type sdpField struct {
	value string
}

// UnmarshalJSON accepts "v=0..." or {"type":"offer","sdp":"v=0..."}.
func (f *sdpField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.value = s
		return nil
	}
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(data, &desc); err != nil {
		return err
	}
	f.value = desc.SDP
	return nil
}

// Handler handles the spectator queue HTTP surface.
type Handler struct {
	engine      *Engine
	sessionRepo *sessions.Repository
	bridge      *srs.Client
	hub         *realtime.Hub
	serverCfg   config.ServerConfig
	cookieTTL   int
	logger      *zap.Logger
}

// NewHandler creates a queue handler.
func NewHandler(engine *Engine, sessionRepo *sessions.Repository, bridge *srs.Client, hub *realtime.Hub, serverCfg config.ServerConfig, spectatorCfg config.SpectatorConfig, logger *zap.Logger) *Handler {
	return &Handler{
		engine:      engine,
		sessionRepo: sessionRepo,
		bridge:      bridge,
		hub:         hub,
		serverCfg:   serverCfg,
		cookieTTL:   spectatorCfg.CookieMaxAge,
		logger:      logger,
	}
}

func cookieName(sessionID uuid.UUID) string {
	return fmt.Sprintf("spectator_id_%s", sessionID)
}

func (h *Handler) joinURL(sessionID uuid.UUID) string {
	return fmt.Sprintf("%s/spectator/join/%s", h.serverCfg.PublicDomain, sessionID)
}

// requireModerator loads the session and verifies the caller may moderate it.
func (h *Handler) requireModerator(c *gin.Context, sessionID uuid.UUID) bool {
	sess, err := h.sessionRepo.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return false
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	role, _ := c.MustGet(middleware.ContextUserRole).(string)
	if !sessions.CanModerate(sess, userID, models.Role(role)) {
		response.Forbidden(c, "not authorized for this session")
		return false
	}
	return true
}

func parseSessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

// JoinPage handles GET /spectator/join/:id. It identifies the spectator via
// the per-session cookie, creates a queue entry for first-time visitors, and
// refreshes the cookie so page reloads rejoin the same entry.
func (h *Handler) JoinPage(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}
	token, _ := c.Cookie(cookieName(sessionID))

	entry, err := h.engine.Join(c.Request.Context(), sessionID, token)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.SetCookie(cookieName(sessionID), entry.SpectatorID, h.cookieTTL, "/", "", false, true)
	response.OK(c, gin.H{
		"session_id":     sessionID,
		"spectator_id":   entry.SpectatorID,
		"status":         entry.Status,
		"queue_position": entry.Position,
	})
}

// Join handles POST /api/queue/:id/join (programmatic join/rejoin).
func (h *Handler) Join(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}
	var req JoinRequest
	_ = c.ShouldBindJSON(&req) // body is optional for first-time joins
	token := req.SpectatorID
	if token == "" {
		token, _ = c.Cookie(cookieName(sessionID))
	}

	entry, err := h.engine.Join(c.Request.Context(), sessionID, token)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.SetCookie(cookieName(sessionID), entry.SpectatorID, h.cookieTTL, "/", "", false, true)
	response.Created(c, gin.H{
		"spectator_id":   entry.SpectatorID,
		"stream_key":     entry.StreamKey,
		"status":         entry.Status,
		"queue_position": entry.Position,
	})
}

// List handles GET /api/queue/:id/spectators (moderator queue view).
func (h *Handler) List(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}
	if !h.requireModerator(c, sessionID) {
		return
	}
	list, err := h.engine.List(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if list == nil {
		list = []models.QueueEntry{}
	}
	response.OK(c, gin.H{"spectators": list})
}

// Approve handles POST /api/queue/:id/spectator/:spectatorId/approve.
func (h *Handler) Approve(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}
	if !h.requireModerator(c, sessionID) {
		return
	}
	if err := h.engine.Approve(c.Request.Context(), sessionID, c.Param("spectatorId")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"status": "success"})
}

// Reject handles POST /api/queue/:id/spectator/:spectatorId/reject.
func (h *Handler) Reject(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}
	if !h.requireModerator(c, sessionID) {
		return
	}
	if err := h.engine.Reject(c.Request.Context(), sessionID, c.Param("spectatorId")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"status": "success"})
}

// Stop handles POST /api/queue/:id/spectator/:spectatorId/stop.
func (h *Handler) Stop(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}
	if !h.requireModerator(c, sessionID) {
		return
	}
	if err := h.engine.Stop(c.Request.Context(), sessionID, c.Param("spectatorId")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"status": "success"})
}

// Publish handles POST /api/queue/:id/spectator/:spectatorId/publish.
// Forwards the approved spectator's SDP offer to the streaming server and
// relays its answer. Gated on approved status, not on login.
func (h *Handler) Publish(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}
	spectatorID := c.Param("spectatorId")

	sp, err := h.engine.Get(c.Request.Context(), sessionID, spectatorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if sp.Status != models.SpectatorApproved {
		response.Error(c, apperr.Forbidden("spectator_not_approved", "spectator not approved"))
		return
	}

	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SDP.value == "" {
		h.logger.Warn("publish without SDP offer",
			zap.String("session_id", sessionID.String()),
			zap.String("spectator_id", spectatorID),
		)
		response.Error(c, apperr.BadRequest("sdp_missing", "no SDP provided"))
		return
	}

	answer, err := h.bridge.Publish(c.Request.Context(), sp.StreamKey, req.SDP.value)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{
		"sdp": webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer},
	})
}

// QR handles GET /api/queue/:id/qr. Returns the join link and its QR code as
// a base64 PNG data URL.
func (h *Handler) QR(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}
	if _, err := h.sessionRepo.GetByID(c.Request.Context(), sessionID); err != nil {
		response.Error(c, err)
		return
	}

	link := h.joinURL(sessionID)
	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		h.logger.Error("qr encode", zap.Error(err))
		response.Internal(c, "failed to generate QR code")
		return
	}
	response.OK(c, gin.H{
		"qr_code": "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		"link":    link,
	})
}

// ToggleQR handles POST /api/queue/:id/toggle_qr (moderator broadcasts QR
// visibility to all viewer screens).
func (h *Handler) ToggleQR(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}
	if !h.requireModerator(c, sessionID) {
		return
	}
	var req ToggleQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	joinURL := ""
	if req.Show {
		joinURL = h.joinURL(sessionID)
	}
	h.hub.Publish(sessionID, realtime.ToggleQRCode{SessionID: sessionID, Show: req.Show, JoinURL: joinURL})
	response.OK(c, gin.H{"status": "success", "show": req.Show})
}
