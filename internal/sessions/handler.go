package sessions

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/expertlive/backend/config"
	"github.com/expertlive/backend/internal/middleware"
	"github.com/expertlive/backend/internal/models"
	"github.com/expertlive/backend/pkg/response"
)

// CreateRequest is the body for POST /sessions.
type CreateRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	StartsAt    time.Time `json:"starts_at" binding:"required"`
	EndsAt      time.Time `json:"ends_at" binding:"required"`
}

// Handler handles session HTTP endpoints.
type Handler struct {
	repo     *Repository
	registry *Registry
	srsCfg   config.SRSConfig
	logger   *zap.Logger
}

// NewHandler creates a sessions handler.
func NewHandler(repo *Repository, registry *Registry, srsCfg config.SRSConfig, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, registry: registry, srsCfg: srsCfg, logger: logger}
}

// caller returns the authenticated user's id and role from gin context.
func caller(c *gin.Context) (uuid.UUID, models.Role) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	role, _ := c.MustGet(middleware.ContextUserRole).(string)
	return userID, models.Role(role)
}

// requireModerator loads the session and verifies the caller may moderate it.
// Writes the error response itself and returns nil when the caller may not.
func (h *Handler) requireModerator(c *gin.Context, sessionID uuid.UUID) *models.Session {
	sess, err := h.repo.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return nil
	}
	userID, role := caller(c)
	if !CanModerate(sess, userID, role) {
		response.Forbidden(c, "not authorized for this session")
		return nil
	}
	return sess
}

// Create handles POST /sessions (expert schedules a broadcast).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !req.EndsAt.After(req.StartsAt) {
		response.BadRequest(c, "ends_at must be after starts_at")
		return
	}
	userID, _ := caller(c)

	s := &models.Session{
		Title:       req.Title,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		StreamKey:   NewStreamKey(),
		OwnerID:     userID,
	}
	if err := h.repo.Create(c.Request.Context(), s); err != nil {
		h.logger.Error("create session", zap.Error(err))
		response.Internal(c, "failed to create session")
		return
	}
	response.Created(c, s)
}

// List handles GET /sessions (expert's own sessions).
func (h *Handler) List(c *gin.Context) {
	userID, _ := caller(c)
	list, err := h.repo.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list sessions")
		return
	}
	response.OK(c, gin.H{"sessions": list})
}

// GetByID handles GET /sessions/:id (moderator management view with ingest
// and playout URLs).
func (h *Handler) GetByID(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	sess := h.requireModerator(c, sessionID)
	if sess == nil {
		return
	}
	response.OK(c, gin.H{
		"session":  sess,
		"rtmp_url": h.srsCfg.RTMPURL(sess.StreamKey),
		"hls_url":  h.srsCfg.HLSURL(sess.StreamKey),
	})
}

// Start handles POST /sessions/:id/start.
func (h *Handler) Start(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	if h.requireModerator(c, sessionID) == nil {
		return
	}
	if err := h.registry.Start(c.Request.Context(), sessionID); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"id": sessionID, "status": models.SessionLive})
}

// Stop handles POST /sessions/:id/stop.
func (h *Handler) Stop(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	if h.requireModerator(c, sessionID) == nil {
		return
	}
	if err := h.registry.Stop(c.Request.Context(), sessionID); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"id": sessionID, "status": models.SessionEnded})
}

// Delete handles DELETE /sessions/:id. Dependent questions, quizzes and
// spectators are removed with it.
func (h *Handler) Delete(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	if h.requireModerator(c, sessionID) == nil {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), sessionID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Watch handles GET /live/:streamKey (public playback descriptor).
func (h *Handler) Watch(c *gin.Context) {
	sess, err := h.repo.GetByStreamKey(c.Request.Context(), c.Param("streamKey"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if sess.Status != models.SessionLive {
		response.BadRequest(c, "session is not live")
		return
	}
	response.OK(c, gin.H{
		"session": gin.H{"id": sess.ID, "title": sess.Title, "description": sess.Description},
		"hls_url": h.srsCfg.HLSURL(sess.StreamKey),
	})
}
