package questions

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/expertlive/backend/internal/middleware"
	"github.com/expertlive/backend/internal/models"
	"github.com/expertlive/backend/internal/sessions"
	"github.com/expertlive/backend/pkg/response"
)

// AskRequest is the body for POST /api/sessions/:id/questions.
type AskRequest struct {
	Text string `json:"question_text" binding:"required"`
}

// AnswerRequest is the body for POST /api/questions/:id/answer.
type AnswerRequest struct {
	Answer string `json:"answer_text" binding:"required"`
}

// Handler handles Q&A HTTP endpoints.
type Handler struct {
	service     *Service
	sessionRepo *sessions.Repository
}

// NewHandler creates a questions handler.
func NewHandler(service *Service, sessionRepo *sessions.Repository) *Handler {
	return &Handler{service: service, sessionRepo: sessionRepo}
}

// Ask handles POST /api/sessions/:id/questions (viewer asks a question).
func (h *Handler) Ask(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if _, err := h.sessionRepo.GetByID(c.Request.Context(), sessionID); err != nil {
		response.Error(c, err)
		return
	}

	q, err := h.service.Ask(c.Request.Context(), sessionID, req.Text)
	if err != nil {
		response.Internal(c, "failed to create question")
		return
	}
	response.Created(c, q)
}

// Answer handles POST /api/questions/:id/answer (expert answers).
func (h *Handler) Answer(c *gin.Context) {
	questionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	q, err := h.service.repo.GetByID(c.Request.Context(), questionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	sess, err := h.sessionRepo.GetByID(c.Request.Context(), q.SessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	role, _ := c.MustGet(middleware.ContextUserRole).(string)
	if !sessions.CanModerate(sess, userID, models.Role(role)) {
		response.Forbidden(c, "not authorized for this session")
		return
	}

	answered, err := h.service.Answer(c.Request.Context(), questionID, req.Answer)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, answered)
}

// ListBySession handles GET /api/sessions/:id/questions (moderator view).
func (h *Handler) ListBySession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	sess, err := h.sessionRepo.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	role, _ := c.MustGet(middleware.ContextUserRole).(string)
	if !sessions.CanModerate(sess, userID, models.Role(role)) {
		response.Forbidden(c, "not authorized for this session")
		return
	}
	list, err := h.service.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		response.Internal(c, "failed to list questions")
		return
	}
	response.OK(c, gin.H{"questions": list})
}
