package quizzes

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/expertlive/backend/internal/middleware"
	"github.com/expertlive/backend/internal/models"
	"github.com/expertlive/backend/internal/sessions"
	"github.com/expertlive/backend/pkg/response"
)

// CreateRequest is the body for POST /api/sessions/:id/quizzes.
type CreateRequest struct {
	Question      string   `json:"question" binding:"required"`
	Options       []string `json:"options" binding:"required"`
	CorrectAnswer int      `json:"correct_answer"`
}

// RespondRequest is the body for POST /api/quizzes/:id/respond.
type RespondRequest struct {
	DeviceID       string `json:"device_id" binding:"required"`
	SelectedOption *int   `json:"selected_option" binding:"required"`
}

// Handler handles quiz HTTP endpoints.
type Handler struct {
	service     *Service
	sessionRepo *sessions.Repository
}

// NewHandler creates a quizzes handler.
func NewHandler(service *Service, sessionRepo *sessions.Repository) *Handler {
	return &Handler{service: service, sessionRepo: sessionRepo}
}

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

// Create handles POST /api/sessions/:id/quizzes (moderator launches a quiz).
func (h *Handler) Create(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	if !h.requireModerator(c, sessionID) {
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	options := make([]string, 0, len(req.Options))
	for _, o := range req.Options {
		if strings.TrimSpace(o) != "" {
			options = append(options, o)
		}
	}
	if len(options) < 2 {
		response.BadRequest(c, "at least two non-blank options required")
		return
	}
	if req.CorrectAnswer < 0 || req.CorrectAnswer >= len(options) {
		response.BadRequest(c, "correct_answer out of range")
		return
	}

	q := &models.Quiz{
		SessionID:     sessionID,
		Question:      req.Question,
		Options:       options,
		CorrectAnswer: req.CorrectAnswer,
	}
	if err := h.service.Create(c.Request.Context(), q); err != nil {
		response.Internal(c, "failed to create quiz")
		return
	}
	response.Created(c, q)
}

// Respond handles POST /api/quizzes/:id/respond (anonymous viewer answers).
func (h *Handler) Respond(c *gin.Context) {
	quizID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid quiz id")
		return
	}
	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	quiz, err := h.service.repo.GetByID(c.Request.Context(), quizID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if *req.SelectedOption < 0 || *req.SelectedOption >= len(quiz.Options) {
		response.BadRequest(c, "selected_option out of range")
		return
	}

	if err := h.service.Respond(c.Request.Context(), quiz.SessionID, quizID, req.DeviceID, *req.SelectedOption); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"status": "success"})
}

// Results handles GET /api/quizzes/:id/results (moderator results view).
func (h *Handler) Results(c *gin.Context) {
	quizID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid quiz id")
		return
	}
	quiz, err := h.service.repo.GetByID(c.Request.Context(), quizID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !h.requireModerator(c, quiz.SessionID) {
		return
	}

	results, err := h.service.Results(c.Request.Context(), quizID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, results)
}

// Delete handles DELETE /api/quizzes/:id (moderator removes a quiz).
func (h *Handler) Delete(c *gin.Context) {
	quizID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid quiz id")
		return
	}
	quiz, err := h.service.repo.GetByID(c.Request.Context(), quizID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !h.requireModerator(c, quiz.SessionID) {
		return
	}
	if err := h.service.Delete(c.Request.Context(), quizID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
