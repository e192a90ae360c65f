package quizzes

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/expertlive/backend/internal/models"
	"github.com/expertlive/backend/internal/realtime"
)

// Broadcaster fans committed quiz events out to the session room.
type Broadcaster interface {
	Publish(sessionID uuid.UUID, ev realtime.Event)
}

// Service owns the quiz write path: persist, then broadcast.
type Service struct {
	repo   *Repository
	hub    Broadcaster
	logger *zap.Logger
}

// NewService creates a quizzes service.
func NewService(repo *Repository, hub Broadcaster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, hub: hub, logger: logger}
}

// Create persists a quiz and pushes it to all viewers. The correct answer is
// never broadcast.
func (s *Service) Create(ctx context.Context, q *models.Quiz) error {
	if err := s.repo.Create(ctx, q); err != nil {
		return err
	}
	s.hub.Publish(q.SessionID, realtime.NewQuiz{
		SessionID: q.SessionID,
		QuizID:    q.ID,
		Question:  q.Question,
		Options:   q.Options,
		Timestamp: q.CreatedAt,
	})
	return nil
}

// Respond records an anonymous device's answer and reports it to the room.
func (s *Service) Respond(ctx context.Context, sessionID, quizID uuid.UUID, deviceID string, option int) error {
	resp := &models.QuizResponse{QuizID: quizID, DeviceID: deviceID, SelectedOption: option}
	if err := s.repo.CreateResponse(ctx, resp); err != nil {
		return err
	}
	s.hub.Publish(sessionID, realtime.NewQuizResponse{
		SessionID:      sessionID,
		QuizID:         quizID,
		SelectedOption: option,
	})
	return nil
}

// Results returns aggregated answer counts for a quiz, with zero rows for
// unanswered options.
func (s *Service) Results(ctx context.Context, quizID uuid.UUID) (*models.QuizResults, error) {
	quiz, err := s.repo.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.Results(ctx, quizID)
	if err != nil {
		return nil, err
	}
	results := &models.QuizResults{QuizID: quizID, Counts: make(map[int]int, len(quiz.Options))}
	for i := range quiz.Options {
		results.Counts[i] = counts[i]
		results.TotalResponses += counts[i]
	}
	return results, nil
}

// ListBySession returns a session's quizzes for the late-joiner replay.
func (s *Service) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Quiz, error) {
	return s.repo.ListBySession(ctx, sessionID)
}

// Delete removes a quiz and its responses.
func (s *Service) Delete(ctx context.Context, quizID uuid.UUID) error {
	return s.repo.Delete(ctx, quizID)
}
