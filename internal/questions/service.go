package questions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/expertlive/backend/internal/models"
	"github.com/expertlive/backend/internal/realtime"
)

// Broadcaster fans committed Q&A events out to the session room.
type Broadcaster interface {
	Publish(sessionID uuid.UUID, ev realtime.Event)
}

// Service owns the Q&A write path: persist, append to the session
// transcript, then broadcast.
type Service struct {
	repo   *Repository
	hub    Broadcaster
	redis  *redis.Client // optional transcript log
	logger *zap.Logger
}

// NewService creates a questions service. The redis client is optional; when
// present, Q&A pairs are appended to the session transcript list.
func NewService(repo *Repository, hub Broadcaster, rdb *redis.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, hub: hub, redis: rdb, logger: logger}
}

func transcriptKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("session:%s:questions", sessionID)
}

func (s *Service) appendTranscript(ctx context.Context, sessionID uuid.UUID, question, answer string) {
	if s.redis == nil {
		return
	}
	entry := fmt.Sprintf("Q:%s|A:%s", question, answer)
	if err := s.redis.RPush(ctx, transcriptKey(sessionID), entry).Err(); err != nil {
		s.logger.Warn("transcript append failed", zap.String("session_id", sessionID.String()), zap.Error(err))
	}
}

// Ask persists a viewer question and broadcasts it to the room.
func (s *Service) Ask(ctx context.Context, sessionID uuid.UUID, text string) (*models.Question, error) {
	q := &models.Question{SessionID: sessionID, Text: text}
	if err := s.repo.Create(ctx, q); err != nil {
		return nil, err
	}
	s.appendTranscript(ctx, sessionID, text, "")
	s.hub.Publish(sessionID, realtime.NewQuestion{
		SessionID:  sessionID,
		QuestionID: q.ID,
		Text:       q.Text,
		Timestamp:  q.CreatedAt,
	})
	return q, nil
}

// Answer records the expert's answer and broadcasts it to the room.
func (s *Service) Answer(ctx context.Context, questionID uuid.UUID, answer string) (*models.Question, error) {
	q, err := s.repo.GetByID(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetAnswer(ctx, questionID, answer); err != nil {
		return nil, err
	}
	q.Answer = &answer
	s.appendTranscript(ctx, q.SessionID, q.Text, answer)
	s.hub.Publish(q.SessionID, realtime.NewAnswer{
		SessionID:  q.SessionID,
		QuestionID: q.ID,
		Text:       q.Text,
		Answer:     answer,
		Timestamp:  q.CreatedAt,
	})
	return q, nil
}

// ListBySession returns a session's questions for the late-joiner replay.
func (s *Service) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Question, error) {
	return s.repo.ListBySession(ctx, sessionID)
}
