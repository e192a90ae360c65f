// Package main runs the live session HTTP server with WebSocket fan-out and
// graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/expertlive/backend/config"
	"github.com/expertlive/backend/internal/auth"
	"github.com/expertlive/backend/internal/middleware"
	"github.com/expertlive/backend/internal/models"
	"github.com/expertlive/backend/internal/questions"
	"github.com/expertlive/backend/internal/queue"
	"github.com/expertlive/backend/internal/quizzes"
	"github.com/expertlive/backend/internal/realtime"
	"github.com/expertlive/backend/internal/sessions"
	"github.com/expertlive/backend/internal/srs"
	"github.com/expertlive/backend/pkg/database"
	"github.com/expertlive/backend/pkg/redis"
	"github.com/expertlive/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Sessions
	sessionRepo := sessions.NewRepository(pool)
	registry := sessions.NewRegistry(sessionRepo, hub, logger)
	sessionHandler := sessions.NewHandler(sessionRepo, registry, cfg.SRS, logger)

	// Spectator queue + SRS bridge
	bridge := srs.NewClient(cfg.SRS.APIBaseURL(), cfg.SRS.Domain, logger)
	queueRepo := queue.NewRepository(pool)
	engine := queue.NewEngine(queueRepo, sessionRepo, hub, logger)
	queueHandler := queue.NewHandler(engine, sessionRepo, bridge, hub, cfg.Server, cfg.Spectator, logger)

	// Questions
	questionRepo := questions.NewRepository(pool)
	questionService := questions.NewService(questionRepo, hub, rdb.Client, logger)
	questionHandler := questions.NewHandler(questionService, sessionRepo)

	// Quizzes
	quizRepo := quizzes.NewRepository(pool)
	quizService := quizzes.NewService(quizRepo, hub, logger)
	quizHandler := quizzes.NewHandler(quizService, sessionRepo)

	// Late joiners replay the session history on join_room. Moderators also
	// get the current queue so their dashboard converges without a REST poll.
	hub.SetReplayProvider(func(ctx context.Context, sessionID uuid.UUID, moderator bool) []realtime.Event {
		var events []realtime.Event
		if qs, err := questionService.ListBySession(ctx, sessionID); err == nil {
			for _, q := range qs {
				ev := realtime.NewQuestion{
					SessionID:  q.SessionID,
					QuestionID: q.ID,
					Text:       q.Text,
					Timestamp:  q.CreatedAt,
				}
				if q.Answer != nil {
					ev.Answer = *q.Answer
				}
				events = append(events, ev)
			}
		}
		if quizList, err := quizService.ListBySession(ctx, sessionID); err == nil {
			for _, q := range quizList {
				events = append(events, realtime.NewQuiz{
					SessionID: q.SessionID,
					QuizID:    q.ID,
					Question:  q.Question,
					Options:   q.Options,
					Timestamp: q.CreatedAt,
				})
			}
		}
		if moderator {
			if entries, err := engine.List(ctx, sessionID); err == nil {
				for _, e := range entries {
					events = append(events, realtime.QueueUpdated{
						SessionID:   e.SessionID,
						SpectatorID: e.SpectatorID,
						Status:      string(e.Status),
						Position:    e.Position,
					})
				}
			}
		}
		return events
	})

	jwtValidate := func(token string) (userID, role string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", "", err
		}
		return claims.UserID.String(), claims.Role, nil
	}

	isModerator := func(ctx context.Context, sessionID, userID uuid.UUID, role string) bool {
		sess, err := sessionRepo.GetByID(ctx, sessionID)
		if err != nil {
			return false
		}
		return sessions.CanModerate(sess, userID, models.Role(role))
	}

	gateway := &realtime.Gateway{
		SubmitQuestion: func(ctx context.Context, sessionID uuid.UUID, text string) error {
			_, err := questionService.Ask(ctx, sessionID, text)
			return err
		},
		SubmitQuizResponse: quizService.Respond,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Spectator-facing, cookie or token identified; no account required.
	router.GET("/spectator/join/:id", queueHandler.JoinPage)
	router.GET("/live/:streamKey", sessionHandler.Watch)

	public := router.Group("/api")
	{
		public.POST("/queue/:id/join", queueHandler.Join)
		public.GET("/queue/:id/qr", queueHandler.QR)
		public.POST("/queue/:id/spectator/:spectatorId/publish", queueHandler.Publish)
		public.POST("/sessions/:id/questions", questionHandler.Ask)
		public.POST("/quizzes/:id/respond", quizHandler.Respond)
	}

	// Moderator API (JWT required; per-session ownership checked in handlers)
	api := router.Group("/api")
	api.Use(middleware.JWT(jwtService))
	{
		api.POST("/sessions", middleware.RequireRole(string(models.RoleAdmin), string(models.RoleExpert)), sessionHandler.Create)
		api.GET("/sessions", sessionHandler.List)
		api.GET("/sessions/:id", sessionHandler.GetByID)
		api.DELETE("/sessions/:id", sessionHandler.Delete)
		api.POST("/sessions/:id/start", sessionHandler.Start)
		api.POST("/sessions/:id/stop", sessionHandler.Stop)

		api.GET("/queue/:id/spectators", queueHandler.List)
		api.POST("/queue/:id/spectator/:spectatorId/approve", queueHandler.Approve)
		api.POST("/queue/:id/spectator/:spectatorId/reject", queueHandler.Reject)
		api.POST("/queue/:id/spectator/:spectatorId/stop", queueHandler.Stop)
		api.POST("/queue/:id/toggle_qr", queueHandler.ToggleQR)

		api.GET("/sessions/:id/questions", questionHandler.ListBySession)
		api.POST("/questions/:id/answer", questionHandler.Answer)

		api.POST("/sessions/:id/quizzes", quizHandler.Create)
		api.DELETE("/quizzes/:id", quizHandler.Delete)
		api.GET("/quizzes/:id/results", quizHandler.Results)
	}

	// WebSocket (token in query; anonymous viewers connect without one)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate, isModerator, gateway))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
