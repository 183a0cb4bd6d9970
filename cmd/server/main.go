// Package main runs the practice-session HTTP server with WebSocket and graceful shutdown.
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
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/practika/backend/config"
	"github.com/practika/backend/internal/auth"
	"github.com/practika/backend/internal/feedback"
	"github.com/practika/backend/internal/middleware"
	"github.com/practika/backend/internal/realtime"
	"github.com/practika/backend/internal/sessions"
	"github.com/practika/backend/internal/spaces"
	"github.com/practika/backend/internal/uploads"
	"github.com/practika/backend/pkg/database"
	"github.com/practika/backend/pkg/redis"
	"github.com/practika/backend/pkg/response"
	"github.com/practika/backend/pkg/storage"
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

	s3Cfg := storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		VideosBucket:         cfg.AWS.VideosBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}
	s3Client, err := storage.NewS3(ctx, s3Cfg, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Spaces
	spaceRepo := spaces.NewRepository(pool)
	spaceHandler := spaces.NewHandler(spaceRepo, logger)

	// Sessions
	sessionRepo := sessions.NewRepository(pool)
	sessionHandler := sessions.NewHandler(sessionRepo, spaceRepo, s3Client, logger)

	// Feedback requests
	feedbackRepo := feedback.NewRepository(pool)
	feedbackHandler := feedback.NewHandler(feedbackRepo, sessionRepo, spaceRepo, s3Client, hub, cfg.Feedback.DefaultSLAHours, logger)

	// Multipart session uploads
	uploadRepo := uploads.NewRepository(pool)
	uploadHandler := uploads.NewHandler(
		uploadRepo,
		spaceRepo,
		s3Client,
		cfg.Upload.MaxSizeBytes,
		time.Duration(cfg.Upload.TTLHours)*time.Hour,
		s3Client.PresignExpire(),
		logger,
	)

	validateToken := func(token string) (uuid.UUID, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, err
		}
		return claims.UserID, nil
	}
	isMember := func(userID, spaceID uuid.UUID) bool {
		return spaceRepo.IsMember(context.Background(), userID, spaceID)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Spaces
		api.GET("/spaces", spaceHandler.ListMine)
		api.POST("/spaces", spaceHandler.Create)
		api.POST("/spaces/join", spaceHandler.Join)
		api.GET("/spaces/:id/members", spaceHandler.ListMembers)

		// Sessions
		api.POST("/sessions", sessionHandler.Create)
		api.GET("/sessions", sessionHandler.ListMine)
		api.GET("/sessions/:id", sessionHandler.Get)
		api.PATCH("/sessions/:id", sessionHandler.Update)
		api.DELETE("/sessions/:id", sessionHandler.Delete)
		api.GET("/sessions/:id/playback-url", sessionHandler.PlaybackURL)
		api.GET("/spaces/:id/sessions", sessionHandler.ListBySpace)

		// Feedback requests
		if cfg.Feedback.Enabled {
			api.POST("/sessions/:id/feedback-requests", feedbackHandler.Create)
			api.GET("/spaces/:id/feedback-requests", feedbackHandler.ListOpen)
			api.GET("/feedback-requests/:id", feedbackHandler.Get)
			api.POST("/feedback-requests/:id/claim", feedbackHandler.Claim)
			api.POST("/feedback-requests/:id/complete", feedbackHandler.Complete)
			api.POST("/feedback-requests/:id/cancel", feedbackHandler.Cancel)
			api.POST("/feedback-requests/:id/release", feedbackHandler.Release)
		}

		// Multipart session uploads
		api.POST("/uploads", uploadHandler.Initiate)
		api.GET("/uploads", uploadHandler.ListOpen)
		api.GET("/uploads/:id/parts/:part/url", uploadHandler.SignPart)
		api.POST("/uploads/:id/complete", uploadHandler.Complete)
		api.POST("/uploads/:id/abort", uploadHandler.Abort)
	}

	// WebSocket space event feed (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, validateToken, isMember))

	if !cfg.Feedback.Enabled {
		logger.Info("feedback requests disabled; routes not mounted")
	}

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
