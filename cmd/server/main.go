// Package main runs the file records HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-drive/backend/config"
	"github.com/aura-drive/backend/internal/access"
	"github.com/aura-drive/backend/internal/auth"
	"github.com/aura-drive/backend/internal/favorites"
	"github.com/aura-drive/backend/internal/files"
	"github.com/aura-drive/backend/internal/middleware"
	"github.com/aura-drive/backend/internal/organizations"
	"github.com/aura-drive/backend/pkg/database"
	"github.com/aura-drive/backend/pkg/queue"
	"github.com/aura-drive/backend/pkg/redis"
	"github.com/aura-drive/backend/pkg/response"
	"github.com/aura-drive/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		FilesBucket:          cfg.AWS.FilesBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Organizations (membership oracle)
	orgRepo := organizations.NewRepository(pool)
	evaluator := access.NewEvaluator(orgRepo, logger.Named("access"))
	orgHandler := organizations.NewHandler(orgRepo, evaluator, logger)

	// Files and favorites
	fileRepo := files.NewRepository(pool)
	favoriteRepo := favorites.NewRepository(pool)
	fileSvc := files.NewService(fileRepo, favoriteRepo, s3Client, evaluator, files.Options{
		URLConcurrency:   cfg.Files.URLResolveConcurrency,
		PurgeConcurrency: cfg.Purge.Concurrency,
		MaxNameLength:    cfg.Files.MaxNameLength,
	}, logger.Named("files"))
	fileHandler := files.NewHandler(fileSvc, logger)
	favoriteSvc := favorites.NewService(favoriteRepo, fileRepo, evaluator, logger.Named("favorites"))
	favoriteHandler := favorites.NewHandler(favoriteSvc, logger)

	// On-demand purge requests go through Redis to the worker; the server runs without them if Redis is down.
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis unavailable, on-demand purge disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		fileHandler.SetPurgeQueue(queue.NewQueue(rdb.Client, logger))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics())

	// Health and metrics
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Organizations (read-only; membership is managed elsewhere)
		api.GET("/organizations", orgHandler.ListMyOrganizations)
		api.GET("/organizations/:id/members", orgHandler.ListMembers)

		// Files
		api.POST("/organizations/:id/files/upload-url", fileHandler.GenerateUploadURL)
		api.POST("/organizations/:id/files/upload", fileHandler.Upload)
		api.POST("/organizations/:id/files", fileHandler.Create)
		api.GET("/organizations/:id/files", fileHandler.List)
		api.DELETE("/files/:id", fileHandler.Delete)
		api.POST("/files/:id/restore", fileHandler.Restore)

		// Favorites
		api.POST("/files/:id/favorite", favoriteHandler.Toggle)
		api.GET("/organizations/:id/favorites", favoriteHandler.List)

		// Admin
		api.POST("/admin/purge", middleware.RequireRole("admin"), fileHandler.TriggerPurge)
	}

	router.MaxMultipartMemory = storage.MaxFileSize

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
