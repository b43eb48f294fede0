// Package main runs the Crowd Guru chat server: WebSocket gateway, question
// routing, and the latest-answers read path, with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/crowdguru/backend/config"
	"github.com/crowdguru/backend/internal/assignment"
	"github.com/crowdguru/backend/internal/digest"
	"github.com/crowdguru/backend/internal/guru"
	"github.com/crowdguru/backend/internal/middleware"
	"github.com/crowdguru/backend/internal/notify"
	"github.com/crowdguru/backend/internal/questions"
	"github.com/crowdguru/backend/internal/realtime"
	"github.com/crowdguru/backend/pkg/database"
	"github.com/crowdguru/backend/pkg/redis"
	"github.com/crowdguru/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	var store questions.Store
	if cfg.Assignment.StoreBackend == "memory" {
		store = questions.NewMemory()
		logger.Warn("using in-memory question store; records will not survive a restart")
	} else {
		pool, err := database.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		store = questions.NewRepository(pool)
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	pubsub := realtime.NewRedisPubSub(rdb, logger)
	presence := realtime.NewRedisPresence(rdb, logger)
	hub := realtime.NewHub(logger, pubsub, pubsub, presence)

	engine := assignment.NewEngine(assignment.Config{
		Store:  store,
		TTL:    cfg.Assignment.TTL,
		Logger: logger,
	})

	noticeQueue := notify.NewQueue(rdb, logger)
	notifier := notify.NewNotifier(hub, presence, noticeQueue, logger)
	controller := guru.NewController(engine, store, notifier, nil, logger)

	// Suspend a user's open question while they have no connection anywhere.
	hub.SetPresenceHandler(func(ctx context.Context, user string, online bool) {
		var err error
		if online {
			err = controller.OnAvailable(ctx, user)
		} else {
			err = controller.OnUnavailable(ctx, user)
		}
		if err != nil {
			logger.Warn("presence update failed", zap.String("user", user), zap.Error(err))
		}
	})

	digestHandler := digest.NewHandler(store, logger)
	presenceHandler := guru.NewPresenceHandler(controller, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/latest", digestHandler.Latest)
	router.POST("/presence/:status", presenceHandler.Update)

	// WebSocket chat attach (identity in query; senders are not authenticated here)
	router.GET("/ws", realtime.ServeWs(hub, logger, controller.HandleText))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// In-process notice worker; cmd/worker runs the same loop standalone.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go notify.NewWorker(noticeQueue, hub, presence, logger).Run(workerCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
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
