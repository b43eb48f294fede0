// Package main runs the standalone notice delivery worker. It holds no chat
// connections itself: delivery goes through Redis pub/sub to whichever
// server instance the recipient is attached to.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/crowdguru/backend/config"
	"github.com/crowdguru/backend/internal/notify"
	"github.com/crowdguru/backend/internal/realtime"
	"github.com/crowdguru/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	pubsub := realtime.NewRedisPubSub(rdb, logger)
	presence := realtime.NewRedisPresence(rdb, logger)
	queue := notify.NewQueue(rdb, logger)
	worker := notify.NewWorker(queue, pubsub, presence, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(workerCtx)
	logger.Info("notice worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("notice worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
