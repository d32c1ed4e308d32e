package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/sakhistudio/gallery-service/internal/config"
	"github.com/sakhistudio/gallery-service/internal/objectstore"
	"github.com/sakhistudio/gallery-service/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	store, err := objectstore.New(cfg)
	if err != nil {
		sugar.Fatalf("init object store: %v", err)
	}

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.CleanupWorkers,
	})
	processor := worker.NewProcessor(store, sugar)

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	sugar.Infof("cleanup worker started, concurrency=%d", cfg.CleanupWorkers)
	if err := server.Run(processor.Handler()); err != nil {
		sugar.Errorf("worker stopped: %v", err)
		os.Exit(1)
	}
}
