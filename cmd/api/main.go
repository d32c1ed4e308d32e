package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/sakhistudio/gallery-service/internal/api"
	"github.com/sakhistudio/gallery-service/internal/auth"
	"github.com/sakhistudio/gallery-service/internal/catalog"
	"github.com/sakhistudio/gallery-service/internal/config"
	"github.com/sakhistudio/gallery-service/internal/database"
	"github.com/sakhistudio/gallery-service/internal/netmon"
	"github.com/sakhistudio/gallery-service/internal/objectstore"
	"github.com/sakhistudio/gallery-service/internal/queue"
	"github.com/sakhistudio/gallery-service/internal/repository"
	"github.com/sakhistudio/gallery-service/internal/uploader"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("GALLERY_JWT_SECRET is required")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		sugar.Fatalf("connect database: %v", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		sugar.Fatalf("ensure schema: %v", err)
	}
	images := repository.NewImageRepository(pool)
	users := repository.NewUserRepository(pool)

	store, err := objectstore.New(cfg)
	if err != nil {
		sugar.Fatalf("init object store: %v", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		sugar.Fatalf("ensure bucket: %v", err)
	}

	cleanup := queue.NewClient(asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}))
	defer cleanup.Close()

	monitor := netmon.New(cfg.S3Endpoint, cfg.ProbeInterval, sugar)
	monitor.Start()
	defer monitor.Stop()

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	gate := auth.NewGate(users, tokens, cfg.RoleLookupTimeout, sugar)
	defer gate.Close()

	pipeline := uploader.New(store, images, monitor, cfg.UploadTimeout, sugar)
	cat := catalog.New(images, store, cleanup, cfg.SignedURLTTL, sugar)

	srv := api.New(cfg, gate, cat, images, pipeline, sugar)
	if err := srv.Run(ctx); err != nil {
		sugar.Errorf("server stopped: %v", err)
		os.Exit(1)
	}
}
