package main

import (
	"context"
	"os/signal"
	"syscall"

	"agency/internal/app/bot"
	"agency/internal/app/config"
	"agency/internal/app/dsn"
	"agency/internal/app/redis"
	"agency/internal/app/repository"
	"agency/internal/app/storage"

	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatal("config failed: ", err)
	}
	if cfg.Telegram.BotToken == "" {
		logger.Fatal("TELEGRAM_BOT_TOKEN is not set")
	}

	repo, err := repository.New(dsn.FromEnv())
	if err != nil {
		logger.Fatal("repository failed: ", err)
	}

	// Без Redis бот работает без лимита сообщений
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, rate limiting disabled: ", err)
		redisClient = nil
	}

	var proofs bot.ProofStore
	minioClient, err := storage.NewMinIOClient(cfg.Minio.Endpoint, cfg.Minio.AccessKey,
		cfg.Minio.SecretKey, cfg.Minio.Bucket, cfg.Minio.UseSSL)
	if err != nil {
		logger.Warn("MinIO unavailable, proof uploads disabled: ", err)
	} else {
		proofs = minioClient
	}

	b := bot.New(cfg.Telegram.BotToken, repo, redisClient, proofs, cfg.Telegram.AdminChatID, logger)
	if err := b.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("bot stopped: ", err)
	}
}
