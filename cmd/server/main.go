package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kindling-app/kindling/internal/app"
	"github.com/kindling-app/kindling/internal/cache"
	"github.com/kindling-app/kindling/internal/channel"
	"github.com/kindling-app/kindling/internal/config"
	"github.com/kindling-app/kindling/internal/db"
	"github.com/kindling-app/kindling/internal/logger"
	"github.com/kindling-app/kindling/internal/notify"
	"github.com/kindling-app/kindling/internal/queue"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Error("failed to connect to redis", "err", err)
		os.Exit(1)
	}

	// Init NATS + notification stream
	natsClient, err := queue.NewClient(cfg, log)
	if err != nil {
		log.Error("failed to connect to nats", "err", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	if err := natsClient.EnsureStream(); err != nil {
		log.Error("failed to ensure notification stream", "err", err)
		os.Exit(1)
	}

	producer := queue.NewProducer(natsClient)
	deliveryChannel := channel.NewRedisChannel(redisCache.Client)

	appCtx := app.New(cfg, database, redisCache, producer, deliveryChannel, log)

	// Worker pool consuming notification jobs
	worker := notify.NewWorker(appCtx)
	consumer := queue.NewConsumer(natsClient, worker)
	if err := consumer.Start(ctx); err != nil {
		log.Error("failed to start notification consumer", "err", err)
		os.Exit(1)
	}

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	log.Info("kindling core started", "env", cfg.App.ENV)

	<-ctx.Done()
	log.Info("shutting down")
}
