package app

import (
	"log/slog"

	"github.com/kindling-app/kindling/internal/cache"
	"github.com/kindling-app/kindling/internal/channel"
	"github.com/kindling-app/kindling/internal/config"
	"github.com/kindling-app/kindling/internal/queue"
	"gorm.io/gorm"
)

// AppContext holds shared dependencies (DB, Redis, queue, channel, Logger).
// Opened at process start, closed on shutdown; every service and the worker
// receive it at construction.
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Queue      queue.Producer
	Channel    channel.Publisher
	Logger     *slog.Logger
}

// New creates a new AppContext
func New(cfg *config.Config, db *gorm.DB, rdb *cache.RedisCache, producer queue.Producer, ch channel.Publisher, logger *slog.Logger) *AppContext {
	return &AppContext{
		Config:     cfg,
		DB:         db,
		RedisCache: rdb,
		Queue:      producer,
		Channel:    ch,
		Logger:     logger,
	}
}
