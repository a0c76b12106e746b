// Package app собирает зависимости сервиса ленты из конфига.
package app

import (
	"context"
	"errors"
	"time"

	"socialfeed/api/handlers"
	"socialfeed/config"
	"socialfeed/db"
	"socialfeed/services"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const startupPingTimeout = 5 * time.Second

// Container держит все зависимости приложения
type Container struct {
	Config *config.ConfigSchema
	Logger *zap.Logger

	DB        *gorm.DB
	Redis     *redis.Client
	Store     services.CacheStore
	Keys      services.KeyBuilder
	Repo      *services.GormRepository
	Publisher services.EventPublisher

	Affinity    *services.AffinityTracker
	Invalidator *services.CacheInvalidator
	Dispatcher  *services.EventDispatcher
	Activity    *services.ActivityTracker
	Feeds       *services.FeedAssembler
	Posts       *services.PostService
	Likes       *services.LikeService
	Follows     *services.FollowService
	Profiles    *services.ProfileService
	Precompute  *services.PrecomputeScheduler
	Queue       *services.JobQueue
}

// NewContainer подключается к БД, Redis и брокеру и связывает сервисы.
// Недоступные Redis и RabbitMQ не мешают старту: кеш деградирует в промахи,
// уведомления уходят в no-op.
func NewContainer(ctx context.Context, conf *config.ConfigSchema, logger *zap.Logger) (*Container, error) {
	if conf == nil {
		return nil, errors.New("config is not loaded")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := db.ConnectDB(conf, logger); err != nil {
		return nil, err
	}
	c := &Container{Config: conf, Logger: logger, DB: db.ORM}
	c.Redis = services.NewRedisClient(conf.Redis)

	pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
	defer cancel()
	if err := services.PingRedis(pingCtx, c.Redis); err != nil {
		logger.Warn("redis is unavailable, starting with degraded cache", zap.Error(err))
	}

	c.Publisher = services.NopPublisher{}
	if conf.RabbitMQ.URL != "" {
		publisher, err := services.NewRabbitPublisher(conf.RabbitMQ.URL, conf.RabbitMQ.Exchange, logger)
		if err != nil {
			logger.Warn("rabbitmq is unavailable, notifications disabled", zap.Error(err))
		} else {
			c.Publisher = publisher
		}
	}

	c.wire()
	return c, nil
}

func (c *Container) wire() {
	conf := c.Config
	logger := c.Logger

	c.Store = services.NewRedisCacheStore(c.Redis, conf.Cache, logger.Named("cache"))
	c.Keys = services.NewKeyBuilder(conf.Cache.Namespace)
	c.Repo = services.NewGormRepository(c.DB)

	c.Affinity = services.NewAffinityTracker(c.Store, c.Keys, conf.Affinity, logger.Named("affinity"))
	c.Invalidator = services.NewCacheInvalidator(c.Store, c.Keys, c.Repo, conf.Cache, logger.Named("invalidator"))
	c.Dispatcher = services.NewEventDispatcher(c.Invalidator, c.Affinity, c.Publisher, logger.Named("events"))
	c.Activity = services.NewActivityTracker(c.Repo, c.Store, c.Keys, logger)

	scoring := services.NewScoringEngine(conf.Ranking, logger.Named("scoring"))
	c.Feeds = services.NewFeedAssembler(c.Repo, c.Store, c.Keys, c.Affinity, scoring, conf.Feed, logger.Named("feed"))
	c.Posts = services.NewPostService(c.Repo, c.Store, c.Keys, c.Dispatcher, c.Activity, conf.Cache, logger)
	c.Likes = services.NewLikeService(c.Repo, c.Store, c.Keys, c.Dispatcher, c.Activity, conf.Cache, logger)
	c.Follows = services.NewFollowService(c.Repo, c.Store, c.Keys, c.Dispatcher, c.Activity, conf.Cache, logger)
	c.Profiles = services.NewProfileService(c.Repo, c.Store, c.Keys, c.Follows, c.Invalidator, c.Dispatcher, logger)

	c.Precompute = services.NewPrecomputeScheduler(c.Repo, c.Feeds, c.Affinity, c.Invalidator, conf, logger.Named("precompute"))
	c.Queue = services.NewJobQueue(c.Redis, c.Keys, conf.Scheduler, c.Precompute, logger.Named("queue"))
}

// Handlers отдает HTTP слою нужные ему сервисы
func (c *Container) Handlers() *handlers.Handlers {
	return &handlers.Handlers{
		Feeds:       c.Feeds,
		Posts:       c.Posts,
		Likes:       c.Likes,
		Follows:     c.Follows,
		Profiles:    c.Profiles,
		Activity:    c.Activity,
		Invalidator: c.Invalidator,
		Jobs:        c.Queue,
		Logger:      c.Logger.Named("api"),
	}
}

func (c *Container) Close() {
	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil {
			c.Logger.Warn("failed to close publisher", zap.Error(err))
		}
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
