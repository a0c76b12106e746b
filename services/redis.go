package services

import (
	"context"
	"fmt"

	"socialfeed/config"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient создает клиент; соединение устанавливается лениво
func NewRedisClient(conf config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Addr(),
		Password: conf.Password,
		DB:       conf.DB,
	})
}

// PingRedis проверяет, что Redis отвечает
func PingRedis(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return nil
}
