package db

import (
	"time"

	"backend-rxdispatch/internal/config"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis returns nil when no address is configured. The client is
// only used to publish, so short timeouts keep a dead server from holding
// publisher goroutines.
func ConnectRedis(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}

	return redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  2 * time.Second,
		WriteTimeout: time.Second,
		ReadTimeout:  time.Second,
	})
}
