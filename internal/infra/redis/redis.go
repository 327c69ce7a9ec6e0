package redis

import (
	"context"
	"fmt"
	"time"

	"melodia-go/internal/config"
	"melodia-go/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client 仅承载点赞互斥锁；为 nil 时点赞只依赖数据库事务
var Client *redis.Client

// Init 连接 Redis，失败时不设置 Client
func Init(cfg *config.RedisConfig) error {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	Client = client
	logger.Info("Redis connected for comment like locks",
		zap.String("addr", cfg.Addr()),
		zap.Int("db", cfg.DB),
	)
	return nil
}

// Enabled 点赞锁是否可用
func Enabled() bool {
	return Client != nil
}

// LikeLocker 基于全局 Client 创建点赞锁，Redis 未连接时返回 nil
func LikeLocker(ttl, wait time.Duration) *Locker {
	if Client == nil {
		return nil
	}
	return NewLocker(Client, ttl, wait)
}

// Close 关闭 Redis 连接
func Close() error {
	if Client == nil {
		return nil
	}
	err := Client.Close()
	Client = nil
	logger.Info("Redis connection closed")
	return err
}
