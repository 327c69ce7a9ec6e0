package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout 在等待时间内未能获取锁
var ErrLockTimeout = errors.New("redis lock: wait timeout")

// 仅当锁仍属于自己时才删除
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

const lockPollInterval = 20 * time.Millisecond

// Locker 基于 SET NX PX 的互斥锁
type Locker struct {
	client redis.UniversalClient
	ttl    time.Duration
	wait   time.Duration
}

// NewLocker 创建锁管理器，ttl 为锁自动过期时间，wait 为最长等待时间
func NewLocker(client redis.UniversalClient, ttl, wait time.Duration) *Locker {
	return &Locker{client: client, ttl: ttl, wait: wait}
}

// Lock 获取 key 对应的锁，返回释放函数
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return func() {
				// 释放使用独立 context，避免请求取消后锁残留到 TTL
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// CommentLikeLockKey 评论点赞的 (评论, 用户) 锁 key
func CommentLikeLockKey(commentID, userID int64) string {
	return fmt.Sprintf("comment:like:lock:%d:%d", commentID, userID)
}
