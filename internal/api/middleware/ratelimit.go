package middleware

import (
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"melodia-go/internal/api/response"
	"melodia-go/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// WriteLimiter 按登录用户限制写操作频率（发表评论、点赞）
type WriteLimiter struct {
	mu        sync.Mutex
	limiters  map[int64]*userLimiter
	rps       rate.Limit
	burst     int
	lastSweep time.Time
}

func NewWriteLimiter(rps float64, burst int) *WriteLimiter {
	if burst < 1 {
		burst = 1
	}
	return &WriteLimiter{
		limiters:  make(map[int64]*userLimiter),
		rps:       rate.Limit(rps),
		burst:     burst,
		lastSweep: time.Now(),
	}
}

// Allow 判断用户本次写操作是否放行，拒绝时返回建议的重试等待时间
func (l *WriteLimiter) Allow(userID int64) (bool, time.Duration) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for id, ul := range l.limiters {
			if now.Sub(ul.lastSeen) > limiterIdleTTL {
				delete(l.limiters, id)
			}
		}
		l.lastSweep = now
	}

	ul, ok := l.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[userID] = ul
	}
	ul.lastSeen = now

	reservation := ul.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, time.Second
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Middleware 返回 Gin 中间件（必须在 AuthRequired 之后使用），rps<=0 时不限流
func (l *WriteLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.rps <= 0 {
			c.Next()
			return
		}

		userID, ok := GetCurrentUserID(c)
		if !ok {
			c.Next()
			return
		}

		if allowed, retryAfter := l.Allow(userID); !allowed {
			logger.Debug("Write rate limit exceeded",
				zap.Int64("user_id", userID),
				zap.Duration("retry_after", retryAfter),
			)
			c.Header("Retry-After", fmt.Sprintf("%.0f", math.Ceil(retryAfter.Seconds())))
			response.Fail(c, http.StatusTooManyRequests, "TooManyRequests", "操作过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}
