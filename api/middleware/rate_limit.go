/*
 * @module api/middleware/rate_limit
 * @description 基于 Redis 固定窗口的限流中间件，限制数据集加载这类开销较大的请求
 * @architecture 中间件模式
 * @stateFlow 计算调用方 -> Lua 脚本原子计数 -> 放行或 429
 * @rules 限流器不可用时放行请求并记录日志
 * @dependencies github.com/go-redis/redis/v8, github.com/go-chi/render
 * @refs api/routes.go
 */

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"
	"github.com/go-redis/redis/v8"
)

// fixedWindowScript 计数未超限时自增，首次计数时设置过期
const fixedWindowScript = `
	local current = tonumber(redis.call('GET', KEYS[1]) or '0')
	local max_requests = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	if current >= max_requests then
		local ttl = redis.call('TTL', KEYS[1])
		if ttl < 0 then ttl = window end
		return {0, current, ttl}
	end

	local new_count = redis.call('INCR', KEYS[1])
	if new_count == 1 then
		redis.call('EXPIRE', KEYS[1], window)
	end
	local ttl = redis.call('TTL', KEYS[1])
	if ttl < 0 then ttl = window end
	return {1, new_count, ttl}
`

// RateLimitResult 限流检查结果
type RateLimitResult struct {
	Allowed   bool  `json:"allowed"`
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetAt   int64 `json:"reset_at"`
}

// RateLimiter 限流器
type RateLimiter interface {
	Allow(ctx context.Context, key string) (*RateLimitResult, error)
}

// RedisRateLimiter Redis固定窗口限流器
type RedisRateLimiter struct {
	client      *redis.Client
	window      time.Duration
	maxRequests int
}

// NewRedisRateLimiter 创建限流器，每个调用方在 window 内最多 maxRequests 次
func NewRedisRateLimiter(client *redis.Client, window time.Duration, maxRequests int) *RedisRateLimiter {
	if window < time.Second {
		window = time.Minute
	}
	return &RedisRateLimiter{client: client, window: window, maxRequests: maxRequests}
}

// Allow 检查并计数
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (*RateLimitResult, error) {
	windowSeconds := int64(r.window / time.Second)
	redisKey := fmt.Sprintf("rate_limit:%s:%d", key, time.Now().Unix()/windowSeconds)

	values, err := r.client.Eval(ctx, fixedWindowScript, []string{redisKey}, r.maxRequests, windowSeconds).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("限流检查失败: %w", err)
	}
	if len(values) != 3 {
		return nil, fmt.Errorf("限流脚本返回值异常: %v", values)
	}

	remaining := r.maxRequests - int(values[1])
	if remaining < 0 {
		remaining = 0
	}
	return &RateLimitResult{
		Allowed:   values[0] == 1,
		Limit:     r.maxRequests,
		Remaining: remaining,
		ResetAt:   time.Now().Add(time.Duration(values[2]) * time.Second).Unix(),
	}, nil
}

// RateLimit 按调用方限流，调用方优先取鉴权后的名称，其次取客户端地址
func RateLimit(limiter RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := Operator(r.Context())
			if !ok {
				key = r.RemoteAddr
				if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
					key = forwarded
				}
			}

			result, err := limiter.Allow(r.Context(), key)
			if err != nil {
				slog.Warn("限流器不可用，放行请求", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))
			if !result.Allowed {
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, map[string]interface{}{
					"status": http.StatusTooManyRequests,
					"msg":    "请求过于频繁，请稍后再试",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
