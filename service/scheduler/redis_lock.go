/*
 * @module service/scheduler/redis_lock
 * @description Redis分布式锁，多实例部署时保证同一轮定时审计只在一个实例上执行
 * @architecture 工具层 - 提供分布式锁能力
 * @stateFlow 获取锁 -> 执行审计 -> 释放锁/自动过期
 * @rules 使用 SET NX 加锁，只有持有者能释放
 * @dependencies github.com/go-redis/redis/v8
 * @refs scheduler_service.go
 */

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
)

// lockKeyPrefix 锁键前缀
const lockKeyPrefix = "fairness_audit_scheduler:lock:"

// unlockScript 只有锁的持有者才能删除
const unlockScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`

// DistributedLock 分布式锁接口
type DistributedLock interface {
	// TryLock 尝试获取锁
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Unlock 释放锁
	Unlock(ctx context.Context, key string) error
}

// RedisLock Redis分布式锁实现
type RedisLock struct {
	client     *redis.Client
	instanceID string // 锁的持有者标识
}

// NewRedisLock 基于已连接的客户端创建分布式锁
func NewRedisLock(client *redis.Client) *RedisLock {
	hostname, _ := os.Hostname()
	return &RedisLock{
		client:     client,
		instanceID: fmt.Sprintf("%s:%d", hostname, os.Getpid()),
	}
}

// TryLock 尝试获取锁
func (r *RedisLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, lockKeyPrefix+key, r.instanceID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("获取锁失败: %w", err)
	}
	if ok {
		slog.Debug("分布式锁: 成功获取锁", "key", key, "ttl", ttl, "instance", r.instanceID)
	}
	return ok, nil
}

// Unlock 释放锁
func (r *RedisLock) Unlock(ctx context.Context, key string) error {
	result, err := r.client.Eval(ctx, unlockScript, []string{lockKeyPrefix + key}, r.instanceID).Int64()
	if err != nil {
		return fmt.Errorf("释放锁失败: %w", err)
	}
	if result != 1 {
		slog.Warn("分布式锁: 锁不存在或已被其他实例持有", "key", key, "instance", r.instanceID)
	}
	return nil
}
