/*
 * @module RedisConnector
 * @description Redis连接器，为报告缓存和告警发布订阅提供统一封装
 * @architecture 适配器模式 - 封装第三方Redis客户端，提供统一的接口
 * @stateFlow 连接建立 -> 缓存读写/消息发布 -> 连接断开
 * @rules 值统一以 JSON 序列化，键统一追加前缀
 * @dependencies github.com/go-redis/redis/v8, encoding/json
 * @refs service/audit/report_cache.go, service/alerting/notification.go
 */
package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConnector Redis连接器结构体
type RedisConnector struct {
	config      *RedisConfig
	client      *redis.Client
	isConnected bool
	mutex       sync.RWMutex
	stats       *RedisStats
}

// RedisConfig Redis配置信息
type RedisConfig struct {
	Address      string        `json:"address"`       // Redis地址
	Password     string        `json:"password"`      // 密码
	Database     int           `json:"database"`      // 数据库编号
	PoolSize     int           `json:"pool_size"`     // 连接池大小
	MaxRetries   int           `json:"max_retries"`   // 最大重试次数
	DialTimeout  time.Duration `json:"dial_timeout"`  // 连接超时时间
	ReadTimeout  time.Duration `json:"read_timeout"`  // 读取超时时间
	WriteTimeout time.Duration `json:"write_timeout"` // 写入超时时间
	KeyPrefix    string        `json:"key_prefix"`    // 键前缀
}

// RedisStats Redis连接器统计信息
type RedisStats struct {
	ConnectedAt  time.Time `json:"connected_at"`
	CacheHits    int64     `json:"cache_hits"`
	CacheMisses  int64     `json:"cache_misses"`
	MessagesSent int64     `json:"messages_sent"`
	LastError    string    `json:"last_error"`
	mutex        sync.RWMutex
}

// DefaultRedisConfig 默认配置
func DefaultRedisConfig(address string) *RedisConfig {
	return &RedisConfig{
		Address:      address,
		PoolSize:     10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		KeyPrefix:    "fairness:",
	}
}

// NewRedisConnector 创建新的Redis连接器
func NewRedisConnector(config *RedisConfig) *RedisConnector {
	return &RedisConnector{
		config: config,
		client: redis.NewClient(&redis.Options{
			Addr:         config.Address,
			Password:     config.Password,
			DB:           config.Database,
			PoolSize:     config.PoolSize,
			MaxRetries:   config.MaxRetries,
			DialTimeout:  config.DialTimeout,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
		}),
		stats: &RedisStats{},
	}
}

// Connect 建立Redis连接
func (rc *RedisConnector) Connect(ctx context.Context) error {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if rc.isConnected {
		return nil
	}

	if err := rc.client.Ping(ctx).Err(); err != nil {
		rc.updateError(err)
		return fmt.Errorf("Redis连接失败: %w", err)
	}

	rc.isConnected = true
	rc.stats.ConnectedAt = time.Now()
	slog.Info("Redis连接器已连接", "address", rc.config.Address)
	return nil
}

// Disconnect 断开Redis连接
func (rc *RedisConnector) Disconnect() error {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if !rc.isConnected {
		return nil
	}
	rc.isConnected = false
	if err := rc.client.Close(); err != nil {
		return fmt.Errorf("关闭Redis连接失败: %w", err)
	}
	slog.Info("Redis连接器已断开")
	return nil
}

// IsConnected 是否已连接
func (rc *RedisConnector) IsConnected() bool {
	rc.mutex.RLock()
	defer rc.mutex.RUnlock()
	return rc.isConnected
}

// Client 底层客户端，未连接时为空
func (rc *RedisConnector) Client() *redis.Client {
	rc.mutex.RLock()
	defer rc.mutex.RUnlock()
	if !rc.isConnected {
		return nil
	}
	return rc.client
}

// Key 追加键前缀
func (rc *RedisConnector) Key(key string) string {
	return rc.config.KeyPrefix + key
}

// SetJSON 以 JSON 形式写入缓存
func (rc *RedisConnector) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("序列化缓存值失败: %w", err)
	}
	if err := rc.client.Set(ctx, rc.Key(key), data, expiration).Err(); err != nil {
		rc.updateError(err)
		return fmt.Errorf("写入缓存失败: %w", err)
	}
	return nil
}

// GetJSON 读取缓存并反序列化，未命中时返回 false
func (rc *RedisConnector) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := rc.client.Get(ctx, rc.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		rc.stats.mutex.Lock()
		rc.stats.CacheMisses++
		rc.stats.mutex.Unlock()
		return false, nil
	}
	if err != nil {
		rc.updateError(err)
		return false, fmt.Errorf("读取缓存失败: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("反序列化缓存值失败: %w", err)
	}

	rc.stats.mutex.Lock()
	rc.stats.CacheHits++
	rc.stats.mutex.Unlock()
	return true, nil
}

// DeletePattern 删除匹配模式的所有键
func (rc *RedisConnector) DeletePattern(ctx context.Context, pattern string) (int, error) {
	var deleted int
	iter := rc.client.Scan(ctx, 0, rc.Key(pattern), 100).Iterator()
	for iter.Next(ctx) {
		if err := rc.client.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, fmt.Errorf("删除缓存键失败: %w", err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("扫描缓存键失败: %w", err)
	}
	return deleted, nil
}

// Publish 发布消息到频道
func (rc *RedisConnector) Publish(ctx context.Context, channel string, payload interface{}) error {
	data, err := serializeValue(payload)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}
	if err := rc.client.Publish(ctx, channel, data).Err(); err != nil {
		rc.updateError(err)
		return fmt.Errorf("发布消息失败: %w", err)
	}

	rc.stats.mutex.Lock()
	rc.stats.MessagesSent++
	rc.stats.mutex.Unlock()
	return nil
}

// GetStatistics 获取统计信息
func (rc *RedisConnector) GetStatistics() map[string]interface{} {
	rc.stats.mutex.RLock()
	defer rc.stats.mutex.RUnlock()
	return map[string]interface{}{
		"is_connected":  rc.IsConnected(),
		"connected_at":  rc.stats.ConnectedAt,
		"cache_hits":    rc.stats.CacheHits,
		"cache_misses":  rc.stats.CacheMisses,
		"messages_sent": rc.stats.MessagesSent,
		"last_error":    rc.stats.LastError,
	}
}

func (rc *RedisConnector) updateError(err error) {
	rc.stats.mutex.Lock()
	rc.stats.LastError = err.Error()
	rc.stats.mutex.Unlock()
	slog.Warn("Redis操作失败", "error", err)
}
