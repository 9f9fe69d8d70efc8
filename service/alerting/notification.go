/*
 * @module service/alerting/notification
 * @description 通知渠道接口和实现，为告警管理器提供 Webhook、Kafka、MQTT、Redis 发布能力
 * @architecture 策略模式 - 统一 NotificationSender 接口
 * @stateFlow 通知配置 -> 通知发送 -> 状态跟踪
 * @rules
 *   - 未启用的渠道不发送
 *   - 渠道配置通过 Configure 动态调整，配置与发送由渠道自身的读写锁保护
 * @dependencies net/http, github.com/spf13/cast
 * @refs alert_manager.go, client/connectors
 */

package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cast"
)

// NotificationSender 通知发送器接口
type NotificationSender interface {
	Send(ctx context.Context, alert *Alert) error
	GetChannelType() string
	IsEnabled() bool
	Configure(config map[string]interface{}) error
}

// KafkaProducer Kafka 生产者
type KafkaProducer interface {
	Produce(ctx context.Context, key string, value interface{}, headers map[string]string) error
}

// MQTTPublisher MQTT 发布者
type MQTTPublisher interface {
	Publish(topic string, payload interface{}) error
}

// RedisPublisher Redis 发布者
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, payload interface{}) error
}

// WebhookNotificationChannel Webhook通知渠道
type WebhookNotificationChannel struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Timeout time.Duration     `json:"timeout"`
	Enabled bool              `json:"is_enabled"`
	client  *http.Client
	mu      sync.RWMutex
}

// NewWebhookNotificationChannel 创建 Webhook 渠道
func NewWebhookNotificationChannel(url string) *WebhookNotificationChannel {
	return &WebhookNotificationChannel{
		URL:     url,
		Method:  http.MethodPost,
		Headers: map[string]string{},
		Timeout: 10 * time.Second,
		Enabled: url != "",
	}
}

// Send 发送Webhook通知
func (w *WebhookNotificationChannel) Send(ctx context.Context, alert *Alert) error {
	w.mu.RLock()
	enabled, url, method, timeout, client := w.Enabled, w.URL, w.Method, w.Timeout, w.client
	headers := make(map[string]string, len(w.Headers))
	for k, v := range w.Headers {
		headers[k] = v
	}
	w.mu.RUnlock()

	if !enabled {
		return fmt.Errorf("Webhook通知渠道未启用")
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("序列化告警数据失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("发送Webhook通知失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("Webhook通知响应错误: %d", resp.StatusCode)
	}
	return nil
}

// GetChannelType 获取渠道类型
func (w *WebhookNotificationChannel) GetChannelType() string {
	return "webhook"
}

// IsEnabled 检查是否启用
func (w *WebhookNotificationChannel) IsEnabled() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.Enabled
}

// Configure 配置Webhook渠道，校验失败时保持原配置
func (w *WebhookNotificationChannel) Configure(config map[string]interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	url, method, headers, timeout, enabled := w.URL, w.Method, w.Headers, w.Timeout, w.Enabled
	if v, ok := config["url"]; ok {
		url = cast.ToString(v)
	}
	if v, ok := config["method"]; ok {
		method = cast.ToString(v)
	}
	if v, ok := config["headers"]; ok {
		headers = cast.ToStringMapString(v)
	}
	if v, ok := config["timeout"]; ok {
		parsed, err := cast.ToDurationE(v)
		if err != nil {
			return fmt.Errorf("无效的超时配置: %w", err)
		}
		timeout = parsed
	}
	if v, ok := config["is_enabled"]; ok {
		enabled = cast.ToBool(v)
	}
	if enabled && url == "" {
		return fmt.Errorf("Webhook地址不能为空")
	}

	w.URL, w.Method, w.Headers, w.Timeout, w.Enabled = url, method, headers, timeout, enabled
	return nil
}

// KafkaNotificationChannel Kafka 通知渠道，以数据集 ID 作为消息键
type KafkaNotificationChannel struct {
	producer KafkaProducer
	Enabled  bool `json:"is_enabled"`
	mu       sync.RWMutex
}

// NewKafkaNotificationChannel 创建 Kafka 渠道
func NewKafkaNotificationChannel(producer KafkaProducer) *KafkaNotificationChannel {
	return &KafkaNotificationChannel{producer: producer, Enabled: producer != nil}
}

// Send 发送 Kafka 通知
func (k *KafkaNotificationChannel) Send(ctx context.Context, alert *Alert) error {
	if !k.IsEnabled() {
		return fmt.Errorf("Kafka通知渠道未启用")
	}
	headers := map[string]string{
		"rule":     string(alert.Rule),
		"severity": string(alert.Severity),
	}
	return k.producer.Produce(ctx, alert.DatasetID, alert, headers)
}

// GetChannelType 获取渠道类型
func (k *KafkaNotificationChannel) GetChannelType() string {
	return "kafka"
}

// IsEnabled 检查是否启用
func (k *KafkaNotificationChannel) IsEnabled() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.Enabled && k.producer != nil
}

// Configure 配置 Kafka 渠道
func (k *KafkaNotificationChannel) Configure(config map[string]interface{}) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if v, ok := config["is_enabled"]; ok {
		k.Enabled = cast.ToBool(v)
	}
	return nil
}

// MQTTNotificationChannel MQTT 通知渠道，主题为 <前缀>/<规则>
type MQTTNotificationChannel struct {
	publisher   MQTTPublisher
	TopicPrefix string `json:"topic_prefix"`
	Enabled     bool   `json:"is_enabled"`
	mu          sync.RWMutex
}

// NewMQTTNotificationChannel 创建 MQTT 渠道
func NewMQTTNotificationChannel(publisher MQTTPublisher, topicPrefix string) *MQTTNotificationChannel {
	if topicPrefix == "" {
		topicPrefix = "fairness/findings"
	}
	return &MQTTNotificationChannel{publisher: publisher, TopicPrefix: topicPrefix, Enabled: publisher != nil}
}

// Topic 告警对应的主题
func (m *MQTTNotificationChannel) Topic(alert *Alert) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fmt.Sprintf("%s/%s", m.TopicPrefix, alert.Rule)
}

// Send 发送 MQTT 通知
func (m *MQTTNotificationChannel) Send(ctx context.Context, alert *Alert) error {
	if !m.IsEnabled() {
		return fmt.Errorf("MQTT通知渠道未启用")
	}
	return m.publisher.Publish(m.Topic(alert), alert)
}

// GetChannelType 获取渠道类型
func (m *MQTTNotificationChannel) GetChannelType() string {
	return "mqtt"
}

// IsEnabled 检查是否启用
func (m *MQTTNotificationChannel) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Enabled && m.publisher != nil
}

// Configure 配置 MQTT 渠道
func (m *MQTTNotificationChannel) Configure(config map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := config["topic_prefix"]; ok {
		m.TopicPrefix = cast.ToString(v)
	}
	if v, ok := config["is_enabled"]; ok {
		m.Enabled = cast.ToBool(v)
	}
	return nil
}

// RedisNotificationChannel Redis 发布订阅通知渠道
type RedisNotificationChannel struct {
	publisher RedisPublisher
	Channel   string `json:"channel"`
	Enabled   bool   `json:"is_enabled"`
	mu        sync.RWMutex
}

// NewRedisNotificationChannel 创建 Redis 渠道
func NewRedisNotificationChannel(publisher RedisPublisher, channel string) *RedisNotificationChannel {
	if channel == "" {
		channel = "fairness:findings"
	}
	return &RedisNotificationChannel{publisher: publisher, Channel: channel, Enabled: publisher != nil}
}

// Send 发送 Redis 通知
func (r *RedisNotificationChannel) Send(ctx context.Context, alert *Alert) error {
	r.mu.RLock()
	enabled, channel := r.Enabled && r.publisher != nil, r.Channel
	r.mu.RUnlock()
	if !enabled {
		return fmt.Errorf("Redis通知渠道未启用")
	}
	return r.publisher.Publish(ctx, channel, alert)
}

// GetChannelType 获取渠道类型
func (r *RedisNotificationChannel) GetChannelType() string {
	return "redis"
}

// IsEnabled 检查是否启用
func (r *RedisNotificationChannel) IsEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Enabled && r.publisher != nil
}

// Configure 配置 Redis 渠道
func (r *RedisNotificationChannel) Configure(config map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := config["channel"]; ok {
		r.Channel = cast.ToString(v)
	}
	if v, ok := config["is_enabled"]; ok {
		r.Enabled = cast.ToBool(v)
	}
	return nil
}
