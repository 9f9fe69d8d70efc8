/*
 * @module KafkaConnector
 * @description Kafka连接器，封装告警发现主题的生产者
 * @architecture 适配器模式 - 封装第三方Kafka客户端，提供统一的接口
 * @stateFlow 连接建立 -> 消息发送 -> 连接断开
 * @rules 每个连接器只对应一个主题，消息值按 JSON 序列化
 * @dependencies github.com/segmentio/kafka-go, encoding/json
 * @refs service/alerting/notification.go
 */
package connectors

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Brokers      []string          `json:"brokers"`
	Topic        string            `json:"topic"`
	RequiredAcks int               `json:"required_acks"`
	Async        bool              `json:"async"`
	BatchTimeout time.Duration     `json:"batch_timeout"`
	WriteTimeout time.Duration     `json:"write_timeout"`
	Headers      map[string]string `json:"headers"`
}

// KafkaConnector Kafka连接器结构体
type KafkaConnector struct {
	config      *KafkaConfig
	writer      *kafka.Writer
	mutex       sync.RWMutex
	isConnected bool
	sent        int64
}

// NewKafkaConnector 创建新的Kafka连接器
func NewKafkaConnector(config *KafkaConfig) *KafkaConnector {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	return &KafkaConnector{config: config}
}

// Connect 初始化生产者
func (kc *KafkaConnector) Connect() error {
	kc.mutex.Lock()
	defer kc.mutex.Unlock()

	if kc.isConnected {
		return nil
	}
	if len(kc.config.Brokers) == 0 || kc.config.Topic == "" {
		return fmt.Errorf("Kafka配置不完整: brokers=%v topic=%s", kc.config.Brokers, kc.config.Topic)
	}

	kc.writer = &kafka.Writer{
		Addr:         kafka.TCP(kc.config.Brokers...),
		Topic:        kc.config.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequiredAcks(kc.config.RequiredAcks),
		Async:        kc.config.Async,
		WriteTimeout: kc.config.WriteTimeout,
	}
	if kc.config.BatchTimeout > 0 {
		kc.writer.BatchTimeout = kc.config.BatchTimeout
	}

	kc.isConnected = true
	slog.Info("Kafka连接器已连接", "brokers", kc.config.Brokers, "topic", kc.config.Topic)
	return nil
}

// Disconnect 关闭生产者
func (kc *KafkaConnector) Disconnect() error {
	kc.mutex.Lock()
	defer kc.mutex.Unlock()

	if !kc.isConnected {
		return nil
	}
	kc.isConnected = false
	if err := kc.writer.Close(); err != nil {
		return fmt.Errorf("关闭Kafka生产者失败: %w", err)
	}
	slog.Info("Kafka连接器已断开连接")
	return nil
}

// Produce 发送一条消息
func (kc *KafkaConnector) Produce(ctx context.Context, key string, value interface{}, headers map[string]string) error {
	kc.mutex.RLock()
	writer, connected := kc.writer, kc.isConnected
	kc.mutex.RUnlock()

	if !connected {
		return fmt.Errorf("Kafka连接器未连接")
	}

	msg, err := kc.BuildMessage(key, value, headers)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, kc.config.WriteTimeout)
	defer cancel()
	if err := writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("发送消息失败: %w", err)
	}

	kc.mutex.Lock()
	kc.sent++
	kc.mutex.Unlock()
	slog.Debug("消息已发送到Kafka", "topic", kc.config.Topic, "key", key)
	return nil
}

// BuildMessage 构建 Kafka 消息，附加调用方头部和全局头部
func (kc *KafkaConnector) BuildMessage(key string, value interface{}, headers map[string]string) (kafka.Message, error) {
	data, err := serializeValue(value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("序列化消息值失败: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	for k, v := range kc.config.Headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return msg, nil
}

// IsConnected 是否已连接
func (kc *KafkaConnector) IsConnected() bool {
	kc.mutex.RLock()
	defer kc.mutex.RUnlock()
	return kc.isConnected
}

// GetStatistics 获取统计信息
func (kc *KafkaConnector) GetStatistics() map[string]interface{} {
	kc.mutex.RLock()
	defer kc.mutex.RUnlock()
	return map[string]interface{}{
		"is_connected":  kc.isConnected,
		"brokers":       kc.config.Brokers,
		"topic":         kc.config.Topic,
		"messages_sent": kc.sent,
	}
}
