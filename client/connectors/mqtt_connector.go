/*
 * @module MQTTConnector
 * @description MQTT连接器，向告警主题发布审计发现
 * @architecture 适配器模式 - 封装第三方MQTT客户端，提供统一的接口
 * @stateFlow 连接建立 -> 主题发布 -> 连接断开
 * @rules 支持自动重连、QoS控制、保留消息
 * @dependencies github.com/eclipse/paho.mqtt.golang, encoding/json
 * @refs service/alerting/notification.go
 */
package connectors

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker         string        `json:"broker"`
	ClientID       string        `json:"client_id"`
	Username       string        `json:"username"`
	Password       string        `json:"password"`
	QoS            byte          `json:"qos"`
	Retained       bool          `json:"retained"`
	CleanSession   bool          `json:"clean_session"`
	KeepAlive      time.Duration `json:"keep_alive"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}

// MQTTConnector MQTT连接器结构体
type MQTTConnector struct {
	config      *MQTTConfig
	client      mqtt.Client
	mutex       sync.RWMutex
	isConnected bool
	sent        int64
	lastError   string
}

// NewMQTTConnector 创建新的MQTT连接器
func NewMQTTConnector(config *MQTTConfig) *MQTTConnector {
	if config.KeepAlive <= 0 {
		config.KeepAlive = 30 * time.Second
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 10 * time.Second
	}

	connector := &MQTTConnector{config: config}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}
	opts.SetCleanSession(config.CleanSession)
	opts.SetKeepAlive(config.KeepAlive)
	opts.SetConnectTimeout(config.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(connector.onConnected)
	opts.SetConnectionLostHandler(connector.onConnectionLost)

	connector.client = mqtt.NewClient(opts)
	return connector
}

// Connect 建立MQTT连接
func (mc *MQTTConnector) Connect() error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if mc.isConnected {
		return nil
	}

	token := mc.client.Connect()
	if !token.WaitTimeout(mc.config.ConnectTimeout) {
		return fmt.Errorf("MQTT连接超时: %s", mc.config.Broker)
	}
	if err := token.Error(); err != nil {
		mc.lastError = err.Error()
		return fmt.Errorf("MQTT连接失败: %w", err)
	}

	mc.isConnected = true
	slog.Info("MQTT连接器已连接", "broker", mc.config.Broker)
	return nil
}

// Disconnect 断开MQTT连接
func (mc *MQTTConnector) Disconnect() error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if !mc.isConnected {
		return nil
	}
	mc.client.Disconnect(250)
	mc.isConnected = false
	slog.Info("MQTT连接器已断开连接")
	return nil
}

// Publish 发布消息
func (mc *MQTTConnector) Publish(topic string, payload interface{}) error {
	if !mc.IsConnected() {
		return fmt.Errorf("MQTT客户端未连接")
	}

	data, err := serializeValue(payload)
	if err != nil {
		return fmt.Errorf("序列化消息载荷失败: %w", err)
	}

	token := mc.client.Publish(topic, mc.config.QoS, mc.config.Retained, data)
	if !token.WaitTimeout(mc.config.ConnectTimeout) {
		return fmt.Errorf("发布消息超时: %s", topic)
	}
	if err := token.Error(); err != nil {
		mc.mutex.Lock()
		mc.lastError = err.Error()
		mc.mutex.Unlock()
		return fmt.Errorf("发布消息失败: %w", err)
	}

	mc.mutex.Lock()
	mc.sent++
	mc.mutex.Unlock()
	slog.Debug("消息已发布到MQTT主题", "topic", topic, "qos", mc.config.QoS)
	return nil
}

// IsConnected 是否已连接
func (mc *MQTTConnector) IsConnected() bool {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()
	return mc.isConnected
}

// GetStatistics 获取统计信息
func (mc *MQTTConnector) GetStatistics() map[string]interface{} {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()
	return map[string]interface{}{
		"is_connected":  mc.isConnected,
		"broker":        mc.config.Broker,
		"messages_sent": mc.sent,
		"last_error":    mc.lastError,
	}
}

func (mc *MQTTConnector) onConnected(client mqtt.Client) {
	mc.mutex.Lock()
	mc.isConnected = true
	mc.mutex.Unlock()
	slog.Info("MQTT连接已建立", "broker", mc.config.Broker)
}

func (mc *MQTTConnector) onConnectionLost(client mqtt.Client, err error) {
	mc.mutex.Lock()
	mc.isConnected = false
	mc.lastError = err.Error()
	mc.mutex.Unlock()
	slog.Warn("MQTT连接断开，等待自动重连", "broker", mc.config.Broker, "error", err)
}
