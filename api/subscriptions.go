/*
 * @module api/subscriptions
 * @description Dapr 发布订阅处理器，接收阈值补丁并应用到阈值管理器
 * @architecture 事件驱动 - 订阅处理
 * @stateFlow 事件 -> 解码补丁 -> 阈值更新 -> 监听器重新审计
 * @rules 格式错误的事件直接丢弃且不重试；操作人记为 pubsub:<组件名>
 * @dependencies github.com/dapr/go-sdk/service/common, service/config
 * @refs main.go, service/config/threshold_manager.go
 */

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dapr/go-sdk/service/common"

	"fairness-audit-service/service/config"
)

// ThresholdTopic 接收阈值变更的发布订阅主题
const ThresholdTopic = "audit-thresholds"

// ThresholdSubscription 阈值变更订阅
func ThresholdSubscription(pubsubName string) *common.Subscription {
	return &common.Subscription{
		PubsubName: pubsubName,
		Topic:      ThresholdTopic,
		Route:      "/" + ThresholdTopic,
	}
}

// ThresholdTopicHandler 将主题消息作为阈值补丁应用，格式错误或校验失败时不重试
func ThresholdTopicHandler(manager *config.ThresholdManager) common.TopicEventHandler {
	return func(ctx context.Context, e *common.TopicEvent) (bool, error) {
		patch, err := decodePatch(e)
		if err != nil {
			slog.Warn("阈值消息格式错误", "topic", e.Topic, "id", e.ID, "error", err)
			return false, err
		}
		if _, err := manager.Update(patch, "pubsub:"+e.PubsubName); err != nil {
			slog.Warn("应用阈值消息失败", "topic", e.Topic, "id", e.ID, "error", err)
			return false, err
		}
		slog.Info("已应用阈值消息", "topic", e.Topic, "id", e.ID, "fields", len(patch))
		return false, nil
	}
}

func decodePatch(e *common.TopicEvent) (map[string]interface{}, error) {
	if patch, ok := e.Data.(map[string]interface{}); ok {
		return patch, nil
	}
	raw := e.RawData
	if len(raw) == 0 {
		if s, ok := e.Data.(string); ok {
			raw = []byte(s)
		}
	}
	var patch map[string]interface{}
	if err := json.Unmarshal(raw, &patch); err != nil {
		return nil, fmt.Errorf("解析阈值补丁失败: %w", err)
	}
	return patch, nil
}
