/*
 * @module service/models/event
 * @description SSE 事件模型，记录推送给前端的数据集加载和告警事件
 * @architecture 事件驱动架构 - 数据模型层
 * @stateFlow 事件生产 -> 事件分发 -> 事件消费
 * @rules 广播事件的 UserName 为空
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/event/event_service.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SSE 事件类型
const (
	EventDatasetLoaded = "dataset_loaded"
	EventLoadFailed    = "dataset_load_failed"
	EventFinding       = "finding"
	EventThresholds    = "thresholds_updated"
)

// SSEEvent SSE事件模型
type SSEEvent struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	EventType string    `gorm:"type:varchar(50);not null" json:"event_type"`
	UserName  string    `gorm:"type:varchar(100);index" json:"user_name"`
	Data      JSONB     `gorm:"type:jsonb;not null" json:"data"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `gorm:"type:varchar(100);not null;default:'system'" json:"created_by"`
}

// BeforeCreate 创建前钩子
func (s *SSEEvent) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedBy == "" {
		s.CreatedBy = "system"
	}
	return nil
}
