/*
 * @module service/models/audit
 * @description 审计相关持久化模型：数据集加载记录和告警发现记录
 * @architecture 数据模型层
 * @stateFlow 加载尝试 -> DatasetLoad；阈值告警 -> AuditFinding
 * @rules 加载失败同样记录，失败不会替换当前数据集
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/audit/service.go, service/alerting/alert_manager.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 数据集加载状态
const (
	LoadStatusSuccess = "success"
	LoadStatusFailed  = "failed"
)

// 数据集来源
const (
	LoadSourceUpload   = "upload"
	LoadSourcePostgres = "postgres"
	LoadSourceFile     = "file"
)

// DatasetLoad 数据集加载记录
type DatasetLoad struct {
	ID             string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name           string    `gorm:"type:varchar(255);not null" json:"name"`
	Source         string    `gorm:"type:varchar(20);not null" json:"source"`
	Status         string    `gorm:"type:varchar(20);not null;index" json:"status"`
	ErrorType      string    `gorm:"type:varchar(50)" json:"error_type,omitempty"`
	ErrorMessage   string    `gorm:"type:text" json:"error_message,omitempty"`
	RawRows        int       `json:"raw_rows"`
	AcceptedRows   int       `json:"accepted_rows"`
	MedianAge      float64   `json:"median_age"`
	MedianDuration float64   `json:"median_duration"`
	Stats          JSONB     `gorm:"type:jsonb" json:"stats"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (DatasetLoad) TableName() string {
	return "dataset_loads"
}

// BeforeCreate 创建前钩子
func (d *DatasetLoad) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// AuditFinding 告警发现记录
type AuditFinding struct {
	ID          string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	DatasetID   string           `gorm:"type:varchar(36);not null;index" json:"dataset_id"`
	Fingerprint string           `gorm:"type:varchar(64);index" json:"fingerprint"`
	Rule        string           `gorm:"type:varchar(30);not null;index" json:"rule"`
	Dimension   string           `gorm:"type:varchar(30);not null" json:"dimension"`
	Severity    string           `gorm:"type:varchar(20);not null" json:"severity"`
	Message     string           `gorm:"type:text;not null" json:"message"`
	Value       float64          `json:"value"`
	Threshold   float64          `json:"threshold"`
	Groups      JSONBStringArray `gorm:"type:jsonb" json:"groups"`
	Filter      string           `gorm:"type:varchar(255)" json:"filter"`
	Status      string           `gorm:"type:varchar(20);index" json:"status"`
	SendCount   int              `json:"send_count"`
	TriggeredAt time.Time        `gorm:"index" json:"triggered_at"`
}

// TableName 指定表名
func (AuditFinding) TableName() string {
	return "audit_findings"
}

// BeforeCreate 创建前钩子
func (f *AuditFinding) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}

// AllModels 需要自动迁移的模型
func AllModels() []interface{} {
	return []interface{}{
		&DatasetLoad{},
		&AuditFinding{},
		&SystemConfig{},
		&SSEEvent{},
	}
}
