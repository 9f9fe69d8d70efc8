/*
 * @module service/models/system_config
 * @description 系统配置模型，保存运行期可调整的配置（如差异告警阈值）
 * @architecture 数据模型层
 * @stateFlow 配置存储 -> 配置读取 -> 配置更新
 * @rules 同一环境下配置键唯一，值以 JSON 文本保存
 * @dependencies gorm.io/gorm
 * @refs service/config/threshold_manager.go
 */

package models

import (
	"time"
)

// ThresholdConfigKey 差异告警阈值的配置键
const ThresholdConfigKey = "disparity_thresholds"

// SystemConfig 系统配置模型
type SystemConfig struct {
	ID          string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	Key         string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_config_key_env" json:"key"`
	Value       string    `gorm:"type:text;not null" json:"value"`
	Environment string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_config_key_env" json:"environment"`
	Version     int       `gorm:"not null;default:1" json:"version"`
	Description string    `gorm:"type:text" json:"description"`
	UpdatedBy   string    `gorm:"type:varchar(100)" json:"updated_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 指定表名
func (SystemConfig) TableName() string {
	return "system_configs"
}
