/*
 * @module service/alerting/alert_manager
 * @description 告警管理器，负责审计发现的去重、持久化和多渠道通知
 * @architecture 分层架构 - 业务服务层
 * @stateFlow 发现列表 -> 重复抑制 -> 持久化 -> 通知发送 -> 历史记录
 * @rules
 *   - 同一数据集、同一指纹的发现在重复间隔内只通知一次
 *   - 所有启用渠道均发送失败的告警标记为 failed，下次审计时重试
 *   - 单个渠道发送失败不影响其他渠道
 * @dependencies fairness-audit-service/service/models, gorm.io/gorm, github.com/google/uuid
 * @refs threshold_alerting.go, notification.go
 */

package alerting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fairness-audit-service/service/models"
)

// 告警状态
const (
	StatusFiring     = "firing"
	StatusSuppressed = "suppressed"
	StatusFailed     = "failed"
)

// Alert 告警实例，即附带数据集上下文的发现
type Alert struct {
	Finding
	AlertID     string     `json:"alert_id"`
	DatasetID   string     `json:"dataset_id"`
	Filter      string     `json:"filter"`
	Status      string     `json:"status"`
	TriggeredAt time.Time  `json:"triggered_at"`
	LastSent    *time.Time `json:"last_sent,omitempty"`
	SendCount   int        `json:"send_count"`
}

// AlertConfig 告警配置
type AlertConfig struct {
	RepeatInterval time.Duration `json:"repeat_interval"` // 重复通知间隔
	SendTimeout    time.Duration `json:"send_timeout"`    // 单渠道发送超时
	MaxHistory     int           `json:"max_history"`     // 内存历史上限
}

// AlertManager 告警管理器
type AlertManager struct {
	db                   *gorm.DB
	alertConfig          *AlertConfig
	notificationChannels map[string]NotificationSender
	lastSent             map[string]time.Time
	alertHistory         []*Alert
	mutex                sync.RWMutex
	now                  func() time.Time
}

// NewAlertManager 创建告警管理器实例，db 为空时只保留内存历史
func NewAlertManager(db *gorm.DB) *AlertManager {
	return &AlertManager{
		db:                   db,
		alertConfig:          getDefaultAlertConfig(),
		notificationChannels: make(map[string]NotificationSender),
		lastSent:             make(map[string]time.Time),
		now:                  time.Now,
	}
}

// SetConfig 更新告警配置
func (a *AlertManager) SetConfig(config *AlertConfig) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.alertConfig = config
}

// RegisterChannel 注册通知渠道，同类型渠道会被替换
func (a *AlertManager) RegisterChannel(sender NotificationSender) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.notificationChannels[sender.GetChannelType()] = sender
	slog.Info("通知渠道已注册", "channel", sender.GetChannelType(), "enabled", sender.IsEnabled())
}

// ConfigureChannel 动态配置已注册的渠道
func (a *AlertManager) ConfigureChannel(channelType string, config map[string]interface{}) error {
	a.mutex.RLock()
	sender, ok := a.notificationChannels[channelType]
	a.mutex.RUnlock()
	if !ok {
		return fmt.Errorf("通知渠道不存在: %s", channelType)
	}
	return sender.Configure(config)
}

// GetChannels 已注册渠道及其启用状态
func (a *AlertManager) GetChannels() map[string]bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	result := make(map[string]bool, len(a.notificationChannels))
	for name, sender := range a.notificationChannels {
		result[name] = sender.IsEnabled()
	}
	return result
}

// Dispatch 处理一次审计产生的发现，返回实际触发（未被抑制）的告警
func (a *AlertManager) Dispatch(ctx context.Context, datasetID, filter string, findings []Finding) ([]*Alert, error) {
	if len(findings) == 0 {
		return nil, nil
	}

	now := a.now()
	fired := make([]*Alert, 0, len(findings))

	a.mutex.Lock()
	for _, f := range findings {
		key := datasetID + "|" + f.Fingerprint()
		if last, ok := a.lastSent[key]; ok && now.Sub(last) < a.alertConfig.RepeatInterval {
			slog.Debug("告警在重复间隔内，已抑制", "dataset_id", datasetID, "rule", f.Rule)
			continue
		}
		a.lastSent[key] = now
		fired = append(fired, &Alert{
			Finding:     f,
			AlertID:     uuid.New().String(),
			DatasetID:   datasetID,
			Filter:      filter,
			Status:      StatusFiring,
			TriggeredAt: now,
		})
	}
	channels := a.sortedChannels()
	sendTimeout := a.alertConfig.SendTimeout
	a.mutex.Unlock()

	var errs []error
	var failed []*Alert
	for _, alert := range fired {
		attempted, err := a.sendAlertNotification(ctx, alert, channels, sendTimeout)
		if err != nil {
			errs = append(errs, err)
		}
		if attempted > 0 && alert.SendCount == 0 {
			alert.Status = StatusFailed
			failed = append(failed, alert)
		}
	}
	a.releaseFailed(failed, now)

	if err := a.saveAlerts(fired); err != nil {
		errs = append(errs, err)
	}
	a.appendHistory(fired)

	return fired, errors.Join(errs...)
}

// GetAlertHistory 获取告警历史，优先从数据库读取
func (a *AlertManager) GetAlertHistory(datasetID string, limit int) ([]models.AuditFinding, error) {
	if limit <= 0 {
		limit = 100
	}

	if a.db != nil {
		var records []models.AuditFinding
		query := a.db.Order("triggered_at DESC").Limit(limit)
		if datasetID != "" {
			query = query.Where("dataset_id = ?", datasetID)
		}
		if err := query.Find(&records).Error; err != nil {
			return nil, fmt.Errorf("查询告警历史失败: %w", err)
		}
		return records, nil
	}

	a.mutex.RLock()
	defer a.mutex.RUnlock()
	records := make([]models.AuditFinding, 0, limit)
	for i := len(a.alertHistory) - 1; i >= 0 && len(records) < limit; i-- {
		alert := a.alertHistory[i]
		if datasetID != "" && alert.DatasetID != datasetID {
			continue
		}
		records = append(records, toModel(alert))
	}
	return records, nil
}

// Reset 清空重复抑制状态
func (a *AlertManager) Reset() {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.lastSent = make(map[string]time.Time)
}

// releaseFailed 撤销发送全部失败的告警的抑制记录，使其在下次审计时重试
func (a *AlertManager) releaseFailed(alerts []*Alert, reservedAt time.Time) {
	if len(alerts) == 0 {
		return
	}
	a.mutex.Lock()
	defer a.mutex.Unlock()
	for _, alert := range alerts {
		key := alert.DatasetID + "|" + alert.Fingerprint()
		if last, ok := a.lastSent[key]; ok && last.Equal(reservedAt) {
			delete(a.lastSent, key)
		}
	}
}

// sendAlertNotification 依次发送到所有启用的渠道，返回尝试发送的渠道数
func (a *AlertManager) sendAlertNotification(ctx context.Context, alert *Alert, channels []NotificationSender, timeout time.Duration) (int, error) {
	var errs []error
	attempted := 0
	for _, sender := range channels {
		if !sender.IsEnabled() {
			continue
		}
		attempted++
		sendCtx, cancel := context.WithTimeout(ctx, timeout)
		err := sender.Send(sendCtx, alert)
		cancel()
		if err != nil {
			slog.Warn("发送告警通知失败", "channel", sender.GetChannelType(), "rule", alert.Rule, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", sender.GetChannelType(), err))
			continue
		}
		alert.SendCount++
		sent := a.now()
		alert.LastSent = &sent
	}
	return attempted, errors.Join(errs...)
}

func (a *AlertManager) sortedChannels() []NotificationSender {
	names := make([]string, 0, len(a.notificationChannels))
	for name := range a.notificationChannels {
		names = append(names, name)
	}
	sort.Strings(names)
	channels := make([]NotificationSender, 0, len(names))
	for _, name := range names {
		channels = append(channels, a.notificationChannels[name])
	}
	return channels
}

func (a *AlertManager) saveAlerts(alerts []*Alert) error {
	if a.db == nil || len(alerts) == 0 {
		return nil
	}
	records := make([]models.AuditFinding, 0, len(alerts))
	for _, alert := range alerts {
		records = append(records, toModel(alert))
	}
	if err := a.db.Create(&records).Error; err != nil {
		return fmt.Errorf("保存告警记录失败: %w", err)
	}
	return nil
}

func (a *AlertManager) appendHistory(alerts []*Alert) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.alertHistory = append(a.alertHistory, alerts...)
	if limit := a.alertConfig.MaxHistory; limit > 0 && len(a.alertHistory) > limit {
		a.alertHistory = a.alertHistory[len(a.alertHistory)-limit:]
	}
}

func toModel(alert *Alert) models.AuditFinding {
	return models.AuditFinding{
		ID:          alert.AlertID,
		DatasetID:   alert.DatasetID,
		Fingerprint: alert.ID,
		Rule:        string(alert.Rule),
		Dimension:   string(alert.Dimension),
		Severity:    string(alert.Severity),
		Message:     alert.Message,
		Value:       alert.Value,
		Threshold:   alert.Threshold,
		Groups:      models.JSONBStringArray(alert.Groups),
		Filter:      alert.Filter,
		Status:      alert.Status,
		SendCount:   alert.SendCount,
		TriggeredAt: alert.TriggeredAt,
	}
}

// 获取默认告警配置
func getDefaultAlertConfig() *AlertConfig {
	return &AlertConfig{
		RepeatInterval: 15 * time.Minute,
		SendTimeout:    10 * time.Second,
		MaxHistory:     1000,
	}
}
