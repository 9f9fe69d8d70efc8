/*
 * @module service/config/threshold_manager
 * @description 阈值配置管理器，负责差异告警阈值的加载、校验、热更新、持久化和版本记录
 * @architecture 分层架构 - 业务服务层
 * @stateFlow 默认值 -> YAML/JSON 文件 -> 环境变量覆盖 -> 数据库持久值 -> 校验 -> 生效 -> 变更通知
 * @rules
 *   - 对外只返回阈值副本，更新必须通过 Update/Replace
 *   - 校验失败的更新不生效也不持久化
 *   - 变更通知在释放锁之后同步调用
 * @dependencies gopkg.in/yaml.v3, github.com/spf13/cast, gorm.io/gorm
 * @refs service/disparity/thresholds.go, service/models/system_config.go
 */

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"fairness-audit-service/service/disparity"
	"fairness-audit-service/service/models"
)

// DefaultEnvPrefix 阈值环境变量前缀
const DefaultEnvPrefix = "THRESHOLD_"

// ThresholdManager 阈值配置管理器
type ThresholdManager struct {
	db          *gorm.DB
	thresholds  disparity.Thresholds
	version     int
	configLock  sync.RWMutex
	filePath    string
	envPrefix   string
	environment string
	lookupEnv   func(string) (string, bool)

	changeNotifiers []ThresholdChangeNotifier
	configHistory   []*ThresholdVersion
	maxHistoryCount int
}

// ThresholdVersion 阈值版本
type ThresholdVersion struct {
	Version    int                  `json:"version"`
	Thresholds disparity.Thresholds `json:"thresholds"`
	CreatedAt  time.Time            `json:"created_at"`
	CreatedBy  string               `json:"created_by"`
	Changes    []ConfigChange       `json:"changes"`
}

// ConfigChange 配置变更
type ConfigChange struct {
	Path     string  `json:"path"`
	OldValue float64 `json:"old_value"`
	NewValue float64 `json:"new_value"`
}

// ThresholdChangeNotifier 阈值变更通知器
type ThresholdChangeNotifier interface {
	OnThresholdsChanged(oldThresholds, newThresholds disparity.Thresholds, changes []ConfigChange)
}

// ThresholdChangeFunc 函数形式的通知器
type ThresholdChangeFunc func(oldThresholds, newThresholds disparity.Thresholds, changes []ConfigChange)

// OnThresholdsChanged 实现 ThresholdChangeNotifier
func (f ThresholdChangeFunc) OnThresholdsChanged(oldThresholds, newThresholds disparity.Thresholds, changes []ConfigChange) {
	f(oldThresholds, newThresholds, changes)
}

// Option 管理器选项
type Option func(*ThresholdManager)

// WithFile 指定阈值文件（.yaml/.yml/.json）
func WithFile(path string) Option {
	return func(m *ThresholdManager) { m.filePath = path }
}

// WithEnvPrefix 指定环境变量前缀
func WithEnvPrefix(prefix string) Option {
	return func(m *ThresholdManager) { m.envPrefix = prefix }
}

// WithEnvironment 指定持久化使用的环境名
func WithEnvironment(env string) Option {
	return func(m *ThresholdManager) { m.environment = env }
}

// WithLookupEnv 替换环境变量读取函数
func WithLookupEnv(lookup func(string) (string, bool)) Option {
	return func(m *ThresholdManager) { m.lookupEnv = lookup }
}

// NewThresholdManager 创建阈值管理器，db 为空时不持久化
func NewThresholdManager(db *gorm.DB, opts ...Option) *ThresholdManager {
	m := &ThresholdManager{
		db:              db,
		thresholds:      disparity.DefaultThresholds(),
		envPrefix:       DefaultEnvPrefix,
		environment:     "default",
		lookupEnv:       os.LookupEnv,
		maxHistoryCount: 20,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load 按 默认值 -> 文件 -> 环境变量 -> 数据库 的顺序加载阈值
func (m *ThresholdManager) Load() error {
	t := disparity.DefaultThresholds()
	version := 0

	if m.filePath != "" {
		if err := loadThresholdsFromFile(m.filePath, &t); err != nil {
			return err
		}
	}

	if err := m.applyEnvironmentOverrides(&t); err != nil {
		return err
	}

	if m.db != nil {
		record, err := m.loadRecord()
		if err != nil {
			return err
		}
		if record != nil {
			if err := json.Unmarshal([]byte(record.Value), &t); err != nil {
				return fmt.Errorf("反序列化阈值配置失败: %w", err)
			}
			version = record.Version
		}
	}

	if err := t.Validate(); err != nil {
		return fmt.Errorf("阈值配置验证失败: %w", err)
	}

	m.configLock.Lock()
	old := m.thresholds
	m.thresholds = t
	m.version = version
	m.recordVersion(t, "load", diffThresholds(old, t))
	m.configLock.Unlock()

	slog.Info("阈值配置已加载", "thresholds", t, "version", version)
	return nil
}

// Get 当前阈值副本
func (m *ThresholdManager) Get() disparity.Thresholds {
	m.configLock.RLock()
	defer m.configLock.RUnlock()
	return m.thresholds
}

// Version 当前版本号
func (m *ThresholdManager) Version() int {
	m.configLock.RLock()
	defer m.configLock.RUnlock()
	return m.version
}

// Update 按字段补丁更新阈值，键为 JSON 字段名。补丁在写锁内基于最新阈值应用
func (m *ThresholdManager) Update(patch map[string]interface{}, updatedBy string) (disparity.Thresholds, error) {
	return m.commit(updatedBy, func(current disparity.Thresholds) (disparity.Thresholds, error) {
		next := current
		if err := ApplyPatch(&next, patch); err != nil {
			return disparity.Thresholds{}, err
		}
		return next, nil
	})
}

// Replace 整体替换阈值
func (m *ThresholdManager) Replace(next disparity.Thresholds, updatedBy string) (disparity.Thresholds, error) {
	return m.commit(updatedBy, func(disparity.Thresholds) (disparity.Thresholds, error) {
		return next, nil
	})
}

// commit 在写锁内计算、校验并持久化新阈值，解锁后通知监听器
func (m *ThresholdManager) commit(updatedBy string, build func(current disparity.Thresholds) (disparity.Thresholds, error)) (disparity.Thresholds, error) {
	m.configLock.Lock()
	old := m.thresholds
	next, err := build(old)
	if err != nil {
		m.configLock.Unlock()
		return disparity.Thresholds{}, err
	}
	if err := next.Validate(); err != nil {
		m.configLock.Unlock()
		return disparity.Thresholds{}, fmt.Errorf("阈值配置验证失败: %w", err)
	}

	changes := diffThresholds(old, next)
	if len(changes) == 0 {
		m.configLock.Unlock()
		return next, nil
	}
	version := m.version + 1
	if err := m.saveRecord(next, version, updatedBy); err != nil {
		m.configLock.Unlock()
		return disparity.Thresholds{}, err
	}
	m.thresholds = next
	m.version = version
	m.recordVersion(next, updatedBy, changes)
	notifiers := append([]ThresholdChangeNotifier(nil), m.changeNotifiers...)
	m.configLock.Unlock()

	slog.Info("阈值配置已更新", "version", version, "updated_by", updatedBy, "changes", len(changes))
	for _, n := range notifiers {
		n.OnThresholdsChanged(old, next, changes)
	}
	return next, nil
}

// AddChangeNotifier 添加阈值变更通知器
func (m *ThresholdManager) AddChangeNotifier(notifier ThresholdChangeNotifier) {
	m.configLock.Lock()
	defer m.configLock.Unlock()
	m.changeNotifiers = append(m.changeNotifiers, notifier)
}

// GetHistory 获取阈值版本历史，最新的在最后
func (m *ThresholdManager) GetHistory() []ThresholdVersion {
	m.configLock.RLock()
	defer m.configLock.RUnlock()
	result := make([]ThresholdVersion, 0, len(m.configHistory))
	for _, v := range m.configHistory {
		result = append(result, *v)
	}
	return result
}

// RollbackToVersion 回滚到历史中的指定版本
func (m *ThresholdManager) RollbackToVersion(version int, updatedBy string) (disparity.Thresholds, error) {
	return m.commit(updatedBy, func(disparity.Thresholds) (disparity.Thresholds, error) {
		for _, v := range m.configHistory {
			if v.Version == version {
				return v.Thresholds, nil
			}
		}
		return disparity.Thresholds{}, fmt.Errorf("版本 %d 不存在", version)
	})
}

// thresholdFields JSON 字段名到阈值字段的映射
func thresholdFields(t *disparity.Thresholds) map[string]*float64 {
	return map[string]*float64{
		"representation_min_pct": &t.RepresentationMinPct,
		"representation_max_pct": &t.RepresentationMaxPct,
		"disposition_spread_pp":  &t.DispositionSpreadPP,
		"sentencing_ratio":       &t.SentencingRatio,
		"duration_spread_days":   &t.DurationSpreadDays,
	}
}

// ApplyPatch 将补丁应用到阈值，值通过 cast 转换为数值
func ApplyPatch(t *disparity.Thresholds, patch map[string]interface{}) error {
	fields := thresholdFields(t)
	var errs []error
	for key, value := range patch {
		field, ok := fields[strings.ToLower(strings.TrimSpace(key))]
		if !ok {
			errs = append(errs, fmt.Errorf("未知的阈值字段: %s", key))
			continue
		}
		v, err := cast.ToFloat64E(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("阈值字段 %s 不是数值: %w", key, err))
			continue
		}
		*field = v
	}
	return errors.Join(errs...)
}

func loadThresholdsFromFile(path string, t *disparity.Thresholds) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取阈值文件失败: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, t)
	case ".json":
		err = json.Unmarshal(data, t)
	default:
		return fmt.Errorf("不支持的阈值文件格式: %s", ext)
	}
	if err != nil {
		return fmt.Errorf("解析阈值文件失败: %w", err)
	}
	return nil
}

// LoadFile 从文件读取阈值，未出现的字段保持默认值
func LoadFile(path string) (disparity.Thresholds, error) {
	t := disparity.DefaultThresholds()
	if err := loadThresholdsFromFile(path, &t); err != nil {
		return disparity.Thresholds{}, err
	}
	if err := t.Validate(); err != nil {
		return disparity.Thresholds{}, fmt.Errorf("阈值配置验证失败: %w", err)
	}
	return t, nil
}

func (m *ThresholdManager) applyEnvironmentOverrides(t *disparity.Thresholds) error {
	patch := map[string]interface{}{}
	for key := range thresholdFields(t) {
		if value, ok := m.lookupEnv(m.envPrefix + strings.ToUpper(key)); ok && value != "" {
			patch[key] = value
		}
	}
	if err := ApplyPatch(t, patch); err != nil {
		return fmt.Errorf("环境变量阈值无效: %w", err)
	}
	return nil
}

func (m *ThresholdManager) loadRecord() (*models.SystemConfig, error) {
	var record models.SystemConfig
	err := m.db.Where(&models.SystemConfig{Key: models.ThresholdConfigKey, Environment: m.environment}).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("从数据库加载阈值失败: %w", err)
	}
	return &record, nil
}

func (m *ThresholdManager) saveRecord(t disparity.Thresholds, version int, updatedBy string) error {
	if m.db == nil {
		return nil
	}
	value, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("序列化阈值失败: %w", err)
	}

	record, err := m.loadRecord()
	if err != nil {
		return err
	}
	if record == nil {
		record = &models.SystemConfig{
			ID:          uuid.New().String(),
			Key:         models.ThresholdConfigKey,
			Environment: m.environment,
			Description: "差异告警阈值",
		}
	}
	record.Value = string(value)
	record.Version = version
	record.UpdatedBy = updatedBy

	if err := m.db.Save(record).Error; err != nil {
		return fmt.Errorf("保存阈值配置失败: %w", err)
	}
	return nil
}

func (m *ThresholdManager) recordVersion(t disparity.Thresholds, by string, changes []ConfigChange) {
	m.configHistory = append(m.configHistory, &ThresholdVersion{
		Version:    m.version,
		Thresholds: t,
		CreatedAt:  time.Now(),
		CreatedBy:  by,
		Changes:    changes,
	})
	if len(m.configHistory) > m.maxHistoryCount {
		m.configHistory = m.configHistory[len(m.configHistory)-m.maxHistoryCount:]
	}
}

// diffThresholds 计算字段级变更，按字段名排序
func diffThresholds(oldThresholds, newThresholds disparity.Thresholds) []ConfigChange {
	oldFields := thresholdFields(&oldThresholds)
	newFields := thresholdFields(&newThresholds)

	var changes []ConfigChange
	for key, oldValue := range oldFields {
		if newValue := newFields[key]; *newValue != *oldValue {
			changes = append(changes, ConfigChange{Path: key, OldValue: *oldValue, NewValue: *newValue})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}
