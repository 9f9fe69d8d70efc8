/*
 * @module service/audit/service
 * @description 审计服务，持有当前规范数据集并编排加载、筛选、差异分析、告警分发和历史查询
 * @architecture 分层架构 - 业务服务层
 * @stateFlow 原始数据 -> 接入规范化 -> 原子替换当前数据集 -> 全量审计 -> 发现分发/事件/指标
 * @rules
 *   - 加载失败不触碰当前数据集，失败同样写入加载历史
 *   - 当前数据集通过原子指针整体替换，读取方拿到的是不可变快照
 *   - 报告缓存键包含数据集、维度、筛选条件和阈值摘要
 * @dependencies gorm.io/gorm, github.com/google/uuid, golang.org/x/crypto/blake2b
 * @refs report.go, service/alerting/alert_manager.go, service/config/threshold_manager.go
 */

package audit

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	"gorm.io/gorm"

	"fairness-audit-service/service/alerting"
	"fairness-audit-service/service/disparity"
	"fairness-audit-service/service/export"
	"fairness-audit-service/service/ingestion"
	"fairness-audit-service/service/models"
)

// ErrNoDataset 尚未加载任何数据集
var ErrNoDataset = errors.New("当前没有已加载的数据集")

// 加载失败类型
const (
	ErrorTypeEmptyInput     = "empty_input"
	ErrorTypeSchema         = "schema"
	ErrorTypeNoValidRecords = "no_valid_records"
	ErrorTypeSource         = "source"
)

// memoryHistoryLimit 未配置数据库时保留的加载历史条数
const memoryHistoryLimit = 100

// ThresholdSource 阈值来源
type ThresholdSource interface {
	Get() disparity.Thresholds
}

// FindingDispatcher 告警发现分发器
type FindingDispatcher interface {
	Dispatch(ctx context.Context, datasetID, filter string, findings []alerting.Finding) ([]*alerting.Alert, error)
	GetAlertHistory(datasetID string, limit int) ([]models.AuditFinding, error)
}

// EventPublisher 事件发布器
type EventPublisher interface {
	Publish(eventType string, data map[string]interface{})
}

// ReportCache 报告缓存
type ReportCache interface {
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

// MetricsRecorder 指标记录器
type MetricsRecorder interface {
	ObserveIngest(accepted, droppedDate, droppedUnknown, records int)
	ObserveLoadFailure(errorType string)
	ObserveScores(s disparity.Scores)
	ObserveFinding(rule, severity string)
	ObserveReport(elapsed time.Duration)
}

// TableReader 表格数据源
type TableReader interface {
	ReadTable(ctx context.Context, table string, limit int) (*ingestion.RawTable, error)
}

// Dataset 当前数据集快照
type Dataset struct {
	ID             string                    `json:"id"`
	Name           string                    `json:"name"`
	Source         string                    `json:"source"`
	Records        []ingestion.CanonicalCase `json:"-"`
	MedianAge      float64                   `json:"median_age"`
	MedianDuration float64                   `json:"median_duration"`
	Stats          ingestion.Stats           `json:"stats"`
	Mapping        ingestion.HeaderMapping   `json:"mapping"`
	Bounds         disparity.YearRange       `json:"bounds"`
	Categories     disparity.CategoryOptions `json:"categories"`
	LoadedAt       time.Time                 `json:"loaded_at"`
}

// Service 审计服务
type Service struct {
	db         *gorm.DB
	current    atomic.Pointer[Dataset]
	thresholds ThresholdSource
	dispatcher FindingDispatcher
	events     EventPublisher
	cache      ReportCache
	metrics    MetricsRecorder
	cacheTTL   time.Duration
	options    []disparity.Option

	loadMutex sync.Mutex
	histMutex sync.RWMutex
	history   []models.DatasetLoad
}

// Option 服务选项
type Option func(*Service)

// WithDB 持久化加载历史
func WithDB(db *gorm.DB) Option {
	return func(s *Service) { s.db = db }
}

// WithDispatcher 设置告警发现分发器
func WithDispatcher(d FindingDispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// WithEventPublisher 设置事件发布器
func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// WithReportCache 设置报告缓存
func WithReportCache(c ReportCache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithMetrics 设置指标记录器
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithDisparityOptions 设置差异计算选项
func WithDisparityOptions(opts ...disparity.Option) Option {
	return func(s *Service) { s.options = append(s.options, opts...) }
}

// NewService 创建审计服务
func NewService(thresholds ThresholdSource, opts ...Option) *Service {
	s := &Service{
		thresholds: thresholds,
		cacheTTL:   10 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current 当前数据集，未加载时返回 nil
func (s *Service) Current() *Dataset {
	return s.current.Load()
}

// Thresholds 当前生效的阈值
func (s *Service) Thresholds() disparity.Thresholds {
	if s.thresholds == nil {
		return disparity.DefaultThresholds()
	}
	return s.thresholds.Get()
}

// Load 从分隔文本加载数据集，成功后替换当前数据集并执行一次全量审计
func (s *Service) Load(ctx context.Context, name string, r io.Reader, opts ingestion.LoadOptions) (*Dataset, error) {
	result, err := ingestion.Load(r, opts)
	return s.install(ctx, name, models.LoadSourceUpload, result, err)
}

// LoadFromSource 从表格数据源加载数据集
func (s *Service) LoadFromSource(ctx context.Context, src TableReader, table string, limit int) (*Dataset, error) {
	raw, err := src.ReadTable(ctx, table, limit)
	if err != nil {
		return s.install(ctx, table, models.LoadSourcePostgres, nil, err)
	}
	result, err := ingestion.NormalizeTable(raw, nil)
	return s.install(ctx, table, models.LoadSourcePostgres, result, err)
}

// LoadFromPostgres 连接 PostgreSQL 并读取指定表
func (s *Service) LoadFromPostgres(ctx context.Context, dsn, table string, limit int) (*Dataset, error) {
	src, err := ingestion.OpenPostgresSource(ctx, dsn)
	if err != nil {
		return s.install(ctx, table, models.LoadSourcePostgres, nil, err)
	}
	defer src.Close()
	return s.LoadFromSource(ctx, src, table, limit)
}

func (s *Service) install(ctx context.Context, name, source string, result *ingestion.Result, loadErr error) (*Dataset, error) {
	s.loadMutex.Lock()
	defer s.loadMutex.Unlock()

	if loadErr != nil {
		s.recordFailure(name, source, loadErr)
		return nil, loadErr
	}

	ds := &Dataset{
		ID:             uuid.New().String(),
		Name:           name,
		Source:         source,
		Records:        result.Records,
		MedianAge:      result.MedianAge,
		MedianDuration: result.MedianDuration,
		Stats:          result.Stats,
		Mapping:        result.Mapping,
		Bounds:         disparity.YearBounds(result.Records),
		Categories:     disparity.Categories(result.Records),
		LoadedAt:       time.Now(),
	}
	s.current.Store(ds)

	s.recordSuccess(ds)
	if s.metrics != nil {
		s.metrics.ObserveIngest(result.Stats.AcceptedRows, result.Stats.DroppedInvalidDate,
			result.Stats.DroppedUnknownDemographic, len(result.Records))
	}
	if s.events != nil {
		s.events.Publish(models.EventDatasetLoaded, map[string]interface{}{
			"dataset_id": ds.ID,
			"name":       ds.Name,
			"records":    len(ds.Records),
			"raw_rows":   result.Stats.RawRows,
		})
	}
	slog.Info("数据集已加载", "dataset_id", ds.ID, "name", name, "source", source, "stats", result.Stats.String())

	s.auditFull(ctx, ds)
	return ds, nil
}

// Report 对当前数据集按筛选条件和维度生成差异报告
func (s *Service) Report(ctx context.Context, filter disparity.FilterSpec, dim disparity.Dimension) (*DisparityReport, error) {
	ds := s.current.Load()
	if ds == nil {
		return nil, ErrNoDataset
	}
	return s.report(ctx, ds, filter.Resolve(ds.Records), dim, true), nil
}

// ReAudit 使用当前阈值对当前数据集重新执行全量审计，忽略缓存
func (s *Service) ReAudit(ctx context.Context) error {
	ds := s.current.Load()
	if ds == nil {
		return ErrNoDataset
	}
	s.auditFull(ctx, ds)
	return nil
}

// HandleThresholdsChanged 阈值变更后清理缓存并重新审计
func (s *Service) HandleThresholdsChanged(ctx context.Context) {
	s.invalidateCache(ctx)
	if s.events != nil {
		s.events.Publish(models.EventThresholds, map[string]interface{}{"thresholds": s.Thresholds()})
	}
	if err := s.ReAudit(ctx); err != nil && !errors.Is(err, ErrNoDataset) {
		slog.Warn("阈值变更后的重新审计失败", "error", err)
	}
}

// Records 当前数据集按筛选条件过滤后的记录
func (s *Service) Records(filter disparity.FilterSpec) ([]ingestion.CanonicalCase, error) {
	ds := s.current.Load()
	if ds == nil {
		return nil, ErrNoDataset
	}
	return disparity.ApplyFilter(ds.Records, filter.Resolve(ds.Records)), nil
}

// Intersectional 当前数据集的交叉统计
func (s *Service) Intersectional(filter disparity.FilterSpec) ([]disparity.IntersectionalRow, error) {
	records, err := s.Records(filter)
	if err != nil {
		return nil, err
	}
	return disparity.ComputeIntersectional(records, s.options...), nil
}

// Digest 当前数据集的文本摘要
func (s *Service) Digest(filter disparity.FilterSpec) (string, error) {
	records, err := s.Records(filter)
	if err != nil {
		return "", err
	}
	return export.BuildDigest(records), nil
}

// LoadHistory 加载历史，最新的在前
func (s *Service) LoadHistory(limit int) ([]models.DatasetLoad, error) {
	if limit <= 0 {
		limit = 50
	}
	if s.db != nil {
		var loads []models.DatasetLoad
		if err := s.db.Order("created_at DESC").Limit(limit).Find(&loads).Error; err != nil {
			return nil, fmt.Errorf("查询加载历史失败: %w", err)
		}
		return loads, nil
	}

	s.histMutex.RLock()
	defer s.histMutex.RUnlock()
	loads := make([]models.DatasetLoad, 0, limit)
	for i := len(s.history) - 1; i >= 0 && len(loads) < limit; i-- {
		loads = append(loads, s.history[i])
	}
	return loads, nil
}

// FindingHistory 告警发现历史，datasetID 为空时返回全部
func (s *Service) FindingHistory(datasetID string, limit int) ([]models.AuditFinding, error) {
	if s.dispatcher == nil {
		return []models.AuditFinding{}, nil
	}
	return s.dispatcher.GetAlertHistory(datasetID, limit)
}

// auditFull 对整个数据集按种族维度审计并分发发现，分发失败只记录日志
func (s *Service) auditFull(ctx context.Context, ds *Dataset) *DisparityReport {
	report := s.report(ctx, ds, disparity.FullExtent(ds.Records), disparity.DimensionRace, false)
	if err := s.dispatch(ctx, ds.ID, report.Filter, report.Findings); err != nil {
		slog.Warn("审计发现分发存在错误", "dataset_id", ds.ID, "error", err)
	}
	return report
}

// report 计算报告，按需读写缓存，不产生通知
func (s *Service) report(ctx context.Context, ds *Dataset, filter disparity.FilterSpec, dim disparity.Dimension, useCache bool) *DisparityReport {
	if dim == "" {
		dim = disparity.DimensionRace
	}
	thresholds := s.Thresholds()
	key := reportCacheKey(ds.ID, dim, filter, thresholds)

	if useCache && s.cache != nil {
		var cached DisparityReport
		found, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			slog.Warn("读取报告缓存失败", "key", key, "error", err)
		} else if found {
			return &cached
		}
	}

	started := time.Now()
	report := ComputeReport(ds.Records, filter, dim, thresholds, s.options...)
	report.DatasetID = ds.ID
	if s.metrics != nil {
		s.metrics.ObserveReport(time.Since(started))
		if filter == disparity.FullExtent(ds.Records) && dim == disparity.DimensionRace {
			s.metrics.ObserveScores(report.Metrics.Scores)
		}
	}

	if useCache && s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, report, s.cacheTTL); err != nil {
			slog.Warn("写入报告缓存失败", "key", key, "error", err)
		}
	}

	return report
}

func (s *Service) dispatch(ctx context.Context, datasetID string, filter disparity.FilterSpec, findings []alerting.Finding) error {
	if s.dispatcher == nil || len(findings) == 0 {
		return nil
	}
	fired, err := s.dispatcher.Dispatch(ctx, datasetID, filter.Key(), findings)
	for _, alert := range fired {
		if s.metrics != nil {
			s.metrics.ObserveFinding(string(alert.Rule), string(alert.Severity))
		}
		if s.events != nil {
			s.events.Publish(models.EventFinding, map[string]interface{}{
				"dataset_id": datasetID,
				"finding_id": alert.ID,
				"rule":       alert.Rule,
				"severity":   alert.Severity,
				"message":    alert.Message,
			})
		}
	}
	if err != nil {
		return fmt.Errorf("分发告警发现失败: %w", err)
	}
	return nil
}

func (s *Service) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.DeletePattern(ctx, "report:*"); err != nil {
		slog.Warn("清理报告缓存失败", "error", err)
	}
}

func (s *Service) recordSuccess(ds *Dataset) {
	stats, _ := toJSONB(ds.Stats)
	s.saveLoad(models.DatasetLoad{
		ID:             ds.ID,
		Name:           ds.Name,
		Source:         ds.Source,
		Status:         models.LoadStatusSuccess,
		RawRows:        ds.Stats.RawRows,
		AcceptedRows:   ds.Stats.AcceptedRows,
		MedianAge:      ds.MedianAge,
		MedianDuration: ds.MedianDuration,
		Stats:          stats,
		CreatedAt:      ds.LoadedAt,
	})
}

func (s *Service) recordFailure(name, source string, err error) {
	errorType := ClassifyLoadError(err)
	slog.Warn("数据集加载失败", "name", name, "source", source, "error_type", errorType, "error", err)

	s.saveLoad(models.DatasetLoad{
		ID:           uuid.New().String(),
		Name:         name,
		Source:       source,
		Status:       models.LoadStatusFailed,
		ErrorType:    errorType,
		ErrorMessage: err.Error(),
		Stats:        models.JSONB{},
		CreatedAt:    time.Now(),
	})
	if s.metrics != nil {
		s.metrics.ObserveLoadFailure(errorType)
	}
	if s.events != nil {
		s.events.Publish(models.EventLoadFailed, map[string]interface{}{
			"name":       name,
			"error_type": errorType,
			"error":      err.Error(),
		})
	}
}

func (s *Service) saveLoad(load models.DatasetLoad) {
	if s.db != nil {
		if err := s.db.Create(&load).Error; err != nil {
			slog.Error("保存加载记录失败", "dataset_id", load.ID, "error", err)
		}
		return
	}
	s.histMutex.Lock()
	defer s.histMutex.Unlock()
	s.history = append(s.history, load)
	if len(s.history) > memoryHistoryLimit {
		s.history = s.history[len(s.history)-memoryHistoryLimit:]
	}
}

// ClassifyLoadError 加载错误分类
func ClassifyLoadError(err error) string {
	var emptyErr *ingestion.EmptyInputError
	var schemaErr *ingestion.SchemaError
	var noValidErr *ingestion.NoValidRecordsError
	switch {
	case errors.As(err, &emptyErr):
		return ErrorTypeEmptyInput
	case errors.As(err, &schemaErr):
		return ErrorTypeSchema
	case errors.As(err, &noValidErr):
		return ErrorTypeNoValidRecords
	default:
		return ErrorTypeSource
	}
}

// reportCacheKey 报告缓存键
func reportCacheKey(datasetID string, dim disparity.Dimension, filter disparity.FilterSpec, t disparity.Thresholds) string {
	data, _ := json.Marshal(t)
	sum := blake2b.Sum256(data)
	return fmt.Sprintf("report:%s:%s:%s:%s", datasetID, dim, filter.Key(), hex.EncodeToString(sum[:8]))
}

func toJSONB(v interface{}) (models.JSONB, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return models.JSONB{}, err
	}
	var out models.JSONB
	if err := json.Unmarshal(data, &out); err != nil {
		return models.JSONB{}, err
	}
	return out, nil
}
