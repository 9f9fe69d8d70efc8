/*
 * @module service/cleanup/retention_service
 * @description 历史清理服务，定期删除过期的 SSE 事件、告警发现和数据集加载记录
 * @architecture 分层架构 - 业务服务层
 * @stateFlow 定时触发 -> 计算截止时间 -> 逐表删除 -> 记录结果
 * @rules 保留天数为 0 或负数的表不清理；单表失败不影响其他表
 * @dependencies gorm.io/gorm, github.com/robfig/cron/v3
 * @refs service/models
 */

package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"fairness-audit-service/service/models"
)

// DefaultCleanupCron 每天凌晨2点执行
const DefaultCleanupCron = "0 0 2 * * *"

// RetentionPolicy 各类历史的保留天数
type RetentionPolicy struct {
	EventDays   int `json:"event_days"`
	FindingDays int `json:"finding_days"`
	LoadDays    int `json:"load_days"`
}

// DefaultRetentionPolicy 默认保留策略
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{EventDays: 30, FindingDays: 365, LoadDays: 365}
}

// CleanupResult 一次清理的删除数量
type CleanupResult struct {
	Events   int64 `json:"events"`
	Findings int64 `json:"findings"`
	Loads    int64 `json:"loads"`
}

// Total 删除总数
func (r CleanupResult) Total() int64 {
	return r.Events + r.Findings + r.Loads
}

// RetentionService 历史清理服务
type RetentionService struct {
	db      *gorm.DB
	policy  RetentionPolicy
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	now     func() time.Time
}

// NewRetentionService 创建历史清理服务实例
func NewRetentionService(db *gorm.DB, policy RetentionPolicy) *RetentionService {
	ctx, cancel := context.WithCancel(context.Background())
	return &RetentionService{
		db:     db,
		policy: policy,
		cron:   cron.New(cron.WithSeconds()),
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
	}
}

// CleanupExpired 按保留策略清理所有过期历史
func (s *RetentionService) CleanupExpired(ctx context.Context) (CleanupResult, error) {
	startTime := s.now()
	var result CleanupResult
	var errs []error

	var err error
	if result.Events, err = s.deleteBefore(ctx, &models.SSEEvent{}, "created_at", s.policy.EventDays); err != nil {
		errs = append(errs, err)
	}
	if result.Findings, err = s.deleteBefore(ctx, &models.AuditFinding{}, "triggered_at", s.policy.FindingDays); err != nil {
		errs = append(errs, err)
	}
	if result.Loads, err = s.deleteBefore(ctx, &models.DatasetLoad{}, "created_at", s.policy.LoadDays); err != nil {
		errs = append(errs, err)
	}

	slog.Info("历史清理完成",
		"events_deleted", result.Events,
		"findings_deleted", result.Findings,
		"loads_deleted", result.Loads,
		"duration_ms", time.Since(startTime).Milliseconds())
	return result, errors.Join(errs...)
}

func (s *RetentionService) deleteBefore(ctx context.Context, model interface{}, column string, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := s.now().AddDate(0, 0, -retentionDays)
	res := s.db.WithContext(ctx).Where(column+" < ?", cutoff).Delete(model)
	if res.Error != nil {
		return 0, fmt.Errorf("清理 %T 失败: %w", model, res.Error)
	}
	return res.RowsAffected, nil
}

// Start 启动定时清理
func (s *RetentionService) Start(spec string) error {
	if s.started {
		return fmt.Errorf("历史清理调度器已经启动")
	}
	if spec == "" {
		spec = DefaultCleanupCron
	}
	_, err := s.cron.AddFunc(spec, func() {
		if _, err := s.CleanupExpired(s.ctx); err != nil {
			slog.Error("定时历史清理失败", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("添加定时任务失败: %w", err)
	}
	s.cron.Start()
	s.started = true
	slog.Info("历史清理调度器已启动", "cron", spec, "policy", s.policy)
	return nil
}

// Stop 停止定时清理
func (s *RetentionService) Stop() {
	if !s.started {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.started = false
	slog.Info("历史清理调度器已停止")
}
