/**
 * @module SchedulerService
 * @description 审计调度器服务，按 Cron 表达式定时对当前数据集重新执行全量审计
 * @architecture 基于 robfig/cron 的调度器模式
 * @stateFlow Start -> 定时触发 -> Auditor.ReAudit -> 记录结果
 * @rules 同一时刻只运行一次审计，上一轮未完成时跳过本轮；配置分布式锁时多实例间也只运行一次
 * @dependencies github.com/robfig/cron/v3
 * @refs ../audit/service.go
 */

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultAuditCron 默认每小时执行一次
const DefaultAuditCron = "0 0 * * * *"

// auditLockKey 定时审计的锁名
const auditLockKey = "reaudit"

// Auditor 可被调度的审计任务
type Auditor interface {
	ReAudit(ctx context.Context) error
}

// RunRecord 最近一次执行记录
type RunRecord struct {
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	Skipped    bool          `json:"skipped"`
	Remote     bool          `json:"remote"` // 由其他实例执行
	TotalRuns  int64         `json:"total_runs"`
	FailedRuns int64         `json:"failed_runs"`
}

// SchedulerService 调度器服务
type SchedulerService struct {
	auditor  Auditor
	lock     DistributedLock
	lockTTL  time.Duration
	cron     *cron.Cron
	spec     string
	entryID  cron.EntryID
	running  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.RWMutex
	lastRun  RunRecord
	total    int64
	failures int64
}

// NewSchedulerService 创建调度器服务，spec 为带秒字段的 Cron 表达式
func NewSchedulerService(auditor Auditor, spec string) *SchedulerService {
	ctx, cancel := context.WithCancel(context.Background())
	if spec == "" {
		spec = DefaultAuditCron
	}
	return &SchedulerService{
		auditor: auditor,
		cron:    cron.New(cron.WithSeconds()),
		spec:    spec,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetLock 设置分布式锁，ttl 应大于单次审计耗时
func (s *SchedulerService) SetLock(lock DistributedLock, ttl time.Duration) {
	s.lock = lock
	s.lockTTL = ttl
}

// Start 启动调度器
func (s *SchedulerService) Start() error {
	id, err := s.cron.AddFunc(s.spec, func() { s.RunOnce() })
	if err != nil {
		return fmt.Errorf("无效的审计Cron表达式 %q: %w", s.spec, err)
	}
	s.entryID = id
	s.cron.Start()
	slog.Info("审计调度器已启动", "cron", s.spec)
	return nil
}

// Stop 停止调度器并等待正在执行的任务结束
func (s *SchedulerService) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	slog.Info("审计调度器已停止")
}

// NextRun 下次执行时间，未启动时为零值
func (s *SchedulerService) NextRun() time.Time {
	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// LastRun 最近一次执行记录
func (s *SchedulerService) LastRun() RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// RunOnce 立即执行一次审计，已有审计在运行时跳过
func (s *SchedulerService) RunOnce() error {
	if !s.running.CompareAndSwap(false, true) {
		slog.Warn("上一轮审计仍在执行，跳过本轮")
		s.mu.Lock()
		s.lastRun.Skipped = true
		s.mu.Unlock()
		return nil
	}
	defer s.running.Store(false)

	if s.lock != nil {
		locked, err := s.lock.TryLock(s.ctx, auditLockKey, s.lockTTL)
		if err != nil {
			slog.Warn("获取审计锁失败，本实例直接执行", "error", err)
		} else if !locked {
			slog.Debug("审计锁已被其他实例持有，跳过本轮")
			s.mu.Lock()
			s.lastRun.Remote = true
			s.mu.Unlock()
			return nil
		} else {
			defer func() {
				if err := s.lock.Unlock(context.Background(), auditLockKey); err != nil {
					slog.Error("释放审计锁失败", "error", err)
				}
			}()
		}
	}

	started := time.Now()
	err := s.auditor.ReAudit(s.ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	record := RunRecord{StartedAt: started, Duration: time.Since(started)}
	if err != nil {
		s.failures++
		record.Error = err.Error()
		slog.Error("定时审计失败", "error", err)
	} else {
		slog.Info("定时审计完成", "duration", record.Duration)
	}
	record.TotalRuns = s.total
	record.FailedRuns = s.failures
	s.lastRun = record
	return err
}
