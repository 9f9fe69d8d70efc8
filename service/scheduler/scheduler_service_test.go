package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAuditor Mock审计任务
type MockAuditor struct {
	mock.Mock
}

func (m *MockAuditor) ReAudit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestSchedulerService_RunOnce(t *testing.T) {
	auditor := &MockAuditor{}
	auditor.On("ReAudit", mock.Anything).Return(nil).Once()
	auditor.On("ReAudit", mock.Anything).Return(errors.New("no dataset")).Once()

	s := NewSchedulerService(auditor, "")

	require.NoError(t, s.RunOnce())
	assert.Empty(t, s.LastRun().Error)

	assert.Error(t, s.RunOnce())
	last := s.LastRun()
	assert.Equal(t, "no dataset", last.Error)
	assert.Equal(t, int64(2), last.TotalRuns)
	assert.Equal(t, int64(1), last.FailedRuns)

	auditor.AssertExpectations(t)
}

func TestSchedulerService_SkipsWhileRunning(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	auditor := &MockAuditor{}
	auditor.On("ReAudit", mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(nil).Once()

	s := NewSchedulerService(auditor, "")
	done := make(chan error)
	go func() { done <- s.RunOnce() }()

	<-started
	assert.NoError(t, s.RunOnce())
	assert.True(t, s.LastRun().Skipped)

	close(release)
	require.NoError(t, <-done)
	auditor.AssertNumberOfCalls(t, "ReAudit", 1)
}

func TestSchedulerService_StartStop(t *testing.T) {
	s := NewSchedulerService(&MockAuditor{}, "")
	assert.True(t, s.NextRun().IsZero())

	require.NoError(t, s.Start())
	assert.True(t, s.NextRun().After(time.Now()))
	s.Stop()

	bad := NewSchedulerService(&MockAuditor{}, "not a cron")
	assert.Error(t, bad.Start())
}

// MockLock Mock分布式锁
type MockLock struct {
	mock.Mock
}

func (m *MockLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockLock) Unlock(ctx context.Context, key string) error {
	return m.Called(key).Error(0)
}

func TestSchedulerService_DistributedLock(t *testing.T) {
	tests := []struct {
		name       string
		locked     bool
		lockErr    error
		wantAudit  bool
		wantUnlock bool
		wantRemote bool
	}{
		{"获取到锁", true, nil, true, true, false},
		{"其他实例持有锁", false, nil, false, false, true},
		{"锁服务不可用", false, errors.New("redis down"), true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor := &MockAuditor{}
			if tt.wantAudit {
				auditor.On("ReAudit", mock.Anything).Return(nil).Once()
			}
			lock := &MockLock{}
			lock.On("TryLock", auditLockKey, time.Minute).Return(tt.locked, tt.lockErr).Once()
			if tt.wantUnlock {
				lock.On("Unlock", auditLockKey).Return(nil).Once()
			}

			s := NewSchedulerService(auditor, "")
			s.SetLock(lock, time.Minute)
			require.NoError(t, s.RunOnce())
			assert.Equal(t, tt.wantRemote, s.LastRun().Remote)

			auditor.AssertExpectations(t)
			lock.AssertExpectations(t)
		})
	}
}
