package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairness-audit-service/service/disparity"
	"fairness-audit-service/service/models"
	"fairness-audit-service/testutil"
)

func mapEnv(values map[string]string) Option {
	return WithLookupEnv(func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	})
}

func TestThresholdManager_Defaults(t *testing.T) {
	m := NewThresholdManager(nil, mapEnv(nil))
	require.NoError(t, m.Load())
	assert.Equal(t, disparity.DefaultThresholds(), m.Get())
}

func TestThresholdManager_LoadOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thresholds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sentencing_ratio: 2\nduration_spread_days: 90\n"), 0o600))

	m := NewThresholdManager(nil, WithFile(path), mapEnv(map[string]string{
		"THRESHOLD_DURATION_SPREAD_DAYS": "45",
	}))
	require.NoError(t, m.Load())

	got := m.Get()
	assert.Equal(t, 2.0, got.SentencingRatio)
	assert.Equal(t, 45.0, got.DurationSpreadDays)
	assert.Equal(t, 15.0, got.DispositionSpreadPP)
}

func TestThresholdManager_DatabaseOverridesEnv(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()

	factory := testutil.NewTestDataFactory(tdb.DB)
	record := factory.CreateSystemConfig(models.ThresholdConfigKey,
		`{"representation_min_pct":5,"representation_max_pct":70,"disposition_spread_pp":10,"sentencing_ratio":1.2,"duration_spread_days":30}`)
	record.Environment = "default"
	require.NoError(t, tdb.DB.Save(record).Error)

	m := NewThresholdManager(tdb.DB, mapEnv(map[string]string{"THRESHOLD_SENTENCING_RATIO": "3"}))
	require.NoError(t, m.Load())

	assert.Equal(t, 1.2, m.Get().SentencingRatio)
	assert.Equal(t, 70.0, m.Get().RepresentationMaxPct)
}

func TestThresholdManager_InvalidSources(t *testing.T) {
	m := NewThresholdManager(nil, mapEnv(map[string]string{"THRESHOLD_SENTENCING_RATIO": "abc"}))
	assert.Error(t, m.Load())

	m = NewThresholdManager(nil, mapEnv(map[string]string{"THRESHOLD_SENTENCING_RATIO": "0.5"}))
	assert.Error(t, m.Load())

	m = NewThresholdManager(nil, WithFile(filepath.Join(t.TempDir(), "missing.yaml")), mapEnv(nil))
	assert.Error(t, m.Load())
}

func TestThresholdManager_UpdatePersistsAndNotifies(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()

	m := NewThresholdManager(tdb.DB, mapEnv(nil))
	require.NoError(t, m.Load())

	var notified []ConfigChange
	m.AddChangeNotifier(ThresholdChangeFunc(func(_, _ disparity.Thresholds, changes []ConfigChange) {
		notified = changes
	}))

	updated, err := m.Update(map[string]interface{}{"sentencing_ratio": "1.8", "duration_spread_days": 90}, "tester")
	require.NoError(t, err)
	assert.Equal(t, 1.8, updated.SentencingRatio)
	assert.Equal(t, 1, m.Version())
	require.Len(t, notified, 2)
	assert.Equal(t, "duration_spread_days", notified[0].Path)
	assert.Equal(t, "sentencing_ratio", notified[1].Path)

	// 新实例从数据库读取到持久化的值
	reloaded := NewThresholdManager(tdb.DB, mapEnv(nil))
	require.NoError(t, reloaded.Load())
	assert.Equal(t, 1.8, reloaded.Get().SentencingRatio)
	assert.Equal(t, 1, reloaded.Version())
}

func TestThresholdManager_RejectsInvalidUpdate(t *testing.T) {
	m := NewThresholdManager(nil, mapEnv(nil))
	require.NoError(t, m.Load())

	tests := []struct {
		name  string
		patch map[string]interface{}
	}{
		{name: "未知字段", patch: map[string]interface{}{"unknown": 1}},
		{name: "非数值", patch: map[string]interface{}{"sentencing_ratio": "high"}},
		{name: "区间颠倒", patch: map[string]interface{}{"representation_min_pct": 80}},
		{name: "比值小于1", patch: map[string]interface{}{"sentencing_ratio": 0.9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Update(tt.patch, "tester")
			assert.Error(t, err)
			assert.Equal(t, disparity.DefaultThresholds(), m.Get())
		})
	}
}

func TestThresholdManager_Rollback(t *testing.T) {
	m := NewThresholdManager(nil, mapEnv(nil))
	require.NoError(t, m.Load())

	_, err := m.Update(map[string]interface{}{"sentencing_ratio": 2}, "tester")
	require.NoError(t, err)
	require.Len(t, m.GetHistory(), 2)

	rolled, err := m.RollbackToVersion(0, "tester")
	require.NoError(t, err)
	assert.Equal(t, 1.5, rolled.SentencingRatio)
	assert.Equal(t, 2, m.Version())

	_, err = m.RollbackToVersion(42, "tester")
	assert.Error(t, err)
}

func TestThresholdManager_ConcurrentPatchesKeepAllFields(t *testing.T) {
	m := NewThresholdManager(nil, mapEnv(nil))
	require.NoError(t, m.Load())

	const rounds = 100
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= rounds; i++ {
			_, err := m.Update(map[string]interface{}{"sentencing_ratio": 1.5 + float64(i)/100}, "a")
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 1; i <= rounds; i++ {
			_, err := m.Update(map[string]interface{}{"duration_spread_days": 60 + i}, "b")
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	got := m.Get()
	assert.InDelta(t, 2.5, got.SentencingRatio, 1e-9)
	assert.Equal(t, 160.0, got.DurationSpreadDays)
	assert.Equal(t, 2*rounds, m.Version())
}

func TestLoadFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"disposition_spread_pp": 20}`), 0o600))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 20.0, got.DispositionSpreadPP)
	assert.Equal(t, 1.5, got.SentencingRatio)

	_, err = LoadFile(filepath.Join(t.TempDir(), "t.toml"))
	assert.Error(t, err)
}
