package alerting

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fairness-audit-service/service/disparity"
	"fairness-audit-service/testutil"
)

// MockNotificationSender Mock通知渠道
type MockNotificationSender struct {
	mock.Mock
	channel string
}

func (m *MockNotificationSender) Send(ctx context.Context, alert *Alert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *MockNotificationSender) GetChannelType() string { return m.channel }

func (m *MockNotificationSender) IsEnabled() bool { return true }

func (m *MockNotificationSender) Configure(config map[string]interface{}) error { return nil }

func sentencingFinding() Finding {
	return Evaluate(&disparity.Metrics{
		Dimension:  disparity.DimensionRace,
		Sentencing: disparity.RatioMeasure{Ratio: 4, MaxGroup: "Black", MinGroup: "White", Flagged: true},
	}, disparity.DefaultThresholds())[0]
}

func TestAlertManager_DispatchAndSuppress(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()

	manager := NewAlertManager(tdb.DB)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return now }

	sender := &MockNotificationSender{channel: "mock"}
	sender.On("Send", mock.Anything, mock.AnythingOfType("*alerting.Alert")).Return(nil)
	manager.RegisterChannel(sender)

	findings := []Finding{sentencingFinding()}

	fired, err := manager.Dispatch(context.Background(), "ds-1", "all", findings)
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, 1, fired[0].SendCount)
	assert.Equal(t, StatusFiring, fired[0].Status)

	// 重复间隔内再次触发被抑制
	now = now.Add(5 * time.Minute)
	fired, err = manager.Dispatch(context.Background(), "ds-1", "all", findings)
	require.NoError(t, err)
	assert.Empty(t, fired)

	// 其他数据集不受影响
	fired, err = manager.Dispatch(context.Background(), "ds-2", "all", findings)
	require.NoError(t, err)
	assert.Len(t, fired, 1)

	// 超过重复间隔后再次通知
	now = now.Add(20 * time.Minute)
	fired, err = manager.Dispatch(context.Background(), "ds-1", "all", findings)
	require.NoError(t, err)
	assert.Len(t, fired, 1)

	sender.AssertNumberOfCalls(t, "Send", 3)

	history, err := manager.GetAlertHistory("ds-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "sentencing", history[0].Rule)
	assert.Equal(t, []string{"Black", "White"}, []string(history[0].Groups))
}

func TestAlertManager_ChannelFailureDoesNotBlockOthers(t *testing.T) {
	manager := NewAlertManager(nil)

	failing := &MockNotificationSender{channel: "a_failing"}
	failing.On("Send", mock.Anything, mock.Anything).Return(errors.New("boom"))
	working := &MockNotificationSender{channel: "b_working"}
	working.On("Send", mock.Anything, mock.Anything).Return(nil)
	manager.RegisterChannel(failing)
	manager.RegisterChannel(working)

	fired, err := manager.Dispatch(context.Background(), "ds-1", "", []Finding{sentencingFinding()})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "a_failing")
	require.Len(t, fired, 1)
	assert.Equal(t, 1, fired[0].SendCount)
	working.AssertExpectations(t)

	history, err := manager.GetAlertHistory("", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestAlertManager_FailedSendIsRetried(t *testing.T) {
	manager := NewAlertManager(nil)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return now }

	sender := &MockNotificationSender{channel: "webhook"}
	sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("webhook down")).Once()
	sender.On("Send", mock.Anything, mock.Anything).Return(nil)
	manager.RegisterChannel(sender)

	findings := []Finding{sentencingFinding()}

	fired, err := manager.Dispatch(context.Background(), "ds-1", "", findings)
	require.Error(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, StatusFailed, fired[0].Status)
	assert.Equal(t, 0, fired[0].SendCount)

	// 重复间隔内仍会重试发送失败的告警
	now = now.Add(time.Minute)
	fired, err = manager.Dispatch(context.Background(), "ds-1", "", findings)
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, StatusFiring, fired[0].Status)
	assert.Equal(t, 1, fired[0].SendCount)

	// 成功后进入抑制
	now = now.Add(time.Minute)
	fired, err = manager.Dispatch(context.Background(), "ds-1", "", findings)
	require.NoError(t, err)
	assert.Empty(t, fired)
	sender.AssertNumberOfCalls(t, "Send", 2)

	history, err := manager.GetAlertHistory("ds-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, StatusFiring, history[0].Status)
	assert.Equal(t, StatusFailed, history[1].Status)
}

func TestAlertManager_NoEnabledChannelsStillSuppresses(t *testing.T) {
	manager := NewAlertManager(nil)
	manager.RegisterChannel(NewKafkaNotificationChannel(nil))

	findings := []Finding{sentencingFinding()}
	fired, err := manager.Dispatch(context.Background(), "ds-1", "", findings)
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, StatusFiring, fired[0].Status)

	fired, err = manager.Dispatch(context.Background(), "ds-1", "", findings)
	require.NoError(t, err)
	assert.Empty(t, fired)
}

func TestAlertManager_ConfigureChannelDuringDispatch(t *testing.T) {
	manager := NewAlertManager(nil)
	publisher := &recordingPublisher{}
	manager.RegisterChannel(NewMQTTNotificationChannel(publisher, ""))
	manager.RegisterChannel(NewWebhookNotificationChannel(""))
	findings := []Finding{sentencingFinding()}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = manager.ConfigureChannel("mqtt", map[string]interface{}{
				"topic_prefix": "audit/findings",
				"is_enabled":   i%2 == 0,
			})
			_ = manager.ConfigureChannel("webhook", map[string]interface{}{"method": "PUT"})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			manager.Reset()
			_, _ = manager.Dispatch(context.Background(), "ds-1", "", findings)
			_ = manager.GetChannels()
		}
	}()
	wg.Wait()

	require.NoError(t, manager.ConfigureChannel("mqtt", map[string]interface{}{"is_enabled": true}))
	assert.True(t, manager.GetChannels()["mqtt"])
	assert.False(t, manager.GetChannels()["webhook"])
}

func TestAlertManager_EmptyFindings(t *testing.T) {
	manager := NewAlertManager(nil)
	fired, err := manager.Dispatch(context.Background(), "ds-1", "", nil)
	assert.NoError(t, err)
	assert.Empty(t, fired)
}

func TestWebhookNotificationChannel(t *testing.T) {
	var received string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Get("X-Token")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	channel := NewWebhookNotificationChannel("")
	assert.False(t, channel.IsEnabled())
	require.NoError(t, channel.Configure(map[string]interface{}{
		"url":        server.URL,
		"headers":    map[string]interface{}{"X-Token": "secret"},
		"timeout":    "2s",
		"is_enabled": "true",
	}))
	assert.Equal(t, 2*time.Second, channel.Timeout)

	alert := &Alert{Finding: sentencingFinding(), DatasetID: "ds-1"}
	require.NoError(t, channel.Send(context.Background(), alert))
	assert.Equal(t, "secret", received)

	assert.Error(t, channel.Configure(map[string]interface{}{"url": ""}))
	assert.Equal(t, server.URL, channel.URL)
	assert.True(t, channel.IsEnabled())
}

type recordingPublisher struct {
	topics []string
}

func (p *recordingPublisher) Publish(topic string, payload interface{}) error {
	p.topics = append(p.topics, topic)
	return nil
}

func TestMQTTNotificationChannel_Topic(t *testing.T) {
	publisher := &recordingPublisher{}
	channel := NewMQTTNotificationChannel(publisher, "")

	require.NoError(t, channel.Send(context.Background(), &Alert{Finding: sentencingFinding()}))
	assert.Equal(t, []string{"fairness/findings/sentencing"}, publisher.topics)

	require.NoError(t, channel.Configure(map[string]interface{}{"is_enabled": false}))
	assert.Error(t, channel.Send(context.Background(), &Alert{Finding: sentencingFinding()}))
}

func TestDisabledChannelsWithoutClients(t *testing.T) {
	assert.False(t, NewKafkaNotificationChannel(nil).IsEnabled())
	assert.False(t, NewRedisNotificationChannel(nil, "").IsEnabled())
}
