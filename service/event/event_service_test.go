package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairness-audit-service/service/models"
	"fairness-audit-service/testutil"
)

func TestEventService_BroadcastAndPersist(t *testing.T) {
	tdb := testutil.NewTestDB()
	defer tdb.Close()

	svc := NewEventService(tdb.DB)
	defer svc.Stop()

	alice := svc.AddSSEConnection("alice", "c1", "127.0.0.1")
	bob := svc.AddSSEConnection("bob", "c2", "127.0.0.1")

	svc.Publish(models.EventDatasetLoaded, map[string]interface{}{"records": 4})

	got := <-alice.Channel
	assert.Equal(t, models.EventDatasetLoaded, got.EventType)
	assert.Equal(t, "alice", got.UserName)
	got = <-bob.Channel
	assert.Equal(t, "bob", got.UserName)

	events, total, err := svc.GetEventHistoryList(1, 10, models.EventDatasetLoaded)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, events, 1)
	assert.EqualValues(t, 4, events[0].Data["records"])
}

func TestEventService_SendEventToUser(t *testing.T) {
	svc := NewEventService(nil)
	defer svc.Stop()

	err := svc.SendEventToUser("nobody", &models.SSEEvent{EventType: models.EventFinding})
	assert.Error(t, err)

	client := svc.AddSSEConnection("alice", "c1", "")
	require.NoError(t, svc.SendEventToUser("alice", &models.SSEEvent{EventType: models.EventFinding}))
	assert.Len(t, client.Channel, 1)
	assert.Len(t, svc.GetConnections(), 1)

	svc.RemoveSSEConnection("alice", "c1")
	_, open := <-client.Done
	assert.False(t, open)
	assert.Empty(t, svc.GetConnections())

	_, _, err = svc.GetEventHistoryList(1, 10, "")
	assert.Error(t, err)
}

func TestEventService_FullQueueDoesNotBlock(t *testing.T) {
	svc := NewEventService(nil)
	defer svc.Stop()

	client := svc.AddSSEConnection("alice", "c1", "")
	for i := 0; i < clientBufferSize+5; i++ {
		svc.Publish(models.EventFinding, nil)
	}
	assert.Len(t, client.Channel, clientBufferSize)
}
