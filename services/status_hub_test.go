package services

import (
	"testing"
	"time"

	"github.com/accessdeploy/dto"
	"github.com/accessdeploy/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusHubDeliversEvents(t *testing.T) {
	hub := NewStatusHub()
	events, cancel := hub.Subscribe("dep-1")
	defer cancel()

	hub.PublishStatus("dep-1", models.DeploymentStatusValidating)

	select {
	case event := <-events:
		assert.Equal(t, "dep-1", event.DeploymentID)
		assert.Equal(t, string(models.DeploymentStatusValidating), event.Status)
		assert.False(t, event.Terminal)
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestStatusHubIsolatesDeployments(t *testing.T) {
	hub := NewStatusHub()
	events, cancel := hub.Subscribe("dep-1")
	defer cancel()

	hub.PublishStatus("dep-2", models.DeploymentStatusDeploying)

	select {
	case event := <-events:
		t.Fatalf("unexpected event for %s", event.DeploymentID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStatusHubClosesOnTerminalEvent(t *testing.T) {
	hub := NewStatusHub()
	events, cancel := hub.Subscribe("dep-1")
	defer cancel()

	hub.PublishStatus("dep-1", models.DeploymentStatusCompleted)

	event, open := <-events
	require.True(t, open)
	assert.True(t, event.Terminal)

	_, open = <-events
	assert.False(t, open, "channel must close after the terminal event")
}

func TestStatusHubLateSubscribeAfterTerminal(t *testing.T) {
	hub := NewStatusHub()
	hub.PublishStatus("dep-1", models.DeploymentStatusFailed)

	events, cancel := hub.Subscribe("dep-1")
	defer cancel()

	_, open := <-events
	assert.False(t, open, "subscribing to a finished deployment yields a closed channel")
}

func TestStatusHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewStatusHub()
	events, cancel := hub.Subscribe("dep-1")
	defer cancel()

	// Never reading must not block the publisher
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			hub.Publish(dto.StatusEvent{DeploymentID: "dep-1", Status: string(models.DeploymentStatusMonitoring)})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
	assert.LessOrEqual(t, len(events), 16)
}

func TestStatusHubPrunesAgedTerminalFlags(t *testing.T) {
	hub := NewStatusHub()
	clock := time.Now()
	hub.now = func() time.Time { return clock }

	hub.PublishStatus("dep-1", models.DeploymentStatusCompleted)
	hub.PublishStatus("dep-2", models.DeploymentStatusFailed)
	assert.Len(t, hub.closed, 2)

	// Once the retention window passes, old flags go with the next close
	clock = clock.Add(closedRetention + time.Minute)
	hub.PublishStatus("dep-3", models.DeploymentStatusCancelled)

	hub.mu.Lock()
	defer hub.mu.Unlock()
	assert.Len(t, hub.closed, 1)
	_, kept := hub.closed["dep-3"]
	assert.True(t, kept)
}

func TestStatusHubCancelStopsDelivery(t *testing.T) {
	hub := NewStatusHub()
	events, cancel := hub.Subscribe("dep-1")

	cancel()
	_, open := <-events
	assert.False(t, open)

	// Cancelling twice and publishing afterwards must both be safe
	cancel()
	hub.PublishStatus("dep-1", models.DeploymentStatusDeploying)
}
