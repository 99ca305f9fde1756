package mqtt

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evreco/core/events"
	coremqtt "github.com/kilianp07/evreco/core/mqtt"
	"github.com/kilianp07/evreco/internal/eventbus"
)

type memPublisher struct {
	mu   sync.Mutex
	msgs []coremqtt.StatusMessage
}

func (m *memPublisher) PublishStatus(msg coremqtt.StatusMessage) error {
	m.mu.Lock()
	m.msgs = append(m.msgs, msg)
	m.mu.Unlock()
	return nil
}

func (m *memPublisher) snapshot() []coremqtt.StatusMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]coremqtt.StatusMessage(nil), m.msgs...)
}

func TestStatusForwarder_ForwardsEvents(t *testing.T) {
	bus := eventbus.NewTyped[events.ModelEvent]()
	pub := &memPublisher{}
	fwd := &StatusForwarder{
		Bus:       bus,
		Publisher: pub,
		Initial:   func() (bool, time.Time, int) { return false, time.Time{}, 0 },
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fwd.Serve(ctx) }()

	require.Eventually(t, func() bool { return len(pub.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	now := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	bus.Publish(events.ModelEvent{Kind: events.TrainingFailed, Reason: "insufficient_data", Time: now})
	bus.Publish(events.ModelEvent{Kind: events.ModelTrained, Samples: 6, TrainedAt: now, Persisted: true, Time: now})
	require.Eventually(t, func() bool { return len(pub.snapshot()) == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	msgs := pub.snapshot()
	assert.Equal(t, "startup", msgs[0].Event)
	assert.False(t, msgs[0].IsTrained)
	assert.False(t, msgs[1].IsTrained)
	assert.Equal(t, "insufficient_data", msgs[1].Reason)
	assert.True(t, msgs[2].IsTrained)
	assert.Equal(t, 6, msgs[2].Samples)
	require.NotNil(t, msgs[2].TrainedAt)
	assert.True(t, msgs[2].TrainedAt.Equal(now))
}

func TestStatusFromEvent(t *testing.T) {
	msg := StatusFromEvent(events.ModelEvent{Kind: events.ModelLoaded, Samples: 3}, true)
	assert.Equal(t, "loaded", msg.Event)
	assert.Nil(t, msg.TrainedAt)
	assert.True(t, msg.IsTrained)
}
