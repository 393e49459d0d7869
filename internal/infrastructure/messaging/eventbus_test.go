package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certlab/cert-prep-hub/internal/domain/shared"
	"github.com/certlab/cert-prep-hub/pkg/logger"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []shared.Event
	fail   error
	delay  time.Duration
}

func (h *recordingHandler) Handle(_ context.Context, event shared.Event) error {
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.fail
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func newSyncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode: false,
		Logger:    logger.New(logger.Options{Level: logger.LevelError}),
	})
}

func TestInMemoryEventBus_RoutesByType(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	levelUps := &recordingHandler{}
	unlocks := &recordingHandler{}
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, levelUps))
	require.NoError(t, bus.Subscribe(shared.EventAchievementUnlocked, unlocks))

	event := shared.NewLevelUpEvent("user-1", 1, 2)
	require.NoError(t, bus.Publish(event))

	assert.Equal(t, 1, levelUps.count())
	assert.Equal(t, 0, unlocks.count())
	assert.Equal(t, shared.EventLevelUp, levelUps.events[0].EventType())
}

func TestInMemoryEventBus_SubscribeAllSeesEverything(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	all := &recordingHandler{}
	require.NoError(t, bus.SubscribeAll(all))

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("user-1", 1, 2)))
	require.NoError(t, bus.Publish(shared.NewXPGainedEvent("user-1", 30, 150, "attempt")))

	assert.Equal(t, 2, all.count())
}

func TestInMemoryEventBus_HandlerErrorDoesNotPropagate(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	failing := &recordingHandler{fail: assert.AnError}
	require.NoError(t, bus.SubscribeAll(failing))

	err := bus.Publish(shared.NewXPGainedEvent("user-1", 30, 150, "attempt"))

	assert.NoError(t, err)
	assert.Equal(t, 1, failing.count())
}

func TestInMemoryEventBus_AsyncDeliversAllBeforeClose(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 2,
		Logger:         logger.New(logger.Options{Level: logger.LevelError}),
	})

	// A slow handler keeps most of the published events queued behind the
	// two worker slots when Close is called. Every accepted event must
	// still be delivered before Close returns.
	all := &recordingHandler{delay: 5 * time.Millisecond}
	require.NoError(t, bus.SubscribeAll(all))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(shared.NewXPGainedEvent("user-1", 10, 10*(i+1), "attempt")))
	}

	// Close waits for in-flight handlers.
	require.NoError(t, bus.Close())
	assert.Equal(t, 10, all.count())
}

func TestInMemoryEventBus_ClosedBusRejectsPublish(t *testing.T) {
	bus := newSyncBus()
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewXPGainedEvent("user-1", 30, 150, "attempt"))

	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestInMemoryEventBus_NilChecks(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	assert.ErrorIs(t, bus.Subscribe(shared.EventLevelUp, nil), ErrNilHandler)
	assert.ErrorIs(t, bus.SubscribeAll(nil), ErrNilHandler)
	assert.ErrorIs(t, bus.Publish(nil), ErrNilEvent)
}

func TestMilestoneListener_FiltersEventTypes(t *testing.T) {
	var notified []shared.EventType
	listener := NewMilestoneListener(
		logger.New(logger.Options{Level: logger.LevelError}),
		func(_ context.Context, event shared.Event) error {
			notified = append(notified, event.EventType())
			return nil
		},
	)

	require.NoError(t, listener.Handle(context.Background(), shared.NewLevelUpEvent("user-1", 1, 2)))
	require.NoError(t, listener.Handle(context.Background(), shared.NewXPGainedEvent("user-1", 30, 150, "attempt")))

	assert.Equal(t, []shared.EventType{shared.EventLevelUp}, notified)
}
