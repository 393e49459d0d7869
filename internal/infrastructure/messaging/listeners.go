package messaging

import (
	"context"

	"github.com/certlab/cert-prep-hub/internal/domain/shared"
	"github.com/certlab/cert-prep-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// BUILT-IN LISTENERS
// ══════════════════════════════════════════════════════════════════════════════

// ActivityLogListener writes every domain event to the structured log.
// It is the default SubscribeAll listener, so progression activity stays
// observable even before external consumers attach.
type ActivityLogListener struct {
	log *logger.Logger
}

// NewActivityLogListener creates a new ActivityLogListener.
func NewActivityLogListener(log *logger.Logger) *ActivityLogListener {
	return &ActivityLogListener{log: log}
}

// Handle implements shared.EventHandler.
func (l *ActivityLogListener) Handle(_ context.Context, event shared.Event) error {
	l.log.Info("domain event",
		logger.String("event_type", string(event.EventType())),
		logger.String("aggregate_id", event.AggregateID()),
		logger.Time("occurred_at", event.OccurredAt()),
		logger.Any("payload", event.Payload()),
	)
	return nil
}

// MilestoneListener reacts to the events external delivery channels care
// about: level-ups and achievement unlocks. The actual delivery transport
// is injected as a callback so this package stays transport-free.
type MilestoneListener struct {
	log    *logger.Logger
	notify func(ctx context.Context, event shared.Event) error
}

// NewMilestoneListener creates a new MilestoneListener. A nil notify
// callback degrades to logging only.
func NewMilestoneListener(log *logger.Logger, notify func(ctx context.Context, event shared.Event) error) *MilestoneListener {
	return &MilestoneListener{log: log, notify: notify}
}

// Handle implements shared.EventHandler.
func (l *MilestoneListener) Handle(ctx context.Context, event shared.Event) error {
	switch event.EventType() {
	case shared.EventLevelUp, shared.EventAchievementUnlocked, shared.EventStreakUpdated:
	default:
		return nil
	}

	l.log.Info("milestone reached",
		logger.String("event_type", string(event.EventType())),
		logger.String("aggregate_id", event.AggregateID()),
	)

	if l.notify == nil {
		return nil
	}
	return l.notify(ctx, event)
}

// Subscriptions attaches the built-in listeners to a bus.
func Subscriptions(bus *InMemoryEventBus, log *logger.Logger, notify func(ctx context.Context, event shared.Event) error) error {
	if err := bus.SubscribeAll(NewActivityLogListener(log)); err != nil {
		return err
	}

	milestones := NewMilestoneListener(log, notify)
	for _, eventType := range []shared.EventType{
		shared.EventLevelUp,
		shared.EventAchievementUnlocked,
		shared.EventStreakUpdated,
	} {
		if err := bus.Subscribe(eventType, milestones); err != nil {
			return err
		}
	}

	return nil
}
