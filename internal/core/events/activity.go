package events

import (
	"context"
	"log/slog"
)

// SubscribeActivityLog writes one structured log line per domain event.
func SubscribeActivityLog(bus *EventBus, logger *slog.Logger) {
	activity := logger.With("component", "activity")
	handler := func(ctx context.Context, event Event) error {
		attrs := []any{
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"occurred_at", event.OccurredAt(),
		}
		if data, ok := event.Payload().(map[string]interface{}); ok {
			for k, v := range data {
				attrs = append(attrs, k, v)
			}
		}
		activity.InfoContext(ctx, "activity", attrs...)
		return nil
	}
	for _, t := range AllTypes {
		bus.Subscribe(t, handler)
	}
}
