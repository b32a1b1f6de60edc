package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/alfredjeanlab/cadence/internal/model"
)

// ActivityStore persists audit records. store.Store satisfies it.
type ActivityStore interface {
	RecordActivity(ctx context.Context, a *model.Activity) error
}

// Recorder persists an activity row for each event and then publishes it.
// Both steps are best effort: failures are logged and never returned, so a
// committed write is not reported as failed because the bus is down.
type Recorder struct {
	store     ActivityStore
	publisher Publisher
	logger    *slog.Logger
}

// NewRecorder returns a Recorder. A nil publisher only records activity and a
// nil logger uses slog.Default().
func NewRecorder(s ActivityStore, p Publisher, logger *slog.Logger) *Recorder {
	if p == nil {
		p = MultiPublisher(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: s, publisher: p, logger: logger}
}

// Emit records and publishes event under topic. eventID is the occurrence
// the event concerns, empty for pass-level events.
func (r *Recorder) Emit(ctx context.Context, topic, eventID, actor string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.Warn("failed to marshal event", "topic", topic, "event_id", eventID, "error", err)
		return
	}
	if r.store != nil {
		if err := r.store.RecordActivity(ctx, &model.Activity{
			Topic:   topic,
			EventID: eventID,
			Actor:   actor,
			Payload: payload,
		}); err != nil {
			r.logger.Warn("failed to record activity", "topic", topic, "event_id", eventID, "error", err)
		}
	}
	if err := r.publisher.Publish(ctx, topic, event); err != nil {
		r.logger.Warn("failed to publish event", "topic", topic, "event_id", eventID, "error", err)
	}
}
