package model

import (
	"encoding/json"
	"time"
)

// Activity is a persisted audit record, mirroring what is published to NATS.
type Activity struct {
	ID        int64           `json:"id"`
	Topic     string          `json:"topic"`
	EventID   string          `json:"event_id"`
	Actor     string          `json:"actor,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
