package events

import (
	"context"
	"time"

	"github.com/alfredjeanlab/cadence/internal/model"
)

// Event topic constants
const (
	TopicOccurrenceCreated     = "cadence.occurrence.created"
	TopicRegistrationCreated   = "cadence.registration.created"
	TopicRegistrationCancelled = "cadence.registration.cancelled"
	TopicGenerationCompleted   = "cadence.generation.completed"

	// TopicAll matches every topic above.
	TopicAll = "cadence.>"
)

// Event types

type OccurrenceCreated struct {
	Occurrence *model.Occurrence `json:"occurrence"`
	// Source is "api" for manual creation or "generator" for recurrence passes.
	Source string `json:"source"`
}

type RegistrationCreated struct {
	Registration *model.Registration `json:"registration"`
}

type RegistrationCancelled struct {
	EventID string `json:"event_id"`
	UserID  int64  `json:"user_id"`
}

type GenerationCompleted struct {
	Created         int           `json:"created"`
	SkippedExisting int           `json:"skipped_existing"`
	NotDue          int           `json:"not_due"`
	Failed          int           `json:"failed"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration_ns"`
	Trigger         string        `json:"trigger"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers events on the returned channel. The returned
	// function unsubscribes and closes the channel.
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}
