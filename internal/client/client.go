// Package client provides a transport-agnostic interface for the cadence
// service and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"

	"github.com/alfredjeanlab/cadence/internal/model"
)

// Client is the interface the cadence CLI uses to talk to the server.
type Client interface {
	// Occurrences
	CreateOccurrence(ctx context.Context, req *CreateOccurrenceRequest) (*model.OccurrenceView, error)
	GetOccurrence(ctx context.Context, id string) (*model.OccurrenceView, error)
	ListOccurrences(ctx context.Context, req *ListOccurrencesRequest) ([]*model.OccurrenceView, error)
	Generate(ctx context.Context) (*GenerateResponse, error)
	Activity(ctx context.Context, eventID string) ([]*model.Activity, error)

	// Registrations
	Register(ctx context.Context, eventID, role string) (*model.Registration, error)
	Cancel(ctx context.Context, eventID string) error
	Participants(ctx context.Context, eventID string) ([]*model.Registration, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// CreateOccurrenceRequest holds parameters for creating an occurrence. Dates
// are RFC 3339 timestamps or YYYY-MM-DD.
type CreateOccurrenceRequest struct {
	Title                string `json:"title"`
	Theme                string `json:"theme"`
	Description          string `json:"description,omitempty"`
	StartDate            string `json:"start_date"`
	EndDate              string `json:"end_date"`
	RegistrationDeadline string `json:"registration_deadline"`
	IsActive             *bool  `json:"is_active,omitempty"`
}

// ListOccurrencesRequest holds parameters for listing occurrences.
type ListOccurrencesRequest struct {
	IsActive *bool
	Series   string
	Skip     int
	Limit    int
}

// GenerateResponse is the summary of a manual generation pass.
type GenerateResponse struct {
	Created         int                     `json:"created"`
	SkippedExisting int                     `json:"skipped_existing"`
	NotDue          int                     `json:"not_due"`
	Failed          int                     `json:"failed"`
	DurationMS      int64                   `json:"duration_ms"`
	Occurrences     []*model.OccurrenceView `json:"occurrences"`
}
