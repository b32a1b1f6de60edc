package store

import (
	"context"
	"time"

	"github.com/alfredjeanlab/cadence/internal/model"
)

// Store defines the persistence interface for occurrences and registrations.
//
// Lookups that find nothing return (nil, nil). Writes that violate a date
// invariant return model.ErrInvariant; writes that collide with a uniqueness
// constraint return model.ErrConflict.
type Store interface {
	// Occurrences
	CreateOccurrence(ctx context.Context, o *model.Occurrence) error
	GetOccurrence(ctx context.Context, id string) (*model.Occurrence, error)
	GetOccurrenceByTitle(ctx context.Context, title string) (*model.Occurrence, error)
	LatestPerSeries(ctx context.Context) (map[string]*model.Occurrence, error)
	ListOccurrences(ctx context.Context, filter model.OccurrenceFilter) ([]*model.Occurrence, error)

	// Registrations
	CreateRegistration(ctx context.Context, r *model.Registration) error
	GetRegistration(ctx context.Context, eventID string, userID int64) (*model.Registration, error)
	DeleteRegistration(ctx context.Context, eventID string, userID int64) (bool, error)
	ListRegistrations(ctx context.Context, eventID string, status model.RegistrationStatus) ([]*model.Registration, error)

	// Activity
	RecordActivity(ctx context.Context, a *model.Activity) error
	ListActivity(ctx context.Context, eventID string) ([]*model.Activity, error)

	// LockGeneration serializes recurrence passes. Inside a transaction the
	// lock is held until commit or rollback.
	LockGeneration(ctx context.Context) error

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// Normalize converts t to UTC truncated to whole seconds, the precision at
// which dates are stored and compared.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
