// Package registration implements attendee sign-up and cancellation.
package registration

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/cadence/internal/clock"
	"github.com/alfredjeanlab/cadence/internal/events"
	"github.com/alfredjeanlab/cadence/internal/identity"
	"github.com/alfredjeanlab/cadence/internal/model"
	"github.com/alfredjeanlab/cadence/internal/store"
)

// RolePolicy decides how an empty allowed-roles list is treated.
type RolePolicy string

const (
	// RolePolicyPermissive lets callers with no allowed roles register under
	// any role. Callers that do carry allowed roles are still checked.
	RolePolicyPermissive RolePolicy = "permissive"
	// RolePolicyStrict requires the requested role to be in the allowed
	// roles; an empty list forbids every role.
	RolePolicyStrict RolePolicy = "strict"
)

// ParseRolePolicy parses a policy name. The empty string is permissive.
func ParseRolePolicy(s string) (RolePolicy, error) {
	switch RolePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", RolePolicyPermissive:
		return RolePolicyPermissive, nil
	case RolePolicyStrict:
		return RolePolicyStrict, nil
	}
	return "", fmt.Errorf("unknown role policy %q (want permissive or strict)", s)
}

// Permits reports whether id may register under role.
func (p RolePolicy) Permits(id identity.Identity, role string) bool {
	if len(id.AllowedRoles) == 0 {
		return p != RolePolicyStrict
	}
	return id.Allows(role)
}

// Service registers and cancels attendees.
type Service struct {
	store    store.Store
	clock    clock.Clock
	policy   RolePolicy
	recorder *events.Recorder
	logger   *slog.Logger
}

// NewService returns a registration Service.
func NewService(s store.Store, c clock.Clock, policy RolePolicy, rec *events.Recorder, logger *slog.Logger) *Service {
	if policy == "" {
		policy = RolePolicyPermissive
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, clock: c, policy: policy, recorder: rec, logger: logger}
}

// Register signs the caller up for eventID under role. Checks run in order:
// the occurrence exists, is active, its deadline has not passed, the role is
// permitted, and the caller is not already registered.
func (s *Service) Register(ctx context.Context, id identity.Identity, eventID, role string) (*model.Registration, error) {
	role = strings.TrimSpace(role)
	if role == "" {
		return nil, model.NewValidationError("role", "is required")
	}

	o, err := s.store.GetOccurrence(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("get occurrence %s: %w", eventID, err)
	}
	if o == nil {
		return nil, fmt.Errorf("occurrence %s: %w", eventID, model.ErrNotFound)
	}
	if !o.IsActive {
		return nil, fmt.Errorf("occurrence %s is inactive: %w", eventID, model.ErrInvalidState)
	}
	if s.clock.Now().After(o.RegistrationDeadline) {
		return nil, fmt.Errorf("occurrence %s closed at %s: %w", eventID, o.RegistrationDeadline.Format("2006-01-02T15:04:05Z07:00"), model.ErrExpired)
	}
	if !s.policy.Permits(id, role) {
		return nil, fmt.Errorf("no %q profile: %w", role, model.ErrForbidden)
	}

	r := &model.Registration{
		EventID:      eventID,
		UserID:       id.UserID,
		Role:         role,
		Status:       model.RegistrationRegistered,
		RegisteredAt: s.clock.Now(),
	}
	if err := s.store.CreateRegistration(ctx, r); err != nil {
		return nil, err
	}

	s.logger.Info("registered", "event_id", eventID, "user_id", id.UserID, "role", role)
	if s.recorder != nil {
		s.recorder.Emit(ctx, events.TopicRegistrationCreated, eventID, actor(id), events.RegistrationCreated{Registration: r})
	}
	return r, nil
}

// Cancel removes the caller's registration for eventID.
func (s *Service) Cancel(ctx context.Context, id identity.Identity, eventID string) error {
	ok, err := s.store.DeleteRegistration(ctx, eventID, id.UserID)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if !ok {
		return fmt.Errorf("registration for user %d on %s: %w", id.UserID, eventID, model.ErrNotFound)
	}

	s.logger.Info("registration cancelled", "event_id", eventID, "user_id", id.UserID)
	if s.recorder != nil {
		s.recorder.Emit(ctx, events.TopicRegistrationCancelled, eventID, actor(id), events.RegistrationCancelled{
			EventID: eventID,
			UserID:  id.UserID,
		})
	}
	return nil
}

// ListParticipants returns the active registrations for eventID.
func (s *Service) ListParticipants(ctx context.Context, eventID string) ([]*model.Registration, error) {
	o, err := s.store.GetOccurrence(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("get occurrence %s: %w", eventID, err)
	}
	if o == nil {
		return nil, fmt.Errorf("occurrence %s: %w", eventID, model.ErrNotFound)
	}
	return s.store.ListRegistrations(ctx, eventID, model.RegistrationRegistered)
}

func actor(id identity.Identity) string {
	return strconv.FormatInt(id.UserID, 10)
}
