// Package server exposes occurrences and registrations over HTTP and a gRPC
// health endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/cadence/internal/clock"
	"github.com/alfredjeanlab/cadence/internal/events"
	"github.com/alfredjeanlab/cadence/internal/identity"
	"github.com/alfredjeanlab/cadence/internal/model"
	"github.com/alfredjeanlab/cadence/internal/recurrence"
	"github.com/alfredjeanlab/cadence/internal/registration"
	"github.com/alfredjeanlab/cadence/internal/schedule"
	"github.com/alfredjeanlab/cadence/internal/store"
)

// Options configures a Server. Store, Clock and Registrations are required.
type Options struct {
	Store         store.Store
	Clock         clock.Clock
	Generator     recurrence.Runner
	Registrations *registration.Service
	Recorder      *events.Recorder
	Hub           *Hub
	Logger        *slog.Logger

	// InputLocation interprets plain YYYY-MM-DD dates. Defaults to UTC.
	InputLocation *time.Location
	// AdminToken guards POST /events/generate when non-empty.
	AdminToken string
	// RegisterRPS and RegisterBurst bound registration mutations per user.
	// RegisterRPS <= 0 disables the limit.
	RegisterRPS   float64
	RegisterBurst int
	// CalendarName is the X-WR-CALNAME of the iCalendar feed.
	CalendarName string
}

// Server implements the HTTP API.
type Server struct {
	store         store.Store
	clock         clock.Clock
	generator     recurrence.Runner
	registrations *registration.Service
	recorder      *events.Recorder
	hub           *Hub
	logger        *slog.Logger
	inputLoc      *time.Location
	adminToken    string
	limiter       *userLimiter
	calendarName  string
}

// New returns a Server built from opts.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := opts.InputLocation
	if loc == nil {
		loc = time.UTC
	}
	name := opts.CalendarName
	if name == "" {
		name = "cadence"
	}
	return &Server{
		store:         opts.Store,
		clock:         opts.Clock,
		generator:     opts.Generator,
		registrations: opts.Registrations,
		recorder:      opts.Recorder,
		hub:           opts.Hub,
		logger:        logger,
		inputLoc:      loc,
		adminToken:    opts.AdminToken,
		limiter:       newUserLimiter(opts.RegisterRPS, opts.RegisterBurst),
		calendarName:  name,
	}
}

// inputError indicates invalid user input.
// Transport layers map this to 400.
type inputError string

func (e inputError) Error() string { return string(e) }

// OccurrenceInput is the body of POST /events. Dates are RFC 3339 timestamps
// or plain YYYY-MM-DD dates.
type OccurrenceInput struct {
	Title                string `json:"title"`
	Theme                string `json:"theme"`
	Description          string `json:"description"`
	StartDate            string `json:"start_date"`
	EndDate              string `json:"end_date"`
	RegistrationDeadline string `json:"registration_deadline"`
	IsActive             *bool  `json:"is_active,omitempty"`
}

// CreateOccurrence validates in, rewrites its title to the series period
// form and persists it.
func (s *Server) CreateOccurrence(ctx context.Context, in OccurrenceInput) (*model.Occurrence, error) {
	var ve model.ValidationError
	start := s.parseDateField(&ve, "start_date", in.StartDate)
	end := s.parseDateField(&ve, "end_date", in.EndDate)
	deadline := s.parseDateField(&ve, "registration_deadline", in.RegistrationDeadline)
	if ve.HasErrors() {
		return nil, &ve
	}

	if !deadline.Before(start) {
		return nil, model.NewValidationError("registration_deadline", "must be strictly before start_date")
	}

	base := model.BaseTitle(in.Title)
	o := &model.Occurrence{
		Title:                strings.TrimSpace(in.Title),
		Series:               base,
		Theme:                strings.TrimSpace(in.Theme),
		Description:          in.Description,
		StartDate:            start,
		EndDate:              end,
		RegistrationDeadline: deadline,
		IsActive:             in.IsActive == nil || *in.IsActive,
	}
	if err := model.ValidateOccurrence(o); err != nil {
		return nil, err
	}
	o.Title = schedule.Title(base, start)
	if err := model.ValidateOccurrence(o); err != nil {
		return nil, err
	}

	if err := s.store.CreateOccurrence(ctx, o); err != nil {
		return nil, fmt.Errorf("create occurrence: %w", err)
	}

	s.logger.Info("occurrence created", "id", o.ID, "title", o.Title)
	if s.recorder != nil {
		actor := "api"
		if id, ok := identity.FromContext(ctx); ok {
			actor = strconv.FormatInt(id.UserID, 10)
		}
		s.recorder.Emit(ctx, events.TopicOccurrenceCreated, o.ID, actor, events.OccurrenceCreated{
			Occurrence: o,
			Source:     "api",
		})
	}
	return o, nil
}

func (s *Server) parseDateField(ve *model.ValidationError, field, raw string) time.Time {
	if strings.TrimSpace(raw) == "" {
		ve.Errors = append(ve.Errors, model.FieldError{Field: field, Message: "is required"})
		return time.Time{}
	}
	t, err := ParseDate(raw, s.inputLoc)
	if err != nil {
		ve.Errors = append(ve.Errors, model.FieldError{Field: field, Message: err.Error()})
		return time.Time{}
	}
	return t
}

// ParseDate parses an RFC 3339 timestamp or a plain YYYY-MM-DD date taken as
// midnight in loc. The result is normalized to whole seconds in UTC.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return store.Normalize(t), nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return store.Normalize(t), nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", raw, loc); err == nil {
		return store.Normalize(t), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: want RFC 3339 or YYYY-MM-DD", raw)
}
