package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/alfredjeanlab/cadence/internal/ical"
	"github.com/alfredjeanlab/cadence/internal/model"
	"github.com/alfredjeanlab/cadence/internal/recurrence"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// handleCreateOccurrence handles POST /events.
func (s *Server) handleCreateOccurrence(w http.ResponseWriter, r *http.Request) {
	var in OccurrenceInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, inputError("invalid JSON body"))
		return
	}
	o, err := s.CreateOccurrence(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o.View(s.clock.Now()))
}

// handleListOccurrences handles GET /events.
func (s *Server) handleListOccurrences(w http.ResponseWriter, r *http.Request) {
	filter, err := parseOccurrenceFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	occurrences, err := s.store.ListOccurrences(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	now := s.clock.Now()
	views := make([]model.OccurrenceView, 0, len(occurrences))
	for _, o := range occurrences {
		views = append(views, o.View(now))
	}
	writeJSON(w, http.StatusOK, views)
}

func parseOccurrenceFilter(r *http.Request) (model.OccurrenceFilter, error) {
	q := r.URL.Query()
	filter := model.OccurrenceFilter{
		Series: q.Get("series"),
		Limit:  defaultListLimit,
	}
	if v := q.Get("is_active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, inputError("is_active must be a boolean")
		}
		filter.IsActive = &b
	}
	if v := q.Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, inputError("skip must be a non-negative integer")
		}
		filter.Offset = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return filter, inputError("limit must be a positive integer")
		}
		filter.Limit = min(n, maxListLimit)
	}
	return filter, nil
}

// handleGetOccurrence handles GET /events/{id}.
func (s *Server) handleGetOccurrence(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	o, err := s.store.GetOccurrence(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if o == nil {
		writeError(w, fmt.Errorf("occurrence %s: %w", id, model.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, o.View(s.clock.Now()))
}

// handleListActivity handles GET /events/{id}/activity.
func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := s.store.ListActivity(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if activity == nil {
		activity = []*model.Activity{}
	}
	writeJSON(w, http.StatusOK, activity)
}

// handleCalendar handles GET /events/calendar.ics. Only active occurrences
// are listed.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	active := true
	occurrences, err := s.store.ListOccurrences(r.Context(), model.OccurrenceFilter{
		IsActive: &active,
		Series:   r.URL.Query().Get("series"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", ical.ContentType)
	w.WriteHeader(http.StatusOK)
	if err := ical.Write(w, s.calendarName, occurrences, s.clock.Now()); err != nil {
		s.logger.Warn("write calendar", "error", err)
	}
}

// generateResponse is the body returned by POST /events/generate.
type generateResponse struct {
	Created         int                    `json:"created"`
	SkippedExisting int                    `json:"skipped_existing"`
	NotDue          int                    `json:"not_due"`
	Failed          int                    `json:"failed"`
	DurationMS      int64                  `json:"duration_ms"`
	Occurrences     []model.OccurrenceView `json:"occurrences"`
}

// handleGenerate handles POST /events/generate, running one pass now.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		writeErrorStatus(w, http.StatusNotImplemented, model.KindInternal, "generation is not configured")
		return
	}
	res, err := s.generator.Run(r.Context(), recurrence.TriggerManual)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newGenerateResponse(res, s.clock.Now()))
}

func newGenerateResponse(res *recurrence.Result, now time.Time) generateResponse {
	out := generateResponse{
		Created:         len(res.Created),
		SkippedExisting: res.SkippedExisting,
		NotDue:          res.NotDue,
		Failed:          res.Failed,
		DurationMS:      res.Duration.Milliseconds(),
		Occurrences:     make([]model.OccurrenceView, 0, len(res.Created)),
	}
	for _, o := range res.Created {
		out.Occurrences = append(out.Occurrences, o.View(now))
	}
	return out
}
