package model

import (
	"strings"
	"time"
)

// SeriesSeparator splits an occurrence title into its base title and period suffix.
const SeriesSeparator = " - "

// Occurrence is one concrete scheduled instance of a recurring event series.
type Occurrence struct {
	ID                   string    `json:"id"`
	Title                string    `json:"title"`
	Series               string    `json:"series"`
	Theme                string    `json:"theme"`
	Description          string    `json:"description"`
	StartDate            time.Time `json:"start_date"`
	EndDate              time.Time `json:"end_date"`
	RegistrationDeadline time.Time `json:"registration_deadline"`
	IsActive             bool      `json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`
}

// SeriesKey returns the stored series key, falling back to the title-derived
// base title for rows written before the series column existed.
func (o *Occurrence) SeriesKey() string {
	if o.Series != "" {
		return o.Series
	}
	return BaseTitle(o.Title)
}

// Status reports the attendee-facing state of the occurrence at now.
func (o *Occurrence) Status(now time.Time) OccurrenceStatus {
	switch {
	case now.After(o.EndDate):
		return OccurrenceCompleted
	case now.After(o.RegistrationDeadline):
		return OccurrenceClosed
	default:
		return OccurrenceOpen
	}
}

// OccurrenceView is the serialized form of an occurrence, carrying the
// status computed at render time.
type OccurrenceView struct {
	Occurrence
	EventStatus OccurrenceStatus `json:"event_status"`
}

// View renders o as seen at now.
func (o *Occurrence) View(now time.Time) OccurrenceView {
	return OccurrenceView{Occurrence: *o, EventStatus: o.Status(now)}
}

// OccurrenceStatus is derived from the clock and never stored.
type OccurrenceStatus string

const (
	OccurrenceOpen      OccurrenceStatus = "Open"
	OccurrenceClosed    OccurrenceStatus = "Closed"
	OccurrenceCompleted OccurrenceStatus = "Completed"
)

// BaseTitle returns the series key of a title: everything before the first
// separator, trimmed. "A - B - C" yields "A".
func BaseTitle(title string) string {
	base, _, _ := strings.Cut(title, SeriesSeparator)
	return strings.TrimSpace(base)
}

// OccurrenceFilter holds criteria for listing occurrences.
type OccurrenceFilter struct {
	IsActive *bool  `json:"is_active,omitempty"`
	Series   string `json:"series,omitempty"`
	Offset   int    `json:"offset,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}
