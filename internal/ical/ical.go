// Package ical renders occurrences as an iCalendar feed.
package ical

import (
	"io"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/alfredjeanlab/cadence/internal/model"
)

// ContentType is the media type of a rendered feed.
const ContentType = "text/calendar; charset=utf-8"

const productID = "-//alfredjeanlab//cadence//EN"

// Calendar builds a VCALENDAR with one VEVENT per occurrence. stamp is used
// for DTSTAMP.
func Calendar(name string, occurrences []*model.Occurrence, stamp time.Time) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetName(name)
		cal.SetXWRCalName(name)
	}

	for _, o := range occurrences {
		ev := cal.AddEvent(o.ID)
		ev.SetDtStampTime(stamp.UTC())
		ev.SetCreatedTime(o.CreatedAt.UTC())
		ev.SetStartAt(o.StartDate.UTC())
		ev.SetEndAt(o.EndDate.UTC())
		ev.SetSummary(o.Title)
		if o.Description != "" {
			ev.SetDescription(o.Description)
		}
		if o.Theme != "" {
			ev.AddProperty(ics.ComponentPropertyCategories, o.Theme)
		}
		if o.IsActive {
			ev.SetStatus(ics.ObjectStatusConfirmed)
		} else {
			ev.SetStatus(ics.ObjectStatusCancelled)
		}
	}
	return cal
}

// Write renders the feed to w.
func Write(w io.Writer, name string, occurrences []*model.Occurrence, stamp time.Time) error {
	_, err := io.WriteString(w, Calendar(name, occurrences, stamp).Serialize())
	return err
}
