// Package schedule computes the dates of the next occurrence in a monthly series.
package schedule

import (
	"time"

	"github.com/alfredjeanlab/cadence/internal/model"
)

const (
	// Duration is the fixed length of every generated occurrence.
	Duration = 5 * 24 * time.Hour
	// DeadlineLead is how long before the start registration closes.
	DeadlineLead = time.Second
)

// Dates holds the computed dates of an occurrence.
type Dates struct {
	Start                time.Time
	End                  time.Time
	RegistrationDeadline time.Time
}

// NextDates returns the dates of the occurrence following one that started
// at prevStart. The result is in UTC.
func NextDates(prevStart time.Time) Dates {
	start := AddMonths(prevStart.UTC(), 1)
	return Dates{
		Start:                start,
		End:                  start.Add(Duration),
		RegistrationDeadline: start.Add(-DeadlineLead),
	}
}

// AddMonths shifts t by n calendar months, clamping the day of month to the
// last valid day of the target month (Jan 31 + 1 month is Feb 28 or 29).
// Time of day and location are preserved.
func AddMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	// Normalize month arithmetic through the first of the month so that
	// time.Date never rolls an overflowing day into the following month.
	first := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// Title returns the display title of an occurrence of series starting at start,
// e.g. "Demo Day - March 2025". The month is rendered in UTC.
func Title(series string, start time.Time) string {
	start = start.UTC()
	return series + model.SeriesSeparator + start.Month().String() + " " + start.Format("2006")
}
