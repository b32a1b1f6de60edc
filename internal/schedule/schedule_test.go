package schedule

import (
	"testing"
	"time"
)

func utc(y int, m time.Month, d, h, min, s int) time.Time {
	return time.Date(y, m, d, h, min, s, 0, time.UTC)
}

func TestAddMonths(t *testing.T) {
	for _, tc := range []struct {
		in   time.Time
		n    int
		want time.Time
	}{
		{utc(2025, 1, 15, 10, 30, 0), 1, utc(2025, 2, 15, 10, 30, 0)},
		{utc(2025, 1, 31, 0, 0, 0), 1, utc(2025, 2, 28, 0, 0, 0)},
		{utc(2024, 1, 31, 0, 0, 0), 1, utc(2024, 2, 29, 0, 0, 0)},
		{utc(2025, 3, 31, 23, 59, 59), 1, utc(2025, 4, 30, 23, 59, 59)},
		{utc(2025, 12, 31, 12, 0, 0), 1, utc(2026, 1, 31, 12, 0, 0)},
		{utc(2025, 8, 31, 0, 0, 0), 1, utc(2025, 9, 30, 0, 0, 0)},
		{utc(2025, 1, 31, 0, 0, 0), 13, utc(2026, 2, 28, 0, 0, 0)},
		{utc(2025, 3, 31, 0, 0, 0), -1, utc(2025, 2, 28, 0, 0, 0)},
	} {
		if got := AddMonths(tc.in, tc.n); !got.Equal(tc.want) {
			t.Errorf("AddMonths(%s, %d) = %s, want %s", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestAddMonths_PreservesNanoseconds(t *testing.T) {
	in := time.Date(2025, 5, 10, 8, 0, 0, 123456789, time.UTC)
	got := AddMonths(in, 1)
	if got.Nanosecond() != 123456789 {
		t.Errorf("nanoseconds = %d, want 123456789", got.Nanosecond())
	}
}

func TestNextDates(t *testing.T) {
	for _, prev := range []time.Time{
		utc(2025, 1, 31, 0, 0, 0),
		utc(2024, 1, 31, 9, 0, 0),
		utc(2025, 2, 28, 22, 0, 0),
		utc(2025, 12, 1, 0, 0, 0),
		utc(2025, 6, 15, 14, 45, 30),
	} {
		got := NextDates(prev)
		if want := AddMonths(prev, 1); !got.Start.Equal(want) {
			t.Errorf("NextDates(%s).Start = %s, want %s", prev, got.Start, want)
		}
		if want := got.Start.Add(5 * 24 * time.Hour); !got.End.Equal(want) {
			t.Errorf("NextDates(%s).End = %s, want %s", prev, got.End, want)
		}
		if want := got.Start.Add(-time.Second); !got.RegistrationDeadline.Equal(want) {
			t.Errorf("NextDates(%s).RegistrationDeadline = %s, want %s", prev, got.RegistrationDeadline, want)
		}
		if !got.RegistrationDeadline.Before(got.Start) || !got.Start.Before(got.End) {
			t.Errorf("NextDates(%s) violates date ordering: %+v", prev, got)
		}
	}
}

func TestNextDates_JanuaryEndClampsToFebruary(t *testing.T) {
	got := NextDates(utc(2025, 1, 31, 0, 0, 0))
	if !got.Start.Equal(utc(2025, 2, 28, 0, 0, 0)) {
		t.Errorf("Start = %s, want 2025-02-28", got.Start)
	}
	leap := NextDates(utc(2024, 1, 31, 0, 0, 0))
	if !leap.Start.Equal(utc(2024, 2, 29, 0, 0, 0)) {
		t.Errorf("leap Start = %s, want 2024-02-29", leap.Start)
	}
}

func TestNextDates_NormalizesToUTC(t *testing.T) {
	kyiv := time.FixedZone("EET", 2*60*60)
	// 2025-03-01 00:00 in Kyiv is 2025-02-28 22:00 UTC.
	prev := time.Date(2025, 3, 1, 0, 0, 0, 0, kyiv)
	got := NextDates(prev)
	if got.Start.Location() != time.UTC {
		t.Fatalf("Start location = %v, want UTC", got.Start.Location())
	}
	if want := utc(2025, 3, 28, 22, 0, 0); !got.Start.Equal(want) {
		t.Errorf("Start = %s, want %s", got.Start, want)
	}
}

func TestNextDates_Idempotent(t *testing.T) {
	prev := utc(2025, 10, 31, 18, 0, 0)
	a, b := NextDates(prev), NextDates(prev)
	if a != b {
		t.Errorf("NextDates not deterministic: %+v vs %+v", a, b)
	}
}

func TestTitle(t *testing.T) {
	for _, tc := range []struct {
		series string
		start  time.Time
		want   string
	}{
		{"Demo Day", utc(2025, 3, 1, 0, 0, 0), "Demo Day - March 2025"},
		{"Pitch Night", utc(2026, 1, 31, 0, 0, 0), "Pitch Night - January 2026"},
		{"Demo Day", time.Date(2025, 4, 1, 0, 0, 0, 0, time.FixedZone("EET", 3*60*60)), "Demo Day - March 2025"},
	} {
		if got := Title(tc.series, tc.start); got != tc.want {
			t.Errorf("Title(%q, %s) = %q, want %q", tc.series, tc.start, got, tc.want)
		}
	}
}
