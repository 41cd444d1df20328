/*
Package schedule provides the recurring-task occurrence engine.

PURPOSE:
  This package contains the date math at the heart of the checklist system:
  classifying free-text frequency strings, stepping a task's start date
  forward through its recurrence, intersecting candidates with the working
  calendar, and bucketing the results for calendar display.

KEY CONCEPTS IN THIS FILE (day.go):
  - Day: a calendar date with no time component, always UTC
  - Window: an inclusive [From, To] range of days

DESIGN PRINCIPLES:
  1. Purity: everything in this package is a pure function of its inputs
  2. Day granularity: occurrences are keyed by calendar day, never instants
  3. Totality: malformed input yields zero values, never panics

USAGE:
  start := schedule.NewDay(2024, time.January, 1)
  next := start.AddDays(7)
  if next.After(schedule.Today()) { ... }

SEE ALSO:
  - frequency.go: Free-text frequency classification
  - generator.go: Occurrence generation
  - calendar.go: Working-day calendar
  - bucket.go: Display bucketing and the Sunday shift
*/
package schedule

import "time"

// =============================================================================
// DAY - Calendar date abstraction
// =============================================================================

// Day is a calendar date stripped of any time-of-day component.
// The zero value is the zero time and reports IsZero.
type Day struct {
	t time.Time
}

// NewDay builds a Day from its calendar parts.
func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates an arbitrary instant to its calendar day.
func DayOf(t time.Time) Day {
	return NewDay(t.Year(), t.Month(), t.Day())
}

// Today returns the current calendar day.
func Today() Day {
	return DayOf(time.Now())
}

// Comparison
func (d Day) Before(other Day) bool        { return d.t.Before(other.t) }
func (d Day) After(other Day) bool         { return d.t.After(other.t) }
func (d Day) Equal(other Day) bool         { return d.t.Equal(other.t) }
func (d Day) BeforeOrEqual(other Day) bool { return d.Before(other) || d.Equal(other) }
func (d Day) AfterOrEqual(other Day) bool  { return d.After(other) || d.Equal(other) }

// Arithmetic. AddMonths is calendar aware: Jan 31 + 1 month normalizes the
// way time.AddDate does, it is not a fixed 30-day jump.
func (d Day) AddDays(n int) Day   { return Day{t: d.t.AddDate(0, 0, n)} }
func (d Day) AddMonths(n int) Day { return Day{t: d.t.AddDate(0, n, 0)} }

// Properties
func (d Day) Year() int             { return d.t.Year() }
func (d Day) Month() time.Month     { return d.t.Month() }
func (d Day) Day() int              { return d.t.Day() }
func (d Day) Weekday() time.Weekday { return d.t.Weekday() }
func (d Day) IsZero() bool          { return d.t.IsZero() }

// Time exposes the underlying midnight-UTC instant for interop with
// formatting and ICS serialization.
func (d Day) Time() time.Time { return d.t }

func (d Day) String() string { return d.t.Format("2006-01-02") }

// =============================================================================
// WINDOW - Inclusive day range
// =============================================================================

// Window is an inclusive [From, To] range of calendar days.
type Window struct {
	From Day
	To   Day
}

// Contains returns true if day falls within the window.
func (w Window) Contains(d Day) bool {
	return d.AfterOrEqual(w.From) && d.BeforeOrEqual(w.To)
}

// Days enumerates every day in the window, ascending.
func (w Window) Days() []Day {
	var days []Day
	for cur := w.From; cur.BeforeOrEqual(w.To); cur = cur.AddDays(1) {
		days = append(days, cur)
	}
	return days
}

func (w Window) String() string {
	return "[" + w.From.String() + ", " + w.To.String() + "]"
}
