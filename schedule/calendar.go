/*
calendar.go - Working-day calendar

PURPOSE:
  Models the ordered set of valid business days that bounds occurrence
  generation. The set is fetched per sync from the WorkingDays sheet, or
  derived from a weekday rule minus an expanded holiday feed.

INVARIANTS:
  - Days are held sorted ascending and de-duplicated
  - Last() is the horizon: no occurrence is generated beyond it
  - Membership is by calendar day, never by instant

SEE ALSO:
  - generator.go: Intersects stepped candidates with this calendar
  - holidays/: ICS holiday feed expansion used by FromWeekdays
*/
package schedule

import (
	"sort"
	"time"
)

// Calendar is an immutable, sorted set of working days.
type Calendar struct {
	days []Day
	set  map[Day]struct{}
}

// NewCalendar builds a calendar from an arbitrary list of days.
// Input need not be sorted; duplicates are dropped.
func NewCalendar(days []Day) Calendar {
	set := make(map[Day]struct{}, len(days))
	uniq := make([]Day, 0, len(days))
	for _, d := range days {
		if d.IsZero() {
			continue
		}
		if _, ok := set[d]; ok {
			continue
		}
		set[d] = struct{}{}
		uniq = append(uniq, d)
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i].Before(uniq[j]) })
	return Calendar{days: uniq, set: set}
}

// FromWeekdays derives a calendar over a window from a working-weekday rule,
// excluding the given holiday days. This is the fallback source when no
// WorkingDays sheet is configured: Monday through Saturday minus holidays.
func FromWeekdays(w Window, working map[time.Weekday]bool, holidays map[Day]bool) Calendar {
	var days []Day
	for cur := w.From; cur.BeforeOrEqual(w.To); cur = cur.AddDays(1) {
		if !working[cur.Weekday()] {
			continue
		}
		if holidays[cur] {
			continue
		}
		days = append(days, cur)
	}
	return NewCalendar(days)
}

// MonToSat is the default working-weekday rule of the checklist: every day
// except Sunday.
func MonToSat() map[time.Weekday]bool {
	return map[time.Weekday]bool{
		time.Monday:    true,
		time.Tuesday:   true,
		time.Wednesday: true,
		time.Thursday:  true,
		time.Friday:    true,
		time.Saturday:  true,
	}
}

// Contains reports working-day membership by calendar day.
func (c Calendar) Contains(d Day) bool {
	_, ok := c.set[d]
	return ok
}

// Last returns the maximum working day, the generation horizon.
// Returns a zero Day for an empty calendar.
func (c Calendar) Last() Day {
	if len(c.days) == 0 {
		return Day{}
	}
	return c.days[len(c.days)-1]
}

// Days returns the sorted working days. The slice is shared; callers must
// not mutate it.
func (c Calendar) Days() []Day { return c.days }

// Len returns the number of working days.
func (c Calendar) Len() int { return len(c.days) }

// IsEmpty reports whether the calendar holds no days.
func (c Calendar) IsEmpty() bool { return len(c.days) == 0 }
