/*
dates.go - Spreadsheet date parsing and formatting

PURPOSE:
  The spreadsheet endpoint is loose about dates. A date cell may arrive as:
    - a DD/MM/YYYY string (the sheet's display format)
    - an ISO string (YYYY-MM-DD or full RFC3339)
    - an epoch number (seconds or milliseconds)
    - the legacy textual encoding "Date(year,month,day)" emitted by the
      visualization export API, with a ZERO-INDEXED month
  Everything is normalized to a schedule.Day; the reverse direction emits
  exactly DD/MM/YYYY (and DD/MM/YYYY HH:MM:SS for timestamps), which is
  the layout the mutation endpoint expects.

FAILURE SEMANTICS:
  Unparseable input yields (zero, false), never an error or panic, so
  callers can render a placeholder instead of crashing.
*/
package sheet

import (
	"strconv"
	"strings"
	"time"

	"github.com/checkboard/delegation-engine/schedule"
)

const (
	// dayLayout is the sheet's textual date layout.
	dayLayout = "02/01/2006"
	// timestampLayout is the sheet's textual timestamp layout.
	timestampLayout = "02/01/2006 15:04:05"

	legacyDatePrefix = "Date("
)

// ParseCellDate normalizes a heterogeneous date cell value to a Day.
// Accepted inputs: time.Time, epoch numbers, DD/MM/YYYY, ISO strings, and
// the legacy Date(y,m,d) encoding. Returns (zero, false) on anything else.
func ParseCellDate(v any) (schedule.Day, bool) {
	switch x := v.(type) {
	case nil:
		return schedule.Day{}, false
	case time.Time:
		return schedule.DayOf(x), true
	case float64:
		return dayFromEpoch(int64(x)), true
	case int64:
		return dayFromEpoch(x), true
	case int:
		return dayFromEpoch(int64(x)), true
	case string:
		return parseDateString(x)
	default:
		return schedule.Day{}, false
	}
}

func parseDateString(s string) (schedule.Day, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return schedule.Day{}, false
	}

	if strings.HasPrefix(s, legacyDatePrefix) {
		return parseLegacyDate(s)
	}

	for _, layout := range []string{dayLayout, timestampLayout, "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return schedule.DayOf(t), true
		}
	}
	return schedule.Day{}, false
}

// parseLegacyDate decodes "Date(2024,0,15)" and the longer
// "Date(2024,0,15,10,30,0)" variant. The month is zero-indexed.
func parseLegacyDate(s string) (schedule.Day, bool) {
	body := strings.TrimPrefix(s, legacyDatePrefix)
	body = strings.TrimSuffix(body, ")")
	parts := strings.Split(body, ",")
	if len(parts) < 3 {
		return schedule.Day{}, false
	}

	nums := make([]int, 3)
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return schedule.Day{}, false
		}
		nums[i] = n
	}

	return schedule.NewDay(nums[0], time.Month(nums[1]+1), nums[2]), true
}

// dayFromEpoch interprets an epoch number, detecting milliseconds by
// magnitude (anything past ~5138 AD in seconds is taken as ms).
func dayFromEpoch(n int64) schedule.Day {
	if n > 1e11 {
		return schedule.DayOf(time.UnixMilli(n).UTC())
	}
	return schedule.DayOf(time.Unix(n, 0).UTC())
}

// FormatDate renders a Day in the sheet's DD/MM/YYYY layout.
// A zero Day renders as the empty string.
func FormatDate(d schedule.Day) string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(dayLayout)
}

// FormatTimestamp renders an instant in the sheet's DD/MM/YYYY HH:MM:SS
// layout.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timestampLayout)
}

// ParseTimestamp parses a DD/MM/YYYY HH:MM:SS cell, falling back to the
// date-only layout. Returns the zero time when unparseable.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{timestampLayout, dayLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
