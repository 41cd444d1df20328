/*
bucket.go - Display bucketing and the Sunday shift

PURPOSE:
  Turns generated occurrence dates into calendar-view buckets: one bucket
  per calendar day, each holding that day's occurrences ordered by time of
  day. Occurrences landing on a Sunday are relocated to the immediately
  preceding Saturday, and the shifted date is the grouping key.

NOTE ON THE SHIFT:
  The shift runs after the working-day intersection. A Sunday occurrence is
  first confirmed to be a working day, then visually moved to Saturday; the
  shift does not re-check that Saturday is itself a working day. That
  mirrors the checklist's established behavior when Saturday is a holiday.

SEE ALSO:
  - generator.go: Produces the raw occurrence dates
*/
package schedule

import (
	"sort"
	"time"
)

// Occurrence is an ephemeral, derived value: a task due on a concrete day,
// optionally at a time of day. Occurrences are never persisted; they are
// recomputed on every refresh.
type Occurrence struct {
	TaskID   string
	TaskName string
	Assignee string
	Day      Day
	// TimeOfDay is a display label such as "09:30"; empty means all-day.
	TimeOfDay string
	// Frequency is the classified frequency of the owning task.
	Frequency string
}

// ShiftSunday relocates a Sunday to the preceding Saturday.
// Every other weekday passes through unchanged.
func ShiftSunday(d Day) Day {
	if d.Weekday() == time.Sunday {
		return d.AddDays(-1)
	}
	return d
}

// BucketByDay groups occurrences for calendar rendering. The Sunday shift
// is applied here, so the bucket key for a Sunday occurrence is the
// preceding Saturday. Buckets are ordered by time of day, then task name,
// then task ID, making repeated calls order-stable.
func BucketByDay(occs []Occurrence) map[Day][]Occurrence {
	buckets := make(map[Day][]Occurrence)
	for _, o := range occs {
		key := ShiftSunday(o.Day)
		buckets[key] = append(buckets[key], o)
	}
	for key := range buckets {
		b := buckets[key]
		sort.SliceStable(b, func(i, j int) bool {
			if b[i].TimeOfDay != b[j].TimeOfDay {
				return b[i].TimeOfDay < b[j].TimeOfDay
			}
			if b[i].TaskName != b[j].TaskName {
				return b[i].TaskName < b[j].TaskName
			}
			return b[i].TaskID < b[j].TaskID
		})
	}
	return buckets
}

// SortedBucketDays returns the bucket keys in ascending order.
func SortedBucketDays(buckets map[Day][]Occurrence) []Day {
	keys := make([]Day, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}
