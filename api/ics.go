/*
ics.go - iCalendar rendering of task occurrences

PURPOSE:
  Turns a set of generated occurrences into an iCalendar document so
  assignees can subscribe to their checklist from a calendar app. One
  all-day VEVENT per occurrence; the Sunday shift is applied the same
  way as the JSON calendar view.

SEE ALSO:
  - handlers.go: CalendarICS endpoint
*/
package api

import (
	"fmt"

	ics "github.com/arran4/golang-ical"

	"github.com/checkboard/delegation-engine/schedule"
)

// renderICS serializes occurrences as an iCalendar document.
func renderICS(occs []schedule.Occurrence) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//checkboard//delegation-engine//EN")

	buckets := schedule.BucketByDay(occs)
	for _, day := range schedule.SortedBucketDays(buckets) {
		for i, o := range buckets[day] {
			event := cal.AddEvent(fmt.Sprintf("%s-%s-%d", o.TaskID, day, i))
			event.SetAllDayStartAt(day.Time())
			event.SetAllDayEndAt(day.AddDays(1).Time())
			summary := o.TaskName
			if o.TimeOfDay != "" {
				summary = fmt.Sprintf("%s (due %s)", o.TaskName, o.TimeOfDay)
			}
			event.SetSummary(summary)
			if o.Assignee != "" {
				event.SetDescription(fmt.Sprintf("Assignee: %s", o.Assignee))
			}
		}
	}
	return cal.Serialize()
}
