/*
Package tasks models the checklist's delegation domain.

PURPOSE:
  Defines the Task record with named fields (the spreadsheet's positional
  columns are mapped exactly once, at the sheet boundary), status
  normalization, session identity, the role-based visibility filter, and
  the completion report.

DESIGN PRINCIPLES:
  1. Named fields only: no positional column indices leak past the sheet
     adapter
  2. Status is free text; "done" is recognized case- and space-insensitively
  3. Identity is an explicit Session value threaded through the functions
     that need it, never ambient state

SEE ALSO:
  - schedule/: Occurrence generation consumes StartDate and Frequency
  - sheet/schema.go: Column-index to Task mapping
*/
package tasks

import (
	"strings"
	"time"

	"github.com/checkboard/delegation-engine/schedule"
)

// =============================================================================
// TASK
// =============================================================================

// Task is a checklist task as assigned to a person.
type Task struct {
	ID          string
	Name        string
	Description string
	Assignee    string
	Department  string

	// StartDate is the first nominal occurrence.
	StartDate schedule.Day
	// DueTime is an optional "HH:MM" time-of-day label.
	DueTime string

	// FrequencyRaw is the free text from the assignment form ("Weekly",
	// "end-of-2nd-week", ...). Frequency() classifies it on demand.
	FrequencyRaw string

	// Status is free text; see IsDone.
	Status string
	// AdminDone marks the admin override that closes a task regardless of
	// the assignee's own status.
	AdminDone bool

	Remarks   string
	CreatedAt time.Time
	UpdatedAt time.Time

	// RowIndex is the task's 1-based row in the Tasks sheet, kept so
	// updates can be forwarded to the legacy endpoint.
	RowIndex int
}

// Frequency returns the task's canonical recurrence bucket.
func (t Task) Frequency() schedule.Frequency {
	return schedule.ClassifyFrequency(t.FrequencyRaw)
}

// Done reports whether the task is completed, either by the assignee's
// status or the admin override.
func (t Task) Done() bool {
	return t.AdminDone || IsDoneStatus(t.Status)
}

// IsDoneStatus recognizes "done" in any casing with any embedded or
// surrounding whitespace ("Done", " DONE ", "d o n e").
func IsDoneStatus(status string) bool {
	var b strings.Builder
	for _, r := range status {
		if r == ' ' || r == '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.EqualFold(b.String(), "done")
}

// Pending returns the tasks not yet completed.
func Pending(ts []Task) []Task {
	out := make([]Task, 0, len(ts))
	for _, t := range ts {
		if !t.Done() {
			out = append(out, t)
		}
	}
	return out
}
