package schedule

import "strings"

// Frequency is the canonical recurrence bucket for a task.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	OneTime Frequency = "one-time"
)

// ClassifyFrequency collapses a free-text frequency string into one of the
// four canonical buckets. Classification is deliberately coarse and matches
// only the first character after trimming and lower-casing:
//
//	d* -> Daily, w* -> Weekly, m* -> Monthly, anything else -> OneTime
//
// "Yearly", "quarterly", "fortnightly" and priority words like "urgent" all
// land in OneTime and fire at most once. Callers that care about the
// collapse should log it; see the sync poller.
func ClassifyFrequency(raw string) Frequency {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return OneTime
	}
	switch s[0] {
	case 'd':
		return Daily
	case 'w':
		return Weekly
	case 'm':
		return Monthly
	default:
		return OneTime
	}
}

// IsRecurring reports whether the frequency steps past its first occurrence.
func (f Frequency) IsRecurring() bool {
	return f == Daily || f == Weekly || f == Monthly
}
