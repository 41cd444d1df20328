/*
generator.go - Occurrence generation

PURPOSE:
  The core of the checklist system: given a task's start date and frequency
  bucket, compute the concrete future dates the task is due on, bounded by
  the working calendar's horizon.

ALGORITHM:
  One-time tasks emit their start date iff today < start <= horizon.
  Recurring tasks step from the start date by the frequency's period
  (1 day / 7 days / 1 calendar month) while the candidate is on or before
  the horizon, keeping candidates strictly after today. Candidates are then
  intersected with the working-day set: a step landing on a non-working day
  is dropped, not shifted.

TERMINATION:
  A hard cap of 1000 steps bounds the walk even for start dates decades in
  the past or corrupted horizons. The generator is total: it returns a
  (possibly empty) slice and never panics.

SEE ALSO:
  - frequency.go: ClassifyFrequency
  - bucket.go: Sunday shift and display grouping (applied by callers)
*/
package schedule

// maxGenerationSteps bounds the recurrence walk regardless of input.
const maxGenerationSteps = 1000

// Generate computes the future occurrence dates for a task.
//
// start is the task's first nominal occurrence, freq its canonical bucket,
// cal the working-day set whose maximum element is the horizon, and today
// the exclusive lower bound. The result is ascending and contains only
// working days strictly after today.
func Generate(start Day, freq Frequency, cal Calendar, today Day) []Day {
	return GenerateUntil(start, freq, cal, today, cal.Last())
}

// GenerateUntil is Generate with an explicit horizon, for callers that
// bound generation tighter than the calendar's last working day.
func GenerateUntil(start Day, freq Frequency, cal Calendar, today, horizon Day) []Day {
	if start.IsZero() || horizon.IsZero() {
		return nil
	}

	if !freq.IsRecurring() {
		if start.After(today) && start.BeforeOrEqual(horizon) && cal.Contains(start) {
			return []Day{start}
		}
		return nil
	}

	var out []Day
	cur := start
	for steps := 0; steps < maxGenerationSteps && cur.BeforeOrEqual(horizon); steps++ {
		if cur.After(today) && cal.Contains(cur) {
			out = append(out, cur)
		}
		cur = step(cur, freq)
	}
	return out
}

func step(d Day, freq Frequency) Day {
	switch freq {
	case Daily:
		return d.AddDays(1)
	case Weekly:
		return d.AddDays(7)
	case Monthly:
		return d.AddMonths(1)
	default:
		// Unreachable for recurring callers; advance a day to keep the
		// loop finite if it ever is reached.
		return d.AddDays(1)
	}
}
