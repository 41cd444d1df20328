package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// everyDay builds a calendar containing every calendar day in [from, to].
func everyDay(from, to Day) Calendar {
	return NewCalendar(Window{From: from, To: to}.Days())
}

// monToSat builds a calendar of every Monday-Saturday in [from, to].
func monToSat(from, to Day) Calendar {
	return FromWeekdays(Window{From: from, To: to}, MonToSat(), nil)
}

// =============================================================================
// ONE-TIME TASKS
// =============================================================================

func TestGenerate_OneTime_InclusionRule(t *testing.T) {
	// GIVEN: A one-time task and a calendar of every day in January 2024
	today := NewDay(2024, time.January, 10)
	cal := everyDay(NewDay(2024, time.January, 1), NewDay(2024, time.January, 31))

	// WHEN: start is strictly after today and on/before the horizon
	// THEN: exactly the start date is emitted
	got := Generate(NewDay(2024, time.January, 15), OneTime, cal, today)
	assert.Equal(t, []Day{NewDay(2024, time.January, 15)}, got)

	// Start on the horizon itself is still included.
	got = Generate(NewDay(2024, time.January, 31), OneTime, cal, today)
	assert.Equal(t, []Day{NewDay(2024, time.January, 31)}, got)

	// Start equal to today is excluded (strictly after).
	assert.Empty(t, Generate(today, OneTime, cal, today))

	// Start before today is excluded.
	assert.Empty(t, Generate(NewDay(2024, time.January, 5), OneTime, cal, today))

	// Start past the horizon is excluded.
	assert.Empty(t, Generate(NewDay(2024, time.February, 1), OneTime, cal, today))
}

func TestGenerate_OneTime_NonWorkingDayExcluded(t *testing.T) {
	// A one-time task landing on a day absent from the working set is dropped.
	today := NewDay(2024, time.January, 1)
	cal := monToSat(NewDay(2024, time.January, 1), NewDay(2024, time.January, 31))

	sunday := NewDay(2024, time.January, 14)
	require.Equal(t, time.Sunday, sunday.Weekday())

	assert.Empty(t, Generate(sunday, OneTime, cal, today))
}

// =============================================================================
// RECURRING TASKS
// =============================================================================

func TestGenerate_Daily_FullSequence(t *testing.T) {
	// GIVEN: A daily task starting today, every calendar day working
	today := NewDay(2024, time.March, 1)
	horizon := NewDay(2024, time.March, 10)
	cal := everyDay(today, horizon)

	// WHEN: Generating occurrences
	got := Generate(today, Daily, cal, today)

	// THEN: Exactly today+1 .. horizon, ascending
	var want []Day
	for d := today.AddDays(1); d.BeforeOrEqual(horizon); d = d.AddDays(1) {
		want = append(want, d)
	}
	assert.Equal(t, want, got)
}

func TestGenerate_Weekly_ExampleScenario(t *testing.T) {
	// GIVEN: startDate = 01/01/2024, frequency weekly, working days every
	// Mon-Sat in January 2024, today = 01/01/2024
	start := NewDay(2024, time.January, 1)
	today := start
	cal := monToSat(NewDay(2024, time.January, 1), NewDay(2024, time.January, 31))
	require.Equal(t, NewDay(2024, time.January, 31), cal.Last())

	// WHEN: Generating occurrences
	got := Generate(start, Weekly, cal, today)

	// THEN: 08/01, 15/01, 22/01, 29/01; the start itself is excluded
	// because it is not strictly after today.
	want := []Day{
		NewDay(2024, time.January, 8),
		NewDay(2024, time.January, 15),
		NewDay(2024, time.January, 22),
		NewDay(2024, time.January, 29),
	}
	assert.Equal(t, want, got)
}

func TestGenerate_Weekly_NonWorkingDayDroppedNotShifted(t *testing.T) {
	// GIVEN: A weekly task whose step lands on an excluded Wednesday
	start := NewDay(2024, time.January, 3) // Wednesday
	today := NewDay(2024, time.January, 1)
	cal := everyDay(NewDay(2024, time.January, 1), NewDay(2024, time.January, 31))

	// Remove Jan 17 (third Wednesday) from the working set.
	var days []Day
	for _, d := range cal.Days() {
		if !d.Equal(NewDay(2024, time.January, 17)) {
			days = append(days, d)
		}
	}
	cal = NewCalendar(days)

	got := Generate(start, Weekly, cal, today)

	// THEN: Jan 17 is absent entirely; neighbors are untouched.
	assert.NotContains(t, got, NewDay(2024, time.January, 17))
	assert.Contains(t, got, NewDay(2024, time.January, 10))
	assert.Contains(t, got, NewDay(2024, time.January, 24))
}

func TestGenerate_Monthly_CalendarAwareStep(t *testing.T) {
	// Monthly steps use calendar month increments, not 30-day jumps.
	start := NewDay(2024, time.January, 15)
	today := NewDay(2024, time.January, 1)
	cal := everyDay(NewDay(2024, time.January, 1), NewDay(2024, time.June, 30))

	got := Generate(start, Monthly, cal, today)

	want := []Day{
		NewDay(2024, time.January, 15),
		NewDay(2024, time.February, 15),
		NewDay(2024, time.March, 15),
		NewDay(2024, time.April, 15),
		NewDay(2024, time.May, 15),
		NewDay(2024, time.June, 15),
	}
	assert.Equal(t, want, got)
}

// =============================================================================
// SAFETY AND PURITY
// =============================================================================

func TestGenerate_Termination_AncientStartDate(t *testing.T) {
	// A daily task starting decades ago must return promptly: the step cap
	// bounds the walk regardless of how far back the start is.
	start := NewDay(1970, time.January, 1)
	today := NewDay(2024, time.January, 1)
	cal := everyDay(NewDay(2024, time.January, 1), NewDay(2030, time.December, 31))

	done := make(chan []Day, 1)
	go func() { done <- Generate(start, Daily, cal, today) }()

	select {
	case got := <-done:
		// The cap is consumed stepping through the distant past, so the
		// result is empty. Termination is the property under test.
		assert.Empty(t, got)
	case <-time.After(5 * time.Second):
		t.Fatal("Generate did not terminate")
	}
}

func TestGenerate_ZeroInputs(t *testing.T) {
	cal := everyDay(NewDay(2024, time.January, 1), NewDay(2024, time.January, 31))

	assert.Nil(t, Generate(Day{}, Daily, cal, NewDay(2024, time.January, 1)))
	assert.Nil(t, Generate(NewDay(2024, time.January, 1), Daily, NewCalendar(nil), NewDay(2024, time.January, 1)))
}

func TestGenerate_Idempotent(t *testing.T) {
	start := NewDay(2024, time.January, 1)
	today := start
	cal := monToSat(start, NewDay(2024, time.March, 31))

	first := Generate(start, Weekly, cal, today)
	second := Generate(start, Weekly, cal, today)

	assert.Equal(t, first, second)
}

func TestGenerate_UnrecognizedFrequencyFollowsOneTimeRule(t *testing.T) {
	// "yearly" and "quarterly" are classified as one-time and follow the
	// one-time inclusion rule.
	today := NewDay(2024, time.January, 1)
	cal := everyDay(today, NewDay(2024, time.December, 31))
	start := NewDay(2024, time.June, 1)

	for _, raw := range []string{"yearly", "quarterly"} {
		freq := ClassifyFrequency(raw)
		require.Equal(t, OneTime, freq, raw)

		got := Generate(start, freq, cal, today)
		assert.Equal(t, []Day{start}, got, raw)
	}
}

func TestGenerateUntil_TighterHorizon(t *testing.T) {
	start := NewDay(2024, time.January, 1)
	cal := everyDay(start, NewDay(2024, time.December, 31))

	got := GenerateUntil(start, Weekly, cal, start, NewDay(2024, time.January, 20))

	want := []Day{
		NewDay(2024, time.January, 8),
		NewDay(2024, time.January, 15),
	}
	assert.Equal(t, want, got)
}
