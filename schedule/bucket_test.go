package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShiftSunday(t *testing.T) {
	sunday := NewDay(2024, time.January, 14)
	require.Equal(t, time.Sunday, sunday.Weekday())

	shifted := ShiftSunday(sunday)
	assert.Equal(t, NewDay(2024, time.January, 13), shifted)
	assert.Equal(t, time.Saturday, shifted.Weekday())

	// Non-Sundays pass through.
	for d := NewDay(2024, time.January, 8); d.Weekday() != time.Sunday; d = d.AddDays(1) {
		assert.Equal(t, d, ShiftSunday(d))
	}
}

func TestBucketByDay_SundayIsKeyedOnSaturday(t *testing.T) {
	// GIVEN: Occurrences on a Saturday and the following Sunday
	saturday := NewDay(2024, time.January, 13)
	sunday := NewDay(2024, time.January, 14)

	occs := []Occurrence{
		{TaskID: "t1", TaskName: "Backup check", Day: saturday, TimeOfDay: "10:00"},
		{TaskID: "t2", TaskName: "Stock count", Day: sunday, TimeOfDay: "09:00"},
	}

	// WHEN: Bucketing for display
	buckets := BucketByDay(occs)

	// THEN: Both land under the Saturday key; no Sunday bucket exists.
	require.Len(t, buckets, 1)
	sat := buckets[saturday]
	require.Len(t, sat, 2)
	assert.NotContains(t, buckets, sunday)

	// Ordered by time of day within the bucket.
	assert.Equal(t, "t2", sat[0].TaskID)
	assert.Equal(t, "t1", sat[1].TaskID)
}

func TestBucketByDay_OrderStable(t *testing.T) {
	day := NewDay(2024, time.February, 5)
	occs := []Occurrence{
		{TaskID: "b", TaskName: "Same", Day: day},
		{TaskID: "a", TaskName: "Same", Day: day},
		{TaskID: "c", TaskName: "Other", Day: day, TimeOfDay: "08:00"},
	}

	first := BucketByDay(occs)
	second := BucketByDay(occs)
	assert.Equal(t, first, second)

	b := first[day]
	require.Len(t, b, 3)
	// All-day entries (empty time) sort first, ties broken by name then ID.
	assert.Equal(t, []string{"a", "b", "c"}, []string{b[0].TaskID, b[1].TaskID, b[2].TaskID})
}

func TestSortedBucketDays(t *testing.T) {
	occs := []Occurrence{
		{TaskID: "t1", Day: NewDay(2024, time.March, 20)},
		{TaskID: "t2", Day: NewDay(2024, time.March, 4)},
		{TaskID: "t3", Day: NewDay(2024, time.March, 12)},
	}

	days := SortedBucketDays(BucketByDay(occs))
	require.Len(t, days, 3)
	assert.True(t, days[0].Before(days[1]))
	assert.True(t, days[1].Before(days[2]))
}
