/*
Package holidays builds holiday-day sets from iCalendar feeds.

PURPOSE:
  When no WorkingDays sheet is configured, the working calendar is derived
  from a weekday rule minus holidays. This package fetches a public holiday
  ICS feed, expands its events (including yearly RRULE recurrences) within
  a window, and reduces them to a set of calendar days for
  schedule.FromWeekdays.

SEE ALSO:
  - schedule/calendar.go: Consumes the resulting day set
*/
package holidays

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/rs/zerolog"
	"github.com/teambition/rrule-go"

	"github.com/checkboard/delegation-engine/schedule"
)

// maxOccurrencesPerEvent caps RRULE expansion per event.
const maxOccurrencesPerEvent = 500

// Feed fetches and expands one ICS holiday source.
type Feed struct {
	url        string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewFeed builds a feed for the given ICS URL.
func NewFeed(url string, log zerolog.Logger) *Feed {
	return &Feed{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With().Str("component", "holidays").Logger(),
	}
}

// SetHTTPClient swaps the underlying http.Client, mainly for tests.
func (f *Feed) SetHTTPClient(h *http.Client) { f.httpClient = h }

// Fetch downloads the feed and expands it into the window.
func (f *Feed) Fetch(ctx context.Context, w schedule.Window) (map[schedule.Day]bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch holiday feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("holiday feed returned %d", resp.StatusCode)
	}

	days, err := Expand(resp.Body, w)
	if err != nil {
		return nil, err
	}
	f.log.Debug().Int("holidays", len(days)).Str("url", redact(f.url)).
		Stringer("window", w).Msg("holiday feed expanded")
	return days, nil
}

// Expand parses an ICS payload and reduces its events to the set of
// calendar days they cover within the window. Multi-day events contribute
// every day they span; recurring events are expanded via their RRULE.
// Events that fail to parse are skipped, not fatal.
func Expand(r io.Reader, w schedule.Window) (map[schedule.Day]bool, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse holiday ICS: %w", err)
	}

	days := make(map[schedule.Day]bool)
	for _, ev := range cal.Events() {
		start, err := ev.GetStartAt()
		if err != nil {
			continue
		}
		end, err := ev.GetEndAt()
		if err != nil || end.Before(start) {
			end = start
		}
		// DTEND is exclusive for all-day events; spanDays treats the span
		// as [start, end) with a minimum of one day.
		span := spanDays(start, end)

		raw := ""
		if p := ev.GetProperty(ical.ComponentPropertyRrule); p != nil {
			raw = p.Value
		}

		if raw == "" {
			addSpan(days, schedule.DayOf(start), span, w)
			continue
		}

		rule, err := rrule.StrToRRule(raw)
		if err != nil {
			continue
		}
		rule.DTStart(start)

		occs := rule.Between(w.From.Time().AddDate(0, 0, -span), w.To.Time().AddDate(0, 0, 1), true)
		if len(occs) > maxOccurrencesPerEvent {
			occs = occs[:maxOccurrencesPerEvent]
		}
		for _, occ := range occs {
			addSpan(days, schedule.DayOf(occ), span, w)
		}
	}
	return days, nil
}

func addSpan(days map[schedule.Day]bool, start schedule.Day, span int, w schedule.Window) {
	for i := 0; i < span; i++ {
		d := start.AddDays(i)
		if w.Contains(d) {
			days[d] = true
		}
	}
}

// spanDays counts the calendar days in [start, end), minimum one.
func spanDays(start, end time.Time) int {
	s := schedule.DayOf(start)
	e := schedule.DayOf(end)
	n := 0
	for cur := s; cur.Before(e); cur = cur.AddDays(1) {
		n++
		if n >= 31 {
			break // no holiday spans a month; treat longer as malformed
		}
	}
	if n == 0 {
		n = 1
	}
	return n
}

// redact strips query parameters for logging feed URLs that may carry keys.
func redact(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i] + "?..."
	}
	return u
}
