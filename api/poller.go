/*
poller.go - Background sheet synchronization

PURPOSE:
  Periodically re-fetches the Tasks, Users, and WorkingDays sheets into
  the local store, and replays journaled mutations that previously
  failed to reach the spreadsheet endpoint.

DESIGN:
  - robfig/cron schedules the refresh (default every 5 minutes)
  - A single-flight guard drops a tick that overlaps a running refresh
  - Manual refreshes (POST /api/sync) wait for a running one to finish
  - The working-day calendar comes from the WorkingDays sheet; when the
    sheet is empty and a holiday feed is configured, Mon-Sat minus feed
    holidays is derived instead

USAGE:
  p := api.NewPoller(store, sheets, cfg, log)
  p.Start()
  // ... later
  p.Stop()

SEE ALSO:
  - handlers.go: Journal producers, TriggerSync endpoint
  - store/sqlite: The journal tables
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/checkboard/delegation-engine/holidays"
	"github.com/checkboard/delegation-engine/schedule"
	"github.com/checkboard/delegation-engine/sheet"
	"github.com/checkboard/delegation-engine/store/sqlite"
	"github.com/checkboard/delegation-engine/tasks"
)

// Journal payloads, one per replayable action.
type insertPayload struct {
	RowData []string `json:"rowData"`
}

type statusPayload struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type adminDonePayload struct {
	Done bool `json:"done"`
}

// PollerConfig names the sheets to refresh.
type PollerConfig struct {
	TasksSheet       string
	UsersSheet       string
	WorkingDaysSheet string
	Interval         time.Duration
}

// Poller keeps the local store in step with the spreadsheet.
type Poller struct {
	store    *sqlite.Store
	sheets   *sheet.Client
	holidays *holidays.Feed
	cfg      PollerConfig
	log      zerolog.Logger

	cron *cron.Cron
	mu   sync.Mutex
}

// NewPoller creates a poller. holidayFeed may be nil.
func NewPoller(store *sqlite.Store, sheets *sheet.Client, holidayFeed *holidays.Feed, cfg PollerConfig, log zerolog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	return &Poller{
		store:    store,
		sheets:   sheets,
		holidays: holidayFeed,
		cfg:      cfg,
		log:      log.With().Str("component", "poller").Logger(),
	}
}

// Start schedules the periodic refresh and runs one immediately.
func (p *Poller) Start() {
	p.cron = cron.New()
	spec := fmt.Sprintf("@every %s", p.cfg.Interval)
	p.cron.AddFunc(spec, p.tick)
	p.cron.Start()
	p.log.Info().Dur("interval", p.cfg.Interval).Msg("poller started")

	go p.tick()
}

// Stop halts the schedule and waits for a running refresh to finish.
func (p *Poller) Stop() {
	if p.cron != nil {
		<-p.cron.Stop().Done()
	}
	p.mu.Lock()
	p.mu.Unlock()
	p.log.Info().Msg("poller stopped")
}

// tick is the scheduled entry point. An overlapping tick is dropped
// rather than queued.
func (p *Poller) tick() {
	if !p.mu.TryLock() {
		p.log.Debug().Msg("refresh already running, skipping tick")
		return
	}
	defer p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := p.refresh(ctx); err != nil {
		p.log.Error().Err(err).Msg("refresh failed")
	}
	p.drainJournal(ctx)
}

// RefreshNow performs a refresh immediately, waiting for any running
// one to finish first. Used by the manual sync endpoint.
func (p *Poller) RefreshNow(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.refresh(ctx); err != nil {
		return err
	}
	p.drainJournal(ctx)
	return nil
}

func (p *Poller) refresh(ctx context.Context) error {
	started := time.Now()

	taskTable, err := p.sheets.FetchTable(ctx, p.cfg.TasksSheet)
	if err != nil {
		return fmt.Errorf("fetch tasks sheet: %w", err)
	}
	ts := sheet.TasksFromTable(taskTable)
	p.warnUnrecognizedFrequencies(ts)
	if err := p.store.ReplaceTasks(ctx, ts); err != nil {
		return fmt.Errorf("replace tasks: %w", err)
	}

	userTable, err := p.sheets.FetchTable(ctx, p.cfg.UsersSheet)
	if err != nil {
		return fmt.Errorf("fetch users sheet: %w", err)
	}
	if err := p.store.ReplaceUsers(ctx, sheet.UsersFromTable(userTable)); err != nil {
		return fmt.Errorf("replace users: %w", err)
	}

	days, err := p.workingDays(ctx)
	if err != nil {
		return err
	}
	if err := p.store.ReplaceWorkingDays(ctx, days); err != nil {
		return fmt.Errorf("replace working days: %w", err)
	}

	p.log.Info().
		Int("tasks", len(ts)).
		Int("working_days", len(days)).
		Dur("took", time.Since(started)).
		Msg("refresh complete")
	return nil
}

// workingDays reads the WorkingDays sheet; when the sheet is empty and
// a holiday feed is configured, Mon-Sat over the coming year minus feed
// holidays is derived instead.
func (p *Poller) workingDays(ctx context.Context) ([]schedule.Day, error) {
	table, err := p.sheets.FetchTable(ctx, p.cfg.WorkingDaysSheet)
	if err != nil {
		return nil, fmt.Errorf("fetch working days sheet: %w", err)
	}
	days := sheet.WorkingDaysFromTable(table)
	if len(days) > 0 || p.holidays == nil {
		return days, nil
	}

	window := schedule.Window{From: schedule.Today(), To: schedule.Today().AddDays(366)}
	hols, err := p.holidays.Fetch(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("fetch holiday feed: %w", err)
	}
	cal := schedule.FromWeekdays(window, schedule.MonToSat(), hols)
	p.log.Info().Int("holidays", len(hols)).Msg("derived working days from holiday feed")
	return cal.Days(), nil
}

// warnUnrecognizedFrequencies flags raw frequency labels that fall
// through to one-time so sheet typos ("Yearly", "Quaterly") surface in
// the logs instead of silently losing recurrences.
func (p *Poller) warnUnrecognizedFrequencies(ts []tasks.Task) {
	for _, t := range ts {
		if t.FrequencyRaw == "" {
			continue
		}
		if t.Frequency() == schedule.OneTime {
			p.log.Warn().
				Str("task", t.Name).
				Str("frequency", t.FrequencyRaw).
				Msg("unrecognized frequency, treating as one-time")
		}
	}
}

// drainJournal replays pending mutations oldest-first. Failures bump
// the attempt counter; the store parks entries that keep failing.
func (p *Poller) drainJournal(ctx context.Context) {
	pending, err := p.store.PendingJournal(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("list journal")
		return
	}

	for _, entry := range pending {
		if err := p.replay(ctx, entry); err != nil {
			p.log.Warn().Err(err).Str("journal", entry.ID).Str("action", entry.Action).Msg("replay failed")
			if ferr := p.store.FailJournal(ctx, entry.ID, err.Error()); ferr != nil {
				p.log.Error().Err(ferr).Str("journal", entry.ID).Msg("mark journal failed")
			}
			continue
		}
		if err := p.store.ResolveJournal(ctx, entry.ID); err != nil {
			p.log.Error().Err(err).Str("journal", entry.ID).Msg("resolve journal")
		}
	}
}

func (p *Poller) replay(ctx context.Context, e sqlite.JournalEntry) error {
	switch e.Action {
	case sheet.ActionInsert:
		var payload insertPayload
		if err := json.Unmarshal([]byte(e.Payload), &payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return p.sheets.InsertRow(ctx, e.SheetName, payload.RowData)

	case sheet.ActionUpdate:
		var payload insertPayload
		if err := json.Unmarshal([]byte(e.Payload), &payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return p.sheets.UpdateRow(ctx, e.SheetName, e.RowIndex, payload.RowData)

	case sheet.ActionUpdateTaskData:
		var payload statusPayload
		if err := json.Unmarshal([]byte(e.Payload), &payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return p.sheets.UpdateTaskData(ctx, e.SheetName, e.RowIndex, payload.Status, payload.UpdatedAt)

	case sheet.ActionUpdateAdminDone:
		var payload adminDonePayload
		if err := json.Unmarshal([]byte(e.Payload), &payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return p.sheets.UpdateAdminDone(ctx, e.SheetName, e.RowIndex, payload.Done)

	default:
		return fmt.Errorf("unknown journal action %q", e.Action)
	}
}
