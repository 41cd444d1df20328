/*
handlers.go - HTTP API handlers for the delegation engine

PURPOSE:
  Exposes the checklist/delegation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Auth:
    POST   /api/login                     Issue a session token

  Tasks:
    GET    /api/tasks                     List visible tasks (filters: assignee, status, frequency, pending)
    POST   /api/tasks                     Create task (admin)
    GET    /api/tasks/{id}                Get one task
    PUT    /api/tasks/{id}/status         Update status
    PUT    /api/tasks/{id}/admin-done     Admin done override (admin)

  Calendar:
    GET    /api/calendar?from=&to=        Occurrences bucketed by day
    GET    /api/calendar.ics              Same window as an iCalendar feed

  Reports:
    GET    /api/reports/completion        Per-assignee completion rates

  Admin:
    POST   /api/sync                      Refresh the sheet cache now (admin)

MUTATION FLOW:
  Writes land in the local store first, then forward to the spreadsheet
  endpoint. A failed forward is journaled for the poller to retry and
  the response carries queued=true, so callers always see the real
  state of the write.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing/invalid session
  - 403: Role not allowed
  - 404: Task not found
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Session middleware
  - poller.go: Background refresh and journal replay
*/
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/checkboard/delegation-engine/schedule"
	"github.com/checkboard/delegation-engine/sheet"
	"github.com/checkboard/delegation-engine/store/sqlite"
	"github.com/checkboard/delegation-engine/tasks"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Syncer triggers an immediate cache refresh. Implemented by the Poller.
type Syncer interface {
	RefreshNow(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Sheets     *sheet.Client
	Tokens     *TokenIssuer
	Sync       Syncer
	TasksSheet string

	log zerolog.Logger
	now func() time.Time
}

// NewHandler creates a new handler.
func NewHandler(store *sqlite.Store, sheets *sheet.Client, tokens *TokenIssuer, log zerolog.Logger) *Handler {
	return &Handler{
		Store:      store,
		Sheets:     sheets,
		Tokens:     tokens,
		TasksSheet: "Tasks",
		log:        log.With().Str("component", "api").Logger(),
		now:        time.Now,
	}
}

// =============================================================================
// AUTH
// =============================================================================

// Login verifies credentials against the Users cache and issues a token.
// POST /api/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required", nil)
		return
	}

	user, err := h.Store.GetUser(r.Context(), req.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to look up user", err)
		return
	}
	if user == nil || user.Password != req.Password {
		writeError(w, http.StatusUnauthorized, "Unknown username or wrong password", nil)
		return
	}

	session := user.Session()
	token, err := h.Tokens.Issue(session)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}

	h.log.Info().Str("username", session.Username).Str("role", string(session.Role)).Msg("login")
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:       token,
		Username:    session.Username,
		DisplayName: session.DisplayName,
		Role:        string(session.Role),
		Department:  session.Department,
	})
}

// =============================================================================
// TASK HANDLERS
// =============================================================================

// ListTasks returns the tasks visible to the session, optionally
// filtered by assignee, status, frequency, or pending=true.
// GET /api/tasks
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())

	all, err := h.Store.ListTasks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tasks", err)
		return
	}

	visible := tasks.VisibleTo(session, all)

	q := r.URL.Query()
	var out []tasks.Task
	for _, t := range visible {
		if a := q.Get("assignee"); a != "" && !equalFold(t.Assignee, a) {
			continue
		}
		if s := q.Get("status"); s != "" && !equalFold(t.Status, s) {
			continue
		}
		if f := q.Get("frequency"); f != "" && string(t.Frequency()) != f {
			continue
		}
		if q.Get("pending") == "true" && t.Done() {
			continue
		}
		out = append(out, t)
	}

	writeJSON(w, http.StatusOK, toTaskDTOs(out))
}

// GetTask returns one task when it is visible to the session.
// GET /api/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, ok := h.visibleTask(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(*task))
}

// CreateTask handles the assignment form: caches the new task locally
// and forwards an insert to the spreadsheet endpoint.
// POST /api/tasks (admin)
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.Assignee == "" {
		writeError(w, http.StatusBadRequest, "assignee is required", nil)
		return
	}

	var start schedule.Day
	if req.StartDate != "" {
		t, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "startDate must be YYYY-MM-DD", err)
			return
		}
		start = schedule.DayOf(t)
	}

	now := h.now()
	task := tasks.Task{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Description:  req.Description,
		Assignee:     req.Assignee,
		Department:   req.Department,
		StartDate:    start,
		DueTime:      req.DueTime,
		FrequencyRaw: req.Frequency,
		Status:       "Pending",
		Remarks:      req.Remarks,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.Store.SaveTask(r.Context(), task); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save task", err)
		return
	}

	rowData := sheet.TaskRowData(task)
	queued := false
	if err := h.Sheets.InsertRow(r.Context(), h.TasksSheet, rowData); err != nil {
		h.log.Warn().Err(err).Str("task", task.ID).Msg("insert forward failed, journaling")
		if jerr := h.queueMutation(r, sheet.ActionInsert, 0, insertPayload{RowData: rowData}); jerr != nil {
			writeError(w, http.StatusInternalServerError, "Failed to journal insert", jerr)
			return
		}
		queued = true
	}

	status := http.StatusCreated
	if queued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, MutationResponse{Task: toTaskDTO(task), Queued: queued})
}

// UpdateStatus sets a task's status and forwards the change upstream.
// PUT /api/tasks/{id}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	task, ok := h.visibleTask(w, r)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required", nil)
		return
	}

	now := h.now()
	if err := h.Store.UpdateTaskStatus(r.Context(), task.ID, req.Status, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Task not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update status", err)
		return
	}
	task.Status = req.Status
	task.UpdatedAt = now

	queued := false
	if task.RowIndex > 0 {
		if err := h.Sheets.UpdateTaskData(r.Context(), h.TasksSheet, task.RowIndex, req.Status, now); err != nil {
			h.log.Warn().Err(err).Str("task", task.ID).Msg("status forward failed, journaling")
			payload := statusPayload{Status: req.Status, UpdatedAt: now}
			if jerr := h.queueMutation(r, sheet.ActionUpdateTaskData, task.RowIndex, payload); jerr != nil {
				writeError(w, http.StatusInternalServerError, "Failed to journal update", jerr)
				return
			}
			queued = true
		}
	}

	status := http.StatusOK
	if queued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, MutationResponse{Task: toTaskDTO(*task), Queued: queued})
}

// SetAdminDone flips the admin override on a task.
// PUT /api/tasks/{id}/admin-done (admin)
func (h *Handler) SetAdminDone(w http.ResponseWriter, r *http.Request) {
	task, ok := h.visibleTask(w, r)
	if !ok {
		return
	}

	var req AdminDoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	now := h.now()
	if err := h.Store.SetAdminDone(r.Context(), task.ID, req.Done, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Task not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to set admin done", err)
		return
	}
	task.AdminDone = req.Done
	task.UpdatedAt = now

	queued := false
	if task.RowIndex > 0 {
		if err := h.Sheets.UpdateAdminDone(r.Context(), h.TasksSheet, task.RowIndex, req.Done); err != nil {
			h.log.Warn().Err(err).Str("task", task.ID).Msg("admin-done forward failed, journaling")
			if jerr := h.queueMutation(r, sheet.ActionUpdateAdminDone, task.RowIndex, adminDonePayload{Done: req.Done}); jerr != nil {
				writeError(w, http.StatusInternalServerError, "Failed to journal update", jerr)
				return
			}
			queued = true
		}
	}

	status := http.StatusOK
	if queued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, MutationResponse{Task: toTaskDTO(*task), Queued: queued})
}

// =============================================================================
// CALENDAR
// =============================================================================

// Calendar returns the pending occurrences in a date window, bucketed
// by day after the Sunday shift.
// GET /api/calendar?from=2024-01-01&to=2024-01-31
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r, h.now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	occs, err := h.occurrences(r, window)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build calendar", err)
		return
	}

	buckets := schedule.BucketByDay(occs)
	days := make([]CalendarDayDTO, 0, len(buckets))
	for _, d := range schedule.SortedBucketDays(buckets) {
		day := CalendarDayDTO{Date: d.String()}
		for _, o := range buckets[d] {
			day.Occurrences = append(day.Occurrences, OccurrenceDTO{
				TaskID:    o.TaskID,
				TaskName:  o.TaskName,
				Assignee:  o.Assignee,
				DueTime:   o.TimeOfDay,
				Frequency: o.Frequency,
			})
		}
		days = append(days, day)
	}

	writeJSON(w, http.StatusOK, CalendarResponse{
		From: window.From.String(),
		To:   window.To.String(),
		Days: days,
	})
}

// CalendarICS serves the same window as an iCalendar feed.
// GET /api/calendar.ics
func (h *Handler) CalendarICS(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r, h.now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	occs, err := h.occurrences(r, window)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build calendar", err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="tasks.ics"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(renderICS(occs)))
}

// occurrences expands every visible pending task into its working-day
// occurrences inside the window, with the Sunday shift applied.
func (h *Handler) occurrences(r *http.Request, window schedule.Window) ([]schedule.Occurrence, error) {
	ctx := r.Context()
	session := SessionFrom(ctx)

	all, err := h.Store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	cal, err := h.Store.WorkingDays(ctx)
	if err != nil {
		return nil, err
	}

	var occs []schedule.Occurrence
	for _, t := range tasks.Pending(tasks.VisibleTo(session, all)) {
		days := schedule.GenerateUntil(t.StartDate, t.Frequency(), cal, window.From.AddDays(-1), window.To)
		for _, d := range days {
			occs = append(occs, schedule.Occurrence{
				TaskID:    t.ID,
				TaskName:  t.Name,
				Assignee:  t.Assignee,
				Day:       d,
				TimeOfDay: t.DueTime,
				Frequency: string(t.Frequency()),
			})
		}
	}
	return occs, nil
}

func parseWindow(r *http.Request, now func() time.Time) (schedule.Window, error) {
	q := r.URL.Query()
	today := schedule.DayOf(now())

	from := today
	if s := q.Get("from"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return schedule.Window{}, fmt.Errorf("from must be YYYY-MM-DD")
		}
		from = schedule.DayOf(t)
	}

	to := from.AddDays(30)
	if s := q.Get("to"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return schedule.Window{}, fmt.Errorf("to must be YYYY-MM-DD")
		}
		to = schedule.DayOf(t)
	}

	if to.Before(from) {
		return schedule.Window{}, fmt.Errorf("to must not be before from")
	}
	return schedule.Window{From: from, To: to}, nil
}

// =============================================================================
// REPORTS
// =============================================================================

// CompletionReport returns per-assignee completion statistics for the
// tasks visible to the session.
// GET /api/reports/completion
func (h *Handler) CompletionReport(w http.ResponseWriter, r *http.Request) {
	session := SessionFrom(r.Context())

	all, err := h.Store.ListTasks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tasks", err)
		return
	}

	report := tasks.BuildCompletionReport(tasks.VisibleTo(session, all))

	dto := CompletionReportDTO{
		Total:       report.Total,
		Done:        report.Done,
		OverallRate: report.Overall.StringFixed(2),
		Assignees:   make([]AssigneeStatsDTO, len(report.Assignees)),
	}
	for i, a := range report.Assignees {
		dto.Assignees[i] = AssigneeStatsDTO{
			Assignee:       a.Assignee,
			Total:          a.Total,
			Done:           a.Done,
			Pending:        a.Pending,
			CompletionRate: a.CompletionRate.StringFixed(2),
		}
	}

	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// ADMIN
// =============================================================================

// TriggerSync refreshes the sheet cache immediately.
// POST /api/sync (admin)
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if h.Sync == nil {
		writeError(w, http.StatusServiceUnavailable, "Sync is not configured", nil)
		return
	}
	if err := h.Sync.RefreshNow(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, SyncResponse{Synced: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{Synced: true, SyncedAt: h.now().UTC().Format(time.RFC3339)})
}

// =============================================================================
// HELPERS
// =============================================================================

// visibleTask loads the {id} task and enforces session visibility.
// Writes the error response itself when the lookup fails.
func (h *Handler) visibleTask(w http.ResponseWriter, r *http.Request) (*tasks.Task, bool) {
	id := chi.URLParam(r, "id")
	session := SessionFrom(r.Context())

	task, err := h.Store.GetTask(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get task", err)
		return nil, false
	}
	// Hidden tasks read as absent, so the response does not leak their
	// existence to other assignees.
	if task == nil || len(tasks.VisibleTo(session, []tasks.Task{*task})) == 0 {
		writeError(w, http.StatusNotFound, "Task not found", nil)
		return nil, false
	}
	return task, true
}

// queueMutation journals a mutation whose forward to the spreadsheet
// endpoint failed, so the poller can replay it.
func (h *Handler) queueMutation(r *http.Request, action string, rowIndex int, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return h.Store.EnqueueJournal(r.Context(), sqlite.JournalEntry{
		ID:        uuid.NewString(),
		Action:    action,
		SheetName: h.TasksSheet,
		RowIndex:  rowIndex,
		Payload:   string(data),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
