/*
dto.go - Request/response data structures

PURPOSE:
  JSON shapes for the REST API. Kept separate from domain types so the
  wire format can evolve without touching tasks/ or schedule/.

CONVENTIONS:
  - Dates as "2006-01-02"
  - Timestamps as RFC3339
  - Completion rates as decimal strings ("33.33"), never floats

SEE ALSO:
  - handlers.go: Where these are populated
*/
package api

import (
	"time"

	"github.com/checkboard/delegation-engine/schedule"
	"github.com/checkboard/delegation-engine/tasks"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// LoginRequest is the POST /api/login body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the signed session token.
type LoginResponse struct {
	Token       string `json:"token"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	Department  string `json:"department"`
}

// TaskDTO is the wire form of a task.
type TaskDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Assignee    string `json:"assignee"`
	Department  string `json:"department,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	DueTime     string `json:"dueTime,omitempty"`
	Frequency   string `json:"frequency"`
	Status      string `json:"status"`
	AdminDone   bool   `json:"adminDone"`
	Done        bool   `json:"done"`
	Remarks     string `json:"remarks,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

func toTaskDTO(t tasks.Task) TaskDTO {
	return TaskDTO{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Assignee:    t.Assignee,
		Department:  t.Department,
		StartDate:   dayString(t.StartDate),
		DueTime:     t.DueTime,
		Frequency:   string(t.Frequency()),
		Status:      t.Status,
		AdminDone:   t.AdminDone,
		Done:        t.Done(),
		Remarks:     t.Remarks,
		CreatedAt:   timeString(t.CreatedAt),
		UpdatedAt:   timeString(t.UpdatedAt),
	}
}

func toTaskDTOs(ts []tasks.Task) []TaskDTO {
	dtos := make([]TaskDTO, len(ts))
	for i, t := range ts {
		dtos[i] = toTaskDTO(t)
	}
	return dtos
}

// CreateTaskRequest is the POST /api/tasks body (the assignment form).
type CreateTaskRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Assignee    string `json:"assignee"`
	Department  string `json:"department"`
	StartDate   string `json:"startDate"`
	DueTime     string `json:"dueTime"`
	Frequency   string `json:"frequency"`
	Remarks     string `json:"remarks"`
}

// UpdateStatusRequest is the PUT /api/tasks/{id}/status body.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// AdminDoneRequest is the PUT /api/tasks/{id}/admin-done body.
type AdminDoneRequest struct {
	Done bool `json:"done"`
}

// MutationResponse tells the caller whether the spreadsheet write
// landed or was queued for retry.
type MutationResponse struct {
	Task   TaskDTO `json:"task"`
	Queued bool    `json:"queued"`
}

// OccurrenceDTO is one generated task occurrence.
type OccurrenceDTO struct {
	TaskID    string `json:"taskId"`
	TaskName  string `json:"taskName"`
	Assignee  string `json:"assignee"`
	DueTime   string `json:"dueTime,omitempty"`
	Frequency string `json:"frequency"`
}

// CalendarDayDTO groups a day's occurrences.
type CalendarDayDTO struct {
	Date        string          `json:"date"`
	Occurrences []OccurrenceDTO `json:"occurrences"`
}

// CalendarResponse is the GET /api/calendar payload.
type CalendarResponse struct {
	From string           `json:"from"`
	To   string           `json:"to"`
	Days []CalendarDayDTO `json:"days"`
}

// AssigneeStatsDTO is one row of the completion report.
type AssigneeStatsDTO struct {
	Assignee       string `json:"assignee"`
	Total          int    `json:"total"`
	Done           int    `json:"done"`
	Pending        int    `json:"pending"`
	CompletionRate string `json:"completionRate"`
}

// CompletionReportDTO is the GET /api/reports/completion payload.
type CompletionReportDTO struct {
	Assignees   []AssigneeStatsDTO `json:"assignees"`
	Total       int                `json:"total"`
	Done        int                `json:"done"`
	OverallRate string             `json:"overallRate"`
}

// SyncResponse is the POST /api/sync payload.
type SyncResponse struct {
	Synced   bool   `json:"synced"`
	SyncedAt string `json:"syncedAt,omitempty"`
	Error    string `json:"error,omitempty"`
}

func dayString(d schedule.Day) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func timeString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
