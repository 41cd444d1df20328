/*
schema.go - Positional column to named field mapping

PURPOSE:
  The spreadsheet addresses fields by column position. This file is the
  single place those positions exist: each sheet gets one adapter that maps
  a visualization Row onto a named domain struct, and one that renders a
  struct back into the positional rowData array the mutation endpoint
  expects. Nothing outside this file knows a column number.

SHEET LAYOUTS:
  Tasks:       name | description | assignee | department | start date |
               due time | frequency | status | admin done | remarks |
               created at
  Users:       username | display name | email | department | role | password
  WorkingDays: date

ROW INDEXING:
  The sheet's header occupies row 1, so data row i (0-based over DataRows)
  lives at spreadsheet row i+2. RowIndex carries that so updates can target
  the legacy endpoint.
*/
package sheet

import (
	"github.com/checkboard/delegation-engine/schedule"
	"github.com/checkboard/delegation-engine/tasks"
)

// Tasks sheet columns.
const (
	taskColName = iota
	taskColDescription
	taskColAssignee
	taskColDepartment
	taskColStartDate
	taskColDueTime
	taskColFrequency
	taskColStatus
	taskColAdminDone
	taskColRemarks
	taskColCreatedAt
)

// Users sheet columns.
const (
	userColUsername = iota
	userColDisplayName
	userColEmail
	userColDepartment
	userColRole
	userColPassword
)

// firstDataRow is the spreadsheet row number of the first data row.
const firstDataRow = 2

// TasksFromTable maps the Tasks sheet onto Task records. Rows without a
// task name are skipped; rows with an unparseable start date keep a zero
// StartDate (the generator treats those as producing no occurrences).
func TasksFromTable(t *Table) []tasks.Task {
	rows := t.DataRows()
	out := make([]tasks.Task, 0, len(rows))
	for i, row := range rows {
		name := row.Str(taskColName)
		if name == "" {
			continue
		}
		start, _ := row.Day(taskColStartDate)
		task := tasks.Task{
			Name:         name,
			Description:  row.Str(taskColDescription),
			Assignee:     row.Str(taskColAssignee),
			Department:   row.Str(taskColDepartment),
			StartDate:    start,
			DueTime:      row.Str(taskColDueTime),
			FrequencyRaw: row.Str(taskColFrequency),
			Status:       row.Str(taskColStatus),
			AdminDone:    row.Bool(taskColAdminDone),
			Remarks:      row.Str(taskColRemarks),
			CreatedAt:    ParseTimestamp(row.Str(taskColCreatedAt)),
			RowIndex:     i + firstDataRow,
		}
		out = append(out, task)
	}
	return out
}

// TaskRowData renders a task into the positional rowData array for the
// mutation endpoint, dates in the sheet's textual layout.
func TaskRowData(t tasks.Task) []string {
	return []string{
		t.Name,
		t.Description,
		t.Assignee,
		t.Department,
		FormatDate(t.StartDate),
		t.DueTime,
		t.FrequencyRaw,
		t.Status,
		boolCell(t.AdminDone),
		t.Remarks,
		FormatTimestamp(t.CreatedAt),
	}
}

// UsersFromTable maps the Users sheet onto User records. Rows without a
// username are skipped.
func UsersFromTable(t *Table) []tasks.User {
	rows := t.DataRows()
	out := make([]tasks.User, 0, len(rows))
	for _, row := range rows {
		username := row.Str(userColUsername)
		if username == "" {
			continue
		}
		out = append(out, tasks.User{
			Username:    username,
			DisplayName: row.Str(userColDisplayName),
			Email:       row.Str(userColEmail),
			Department:  row.Str(userColDepartment),
			Role:        tasks.ParseRole(row.Str(userColRole)),
			Password:    row.Str(userColPassword),
		})
	}
	return out
}

// WorkingDaysFromTable maps the WorkingDays sheet (single date column)
// onto days. Unparseable cells are dropped silently, matching the render
// path's degrade-to-placeholder behavior.
func WorkingDaysFromTable(t *Table) []schedule.Day {
	rows := t.DataRows()
	out := make([]schedule.Day, 0, len(rows))
	for _, row := range rows {
		if d, ok := row.Day(0); ok {
			out = append(out, d)
		}
	}
	return out
}

func boolCell(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
