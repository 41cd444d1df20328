package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkboard/delegation-engine/holidays"
	"github.com/checkboard/delegation-engine/schedule"
	"github.com/checkboard/delegation-engine/sheet"
	"github.com/checkboard/delegation-engine/store/sqlite"
)

func cellRow(values ...any) map[string]any {
	cells := make([]map[string]any, len(values))
	for i, v := range values {
		cells[i] = map[string]any{"v": v}
	}
	return map[string]any{"c": cells}
}

func gvizBody(t *testing.T, rows ...map[string]any) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"table": map[string]any{"cols": []any{}, "rows": rows},
	})
	require.NoError(t, err)
	return body
}

// fakeSheets serves gviz tables per sheet name and accepts mutations.
type fakeSheets struct {
	tables map[string][]byte
	reject bool

	mu        sync.Mutex
	mutations []string
}

func (fs *fakeSheets) recordedMutations() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.mutations...)
}

func (fs *fakeSheets) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			fs.mu.Lock()
			fs.mutations = append(fs.mutations, r.FormValue("action"))
			fs.mu.Unlock()
			if fs.reject {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Write([]byte(`{"success":true}`))
			return
		}
		body, ok := fs.tables[r.URL.Query().Get("sheet")]
		if !ok {
			body = []byte(`{"table":{"cols":[],"rows":[]}}`)
		}
		w.Write(body)
	}
}

func newPollerFixture(t *testing.T, fs *fakeSheets, feed *holidays.Feed) (*sqlite.Store, *Poller) {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(fs.handler(t))
	t.Cleanup(srv.Close)

	client := sheet.NewClient(srv.URL, zerolog.Nop())
	p := NewPoller(store, client, feed, PollerConfig{
		TasksSheet:       "Tasks",
		UsersSheet:       "Users",
		WorkingDaysSheet: "WorkingDays",
		Interval:         time.Minute,
	}, zerolog.Nop())
	return store, p
}

func TestRefreshPopulatesStore(t *testing.T) {
	fs := &fakeSheets{tables: map[string][]byte{
		"Tasks": gvizBody(t,
			cellRow("Task", "Description", "Assignee", "Dept", "Start", "Due", "Freq", "Status", "Admin", "Remarks", "Created"),
			cellRow("Submit weekly report", "", "alice", "Ops", "01/01/2024", "17:00", "Weekly", "Pending", "", "", "01/01/2024 09:00:00"),
			cellRow("Reconcile invoices", "", "bob", "", "02/01/2024", "", "Daily", "Pending", "", "", ""),
		),
		"Users": gvizBody(t,
			cellRow("Username", "Display", "Email", "Dept", "Role", "Password"),
			cellRow("alice", "Alice Wong", "alice@example.com", "Ops", "user", "pw"),
		),
		"WorkingDays": gvizBody(t,
			cellRow("Date"),
			cellRow("08/01/2024"),
			cellRow("09/01/2024"),
		),
	}}

	store, p := newPollerFixture(t, fs, nil)
	require.NoError(t, p.RefreshNow(context.Background()))

	ts, err := store.ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, ts, 2)
	assert.Equal(t, "Submit weekly report", ts[0].Name)
	assert.Equal(t, schedule.Weekly, ts[0].Frequency())
	assert.Equal(t, 2, ts[0].RowIndex, "first data row is sheet row 2")

	u, err := store.GetUser(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "Alice Wong", u.DisplayName)

	cal, err := store.WorkingDays(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, cal.Len())
	assert.True(t, cal.Contains(schedule.NewDay(2024, time.January, 8)))
}

func TestRefreshKeepsIDsStableAcrossSyncs(t *testing.T) {
	fs := &fakeSheets{tables: map[string][]byte{
		"Tasks": gvizBody(t,
			cellRow("Task"),
			cellRow("Submit weekly report"),
		),
	}}

	store, p := newPollerFixture(t, fs, nil)
	require.NoError(t, p.RefreshNow(context.Background()))

	first, err := store.ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	require.NoError(t, p.RefreshNow(context.Background()))
	second, err := store.ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, second, 1)

	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestRefreshDerivesWorkingDaysFromHolidayFeed(t *testing.T) {
	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n" +
			"BEGIN:VEVENT\r\nUID:nyd\r\nDTSTART;VALUE=DATE:20260101\r\nSUMMARY:New Year\r\nEND:VEVENT\r\n" +
			"END:VCALENDAR\r\n"))
	}))
	t.Cleanup(feedSrv.Close)

	fs := &fakeSheets{tables: map[string][]byte{}}
	store, p := newPollerFixture(t, fs, holidays.NewFeed(feedSrv.URL, zerolog.Nop()))
	require.NoError(t, p.RefreshNow(context.Background()))

	cal, err := store.WorkingDays(context.Background())
	require.NoError(t, err)
	assert.False(t, cal.IsEmpty(), "Mon-Sat calendar derived when the sheet is empty")
	for _, d := range cal.Days() {
		assert.NotEqual(t, time.Sunday, d.Weekday())
	}
}

func TestDrainJournalReplaysPending(t *testing.T) {
	fs := &fakeSheets{tables: map[string][]byte{}}
	store, p := newPollerFixture(t, fs, nil)

	payload, _ := json.Marshal(statusPayload{Status: "Done", UpdatedAt: time.Now()})
	require.NoError(t, store.EnqueueJournal(context.Background(), sqlite.JournalEntry{
		ID:        "j1",
		Action:    sheet.ActionUpdateTaskData,
		SheetName: "Tasks",
		RowIndex:  4,
		Payload:   string(payload),
	}))

	require.NoError(t, p.RefreshNow(context.Background()))

	assert.Equal(t, []string{"updateTaskData"}, fs.recordedMutations())
	pending, err := store.PendingJournal(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDrainJournalKeepsFailedEntriesPending(t *testing.T) {
	fs := &fakeSheets{tables: map[string][]byte{}, reject: true}
	store, p := newPollerFixture(t, fs, nil)

	payload, _ := json.Marshal(adminDonePayload{Done: true})
	require.NoError(t, store.EnqueueJournal(context.Background(), sqlite.JournalEntry{
		ID:        "j1",
		Action:    sheet.ActionUpdateAdminDone,
		SheetName: "Tasks",
		RowIndex:  4,
		Payload:   string(payload),
	}))

	require.NoError(t, p.RefreshNow(context.Background()))

	pending, err := store.PendingJournal(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.NotEmpty(t, pending[0].LastError)
}

func TestReplayRejectsUnknownAction(t *testing.T) {
	fs := &fakeSheets{tables: map[string][]byte{}}
	_, p := newPollerFixture(t, fs, nil)

	err := p.replay(context.Background(), sqlite.JournalEntry{ID: "j1", Action: "dropTable"})
	assert.Error(t, err)
}
