package sheet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, zerolog.Nop())
	c.retryDelay = time.Millisecond
	return c
}

func TestClient_FetchTable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "fetch", r.URL.Query().Get("action"))
		assert.Equal(t, "Tasks", r.URL.Query().Get("sheet"))
		w.Write([]byte(tasksTableJSON))
	})

	table, err := c.FetchTable(context.Background(), "Tasks")
	require.NoError(t, err)
	assert.Len(t, table.DataRows(), 3)
}

func TestClient_FetchTable_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(tasksTableJSON))
	})

	_, err := c.FetchTable(context.Background(), "Tasks")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_FetchTable_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.FetchTable(context.Background(), "Missing")
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_InsertRow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, ActionInsert, r.FormValue("action"))
		assert.Equal(t, "Tasks", r.FormValue("sheetName"))

		var rowData []string
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("rowData")), &rowData))
		assert.Equal(t, "Fridge temp check", rowData[0])

		json.NewEncoder(w).Encode(MutationResponse{Success: true})
	})

	err := c.InsertRow(context.Background(), "Tasks", []string{"Fridge temp check", "", "alice"})
	assert.NoError(t, err)
}

func TestClient_UpdateTaskData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, ActionUpdateTaskData, r.FormValue("action"))
		assert.Equal(t, "7", r.FormValue("rowIndex"))
		assert.Equal(t, "done", r.FormValue("status"))
		assert.Equal(t, "05/03/2024 14:07:09", r.FormValue("updatedAt"))

		json.NewEncoder(w).Encode(MutationResponse{Success: true})
	})

	err := c.UpdateTaskData(context.Background(), "Tasks", 7,
		"done", time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC))
	assert.NoError(t, err)
}

func TestClient_MutationRejected(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(MutationResponse{Success: false, Error: "row locked"})
	})

	err := c.UpdateAdminDone(context.Background(), "Tasks", 3, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMutationRejected)
	assert.Contains(t, err.Error(), "row locked")
	// A rejected write must not be retried.
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RetryExhaustion(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := c.InsertRow(context.Background(), "Tasks", []string{"x"})
	require.Error(t, err)
	// Initial attempt plus maxRetries.
	assert.Equal(t, int32(defaultMaxRetries+1), calls.Load())
}

func TestClient_ContextCancelledDuringBackoff(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c.retryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.InsertRow(ctx, "Tasks", []string{"x"}) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not interrupt backoff")
	}
}
