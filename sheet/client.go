/*
client.go - HTTP client for the Apps Script spreadsheet endpoint

PURPOSE:
  Wraps the legacy web endpoint behind a typed client:

    GET  <base>?action=fetch&sheet=<name>   -> visualization JSON table
    POST <base> (multipart/form-data)       -> {success, error?, fileUrl?}

  The original dashboard fired mutations in no-cors mode and could not see
  whether a write landed. This client reads the real HTTP status and the
  success flag, and retries transient failures with backoff, so callers
  always learn the outcome.

RETRY POLICY:
  Network errors and 5xx responses are retried up to maxRetries times with
  exponential backoff. 4xx responses and {success:false} envelopes are
  returned immediately: retrying a rejected write will not change the
  answer.

SEE ALSO:
  - gviz.go: Response decoding
  - schema.go: rowData layouts
*/
package sheet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 500 * time.Millisecond
)

// Mutation actions accepted by the endpoint.
const (
	ActionInsert          = "insert"
	ActionUpdate          = "update"
	ActionUpdateTaskData  = "updateTaskData"
	ActionUpdateAdminDone = "updateAdminDone"
)

// ErrMutationRejected is returned when the endpoint answers with
// {success:false}. Use errors.Is; the wrapping error carries the reason.
var ErrMutationRejected = errors.New("mutation rejected by sheet endpoint")

// StatusError reports a non-2xx response from the endpoint.
type StatusError struct {
	Action string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sheet endpoint returned %d for %s", e.Code, e.Action)
}

// MutationResponse is the endpoint's write envelope.
type MutationResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	FileURL string `json:"fileUrl,omitempty"`
}

// Client talks to one Apps Script deployment.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
	maxRetries int
	retryDelay time.Duration
}

// NewClient builds a client for the given deployment URL.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With().Str("component", "sheet").Logger(),
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
}

// SetHTTPClient swaps the underlying http.Client, mainly for tests.
func (c *Client) SetHTTPClient(h *http.Client) { c.httpClient = h }

// =============================================================================
// FETCH
// =============================================================================

// FetchTable retrieves one sheet as a visualization table.
func (c *Client) FetchTable(ctx context.Context, sheetName string) (*Table, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	q.Set("action", "fetch")
	q.Set("sheet", sheetName)
	u.RawQuery = q.Encode()

	var table *Table
	err = c.withRetry(ctx, "fetch:"+sheetName, func() (retryable bool, err error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return false, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return true, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return resp.StatusCode >= 500, &StatusError{Action: "fetch", Code: resp.StatusCode}
		}

		table, err = DecodeTable(resp.Body)
		return false, err
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

// =============================================================================
// MUTATIONS
// =============================================================================

// InsertRow appends a positional row to a sheet.
func (c *Client) InsertRow(ctx context.Context, sheetName string, rowData []string) error {
	return c.mutate(ctx, ActionInsert, sheetName, map[string]string{
		"rowData": marshalRowData(rowData),
	})
}

// UpdateRow rewrites an entire row.
func (c *Client) UpdateRow(ctx context.Context, sheetName string, rowIndex int, rowData []string) error {
	return c.mutate(ctx, ActionUpdate, sheetName, map[string]string{
		"rowIndex": strconv.Itoa(rowIndex),
		"rowData":  marshalRowData(rowData),
	})
}

// UpdateTaskData updates a task row's status and timestamp in place.
func (c *Client) UpdateTaskData(ctx context.Context, sheetName string, rowIndex int, status string, updatedAt time.Time) error {
	return c.mutate(ctx, ActionUpdateTaskData, sheetName, map[string]string{
		"rowIndex":  strconv.Itoa(rowIndex),
		"status":    status,
		"updatedAt": FormatTimestamp(updatedAt),
	})
}

// UpdateAdminDone flips the admin-done override on a task row.
func (c *Client) UpdateAdminDone(ctx context.Context, sheetName string, rowIndex int, done bool) error {
	return c.mutate(ctx, ActionUpdateAdminDone, sheetName, map[string]string{
		"rowIndex":  strconv.Itoa(rowIndex),
		"adminDone": boolCell(done),
	})
}

func (c *Client) mutate(ctx context.Context, action, sheetName string, fields map[string]string) error {
	return c.withRetry(ctx, action, func() (retryable bool, err error) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		form := map[string]string{
			"sheetName": sheetName,
			"action":    action,
		}
		for k, v := range fields {
			form[k] = v
		}
		for k, v := range form {
			if err := mw.WriteField(k, v); err != nil {
				return false, err
			}
		}
		if err := mw.Close(); err != nil {
			return false, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, &body)
		if err != nil {
			return false, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return true, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return resp.StatusCode >= 500, &StatusError{Action: action, Code: resp.StatusCode}
		}

		var mr MutationResponse
		if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
			return false, fmt.Errorf("decode mutation response: %w", err)
		}
		if !mr.Success {
			return false, fmt.Errorf("%w: %s %s: %s", ErrMutationRejected, action, sheetName, mr.Error)
		}
		return false, nil
	})
}

// withRetry runs fn up to maxRetries+1 times, backing off exponentially
// between attempts while the failure is retryable.
func (c *Client) withRetry(ctx context.Context, what string, fn func() (retryable bool, err error)) error {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.log.Warn().Str("op", what).Int("attempt", attempt).Err(lastErr).
				Msg("retrying sheet request")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}

		retryable, err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return fmt.Errorf("sheet %s failed after %d attempts: %w", what, c.maxRetries+1, lastErr)
}

func marshalRowData(rowData []string) string {
	b, _ := json.Marshal(rowData)
	return string(b)
}
