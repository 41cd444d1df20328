/*
Package sqlite provides the local cache behind the delegation engine.

PURPOSE:
  The spreadsheet endpoint is slow, rate-limited, and occasionally down.
  The engine therefore serves reads from a local SQLite cache that the sync
  poller refreshes, and journals outbound writes that failed to forward so
  they can be retried.

KEY TABLES:
  tasks:        Cached task rows, keyed by generated ID, carrying the
                original sheet row index for update forwarding
  users:        Cached Users sheet rows (login lookups)
  working_days: The working-day calendar
  sync_journal: Outbound mutations that failed to reach the sheet endpoint

CONCURRENCY:
  A sync.RWMutex serializes writers. SQLite is opened in WAL mode so
  readers do not block.

USAGE:
  store, err := sqlite.New(":memory:")
  if err != nil { ... }
  defer store.Close()

SEE ALSO:
  - api/poller.go: Refreshes the cache and drains the journal
  - sheet/: The upstream being cached
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/checkboard/delegation-engine/schedule"
	"github.com/checkboard/delegation-engine/tasks"
)

const (
	dayFormat  = "2006-01-02"
	timeFormat = time.RFC3339
)

// Store is the SQLite-backed cache.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at path. Use ":memory:" for tests.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		assignee TEXT,
		department TEXT,
		start_date TEXT,
		due_time TEXT,
		frequency TEXT,
		status TEXT,
		admin_done BOOLEAN NOT NULL DEFAULT FALSE,
		remarks TEXT,
		created_at TEXT,
		updated_at TEXT,
		row_index INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_row ON tasks(row_index)
		WHERE row_index > 0;

	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		display_name TEXT,
		email TEXT,
		department TEXT,
		role TEXT NOT NULL DEFAULT 'user',
		password TEXT
	);

	CREATE TABLE IF NOT EXISTS working_days (
		day TEXT PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS sync_journal (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		sheet_name TEXT NOT NULL,
		row_index INTEGER NOT NULL DEFAULT 0,
		payload_json TEXT,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_journal_status ON sync_journal(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TASKS
// =============================================================================

// SaveTask inserts or replaces a task row.
func (s *Store) SaveTask(ctx context.Context, t tasks.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveTask(ctx, s.db, t)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveTask(ctx context.Context, db execer, t tasks.Task) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO tasks
		(id, name, description, assignee, department, start_date, due_time,
		 frequency, status, admin_done, remarks, created_at, updated_at, row_index)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Description, t.Assignee, t.Department,
		dayString(t.StartDate), t.DueTime, t.FrequencyRaw, t.Status,
		t.AdminDone, t.Remarks, timeString(t.CreatedAt), timeString(t.UpdatedAt),
		t.RowIndex,
	)
	return err
}

// ReplaceTasks atomically swaps the cached task set for a fresh sheet
// snapshot, preserving the IDs of rows already known by row index.
func (s *Store) ReplaceTasks(ctx context.Context, ts []tasks.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	existing := make(map[int]string)
	rows, err := tx.QueryContext(ctx, `SELECT row_index, id FROM tasks WHERE row_index > 0`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var idx int
		var id string
		if err := rows.Scan(&idx, &id); err != nil {
			rows.Close()
			return err
		}
		existing[idx] = id
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return err
	}
	for _, t := range ts {
		// Sheet snapshots carry no IDs; keep the ID a row already had,
		// mint one for rows never seen before.
		if t.ID == "" {
			if id, ok := existing[t.RowIndex]; ok {
				t.ID = id
			} else {
				t.ID = uuid.NewString()
			}
		}
		if err := saveTask(ctx, tx, t); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetTask returns a task by ID, or nil when absent.
func (s *Store) GetTask(ctx context.Context, id string) (*tasks.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, taskSelect+` WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTasks returns all cached tasks ordered by sheet row.
func (s *Store) ListTasks(ctx context.Context) ([]tasks.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, taskSelect+` ORDER BY row_index, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tasks.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTaskStatus sets a task's status and updated-at stamp.
// Returns sql.ErrNoRows when the task is unknown.
func (s *Store) UpdateTaskStatus(ctx context.Context, id, status string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		status, timeString(updatedAt), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetAdminDone flips the admin override on a task.
func (s *Store) SetAdminDone(ctx context.Context, id string, done bool, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET admin_done = ?, updated_at = ? WHERE id = ?`,
		done, timeString(updatedAt), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

const taskSelect = `
	SELECT id, name, description, assignee, department, start_date, due_time,
	       frequency, status, admin_done, remarks, created_at, updated_at, row_index
	FROM tasks`

type rowScanner interface{ Scan(dest ...any) error }

func scanTask(r rowScanner) (tasks.Task, error) {
	var t tasks.Task
	var start, created, updated string
	err := r.Scan(&t.ID, &t.Name, &t.Description, &t.Assignee, &t.Department,
		&start, &t.DueTime, &t.FrequencyRaw, &t.Status, &t.AdminDone,
		&t.Remarks, &created, &updated, &t.RowIndex)
	if err != nil {
		return t, err
	}
	t.StartDate = parseDay(start)
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return t, nil
}

// =============================================================================
// USERS
// =============================================================================

// ReplaceUsers swaps the cached user set.
func (s *Store) ReplaceUsers(ctx context.Context, us []tasks.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return err
	}
	for _, u := range us {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO users (username, display_name, email, department, role, password)
			VALUES (?, ?, ?, ?, ?, ?)`,
			u.Username, u.DisplayName, u.Email, u.Department, string(u.Role), u.Password)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetUser looks a user up by username, case-insensitively. Returns nil
// when absent.
func (s *Store) GetUser(ctx context.Context, username string) (*tasks.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT username, display_name, email, department, role, password
		FROM users WHERE username = ? COLLATE NOCASE`, username)

	var u tasks.User
	var role string
	err := row.Scan(&u.Username, &u.DisplayName, &u.Email, &u.Department, &role, &u.Password)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Role = tasks.ParseRole(role)
	return &u, nil
}

// =============================================================================
// WORKING DAYS
// =============================================================================

// ReplaceWorkingDays swaps the cached working-day calendar.
func (s *Store) ReplaceWorkingDays(ctx context.Context, days []schedule.Day) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM working_days`); err != nil {
		return err
	}
	for _, d := range days {
		if d.IsZero() {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO working_days (day) VALUES (?)`, dayString(d)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// WorkingDays returns the cached calendar.
func (s *Store) WorkingDays(ctx context.Context) (schedule.Calendar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT day FROM working_days ORDER BY day`)
	if err != nil {
		return schedule.Calendar{}, err
	}
	defer rows.Close()

	var days []schedule.Day
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return schedule.Calendar{}, err
		}
		if d := parseDay(v); !d.IsZero() {
			days = append(days, d)
		}
	}
	return schedule.NewCalendar(days), rows.Err()
}

// =============================================================================
// SYNC JOURNAL
// =============================================================================

// JournalEntry is an outbound mutation that failed to reach the sheet
// endpoint and awaits retry.
type JournalEntry struct {
	ID        string
	Action    string
	SheetName string
	RowIndex  int
	Payload   string
	Attempts  int
	LastError string
	Status    string
	CreatedAt time.Time
}

// Journal statuses.
const (
	JournalPending = "pending"
	JournalDone    = "done"
	JournalFailed  = "failed"
)

// maxJournalAttempts is the parking threshold for a journaled mutation.
const maxJournalAttempts = 10

// EnqueueJournal records a failed outbound mutation for later retry.
func (s *Store) EnqueueJournal(ctx context.Context, e JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := timeString(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_journal
		(id, action, sheet_name, row_index, payload_json, attempts, last_error, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, e.SheetName, e.RowIndex, e.Payload, e.Attempts,
		e.LastError, JournalPending, now, now)
	return err
}

// PendingJournal lists entries awaiting retry, oldest first.
func (s *Store) PendingJournal(ctx context.Context) ([]JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, sheet_name, row_index, payload_json, attempts, last_error, status, created_at
		FROM sync_journal WHERE status = ? ORDER BY created_at`, JournalPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var created string
		if err := rows.Scan(&e.ID, &e.Action, &e.SheetName, &e.RowIndex,
			&e.Payload, &e.Attempts, &e.LastError, &e.Status, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ResolveJournal marks an entry done after a successful replay.
func (s *Store) ResolveJournal(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_journal SET status = ?, updated_at = ? WHERE id = ?`,
		JournalDone, timeString(time.Now()), id)
	return err
}

// FailJournal bumps an entry's attempt count; past maxJournalAttempts the
// entry is parked as failed so the poller stops replaying it.
func (s *Store) FailJournal(ctx context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_journal
		SET attempts = attempts + 1,
		    last_error = ?,
		    status = CASE WHEN attempts + 1 >= ? THEN ? ELSE ? END,
		    updated_at = ?
		WHERE id = ?`,
		reason, maxJournalAttempts, JournalFailed, JournalPending,
		timeString(time.Now()), id)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func dayString(d schedule.Day) string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(dayFormat)
}

func parseDay(s string) schedule.Day {
	if s == "" {
		return schedule.Day{}
	}
	t, err := time.Parse(dayFormat, s)
	if err != nil {
		return schedule.Day{}
	}
	return schedule.DayOf(t)
}

func timeString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
