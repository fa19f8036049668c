package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"clipforge/internal/stage"
	"clipforge/internal/store"
)

// ErrTaskNotFound is returned when a task id does not exist.
var ErrTaskNotFound = errors.New("task not found")

// ErrNotClaimed is returned when a task is no longer running under the caller's claim.
var ErrNotClaimed = errors.New("task not claimed")

const claimAttempts = 5

const taskColumns = "seq, id, stage, project_id, asset_id, clip_id, status, deliveries, max_deliveries, available_at, claimed_by, claimed_at, heartbeat_at, last_error, created_at, updated_at"

// Store manages tasks in the shared database.
type Store struct {
	db  *store.DB
	now func() time.Time
}

// New wraps the shared database handle.
func New(db *store.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

func scanTask(scanner rowScanner) (*Task, error) {
	var (
		t           Task
		stageName   string
		assetID     sql.NullString
		clipID      sql.NullString
		status      string
		available   sql.NullString
		claimedBy   sql.NullString
		claimedAt   sql.NullString
		heartbeatAt sql.NullString
		lastError   sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&t.Seq,
		&t.ID,
		&stageName,
		&t.Args.ProjectID,
		&assetID,
		&clipID,
		&status,
		&t.Deliveries,
		&t.MaxDeliveries,
		&available,
		&claimedBy,
		&claimedAt,
		&heartbeatAt,
		&lastError,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	t.Stage = stage.Name(stageName)
	t.Args.AssetID = assetID.String
	t.Args.ClipID = clipID.String
	t.Status = Status(status)
	t.AvailableAt = parseTime(available)
	t.ClaimedBy = claimedBy.String
	t.ClaimedAt = parseTimePtr(claimedAt)
	t.HeartbeatAt = parseTimePtr(heartbeatAt)
	t.LastError = lastError.String
	t.CreatedAt = parseTime(createdRaw)
	t.UpdatedAt = parseTime(updatedRaw)
	return &t, nil
}

// Enqueue stores a pending task that becomes claimable immediately.
func (s *Store) Enqueue(ctx context.Context, name stage.Name, args stage.Args, maxDeliveries int) (*Task, error) {
	if err := args.Validate(name); err != nil {
		return nil, err
	}
	if maxDeliveries <= 0 {
		maxDeliveries = 1
	}
	id := uuid.NewString()
	ts := formatTime(s.timestamp())
	_, err := s.db.Exec(ctx,
		`INSERT INTO tasks (id, stage, project_id, asset_id, clip_id, status, deliveries, max_deliveries, available_at, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		id,
		name,
		args.ProjectID,
		nullableString(args.AssetID),
		nullableString(args.ClipID),
		StatusPending,
		maxDeliveries,
		ts,
		ts,
		ts,
	)
	if err != nil {
		return nil, fmt.Errorf("enqueue task: %w", err)
	}
	return s.Get(ctx, id)
}

// Get fetches a task by id.
func (s *Store) Get(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// Claim hands the oldest available pending task to worker. It returns nil
// when nothing is available. The update only succeeds while the row is still
// pending, so two workers racing for the same row cannot both win.
func (s *Store) Claim(ctx context.Context, worker string) (*Task, error) {
	for range claimAttempts {
		now := formatTime(s.timestamp())
		var id string
		err := s.db.QueryRow(ctx,
			`SELECT id FROM tasks WHERE status = ? AND available_at <= ? ORDER BY available_at, seq LIMIT 1`,
			StatusPending, now,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("select claimable task: %w", err)
		}

		res, err := s.db.Exec(ctx,
			`UPDATE tasks SET status = ?, deliveries = deliveries + 1, claimed_by = ?, claimed_at = ?, heartbeat_at = ?, updated_at = ?
             WHERE id = ? AND status = ?`,
			StatusRunning, worker, now, now, now, id, StatusPending,
		)
		if err != nil {
			return nil, fmt.Errorf("claim task: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim task: %w", err)
		}
		if n == 1 {
			return s.Get(ctx, id)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// Complete marks a running task done.
func (s *Store) Complete(ctx context.Context, t *Task) error {
	res, err := s.db.Exec(ctx,
		`UPDATE tasks SET status = ?, last_error = NULL, updated_at = ? WHERE id = ? AND status = ? AND claimed_by = ?`,
		StatusDone, formatTime(s.timestamp()), t.ID, StatusRunning, t.ClaimedBy,
	)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return expectOne(res, t.ID)
}

// Fail records a failed delivery. The task returns to pending at retryAt, or
// becomes dead when its deliveries are spent. The resulting status is returned.
func (s *Store) Fail(ctx context.Context, t *Task, cause error, retryAt time.Time) (Status, error) {
	next := StatusPending
	if t.Exhausted() {
		next = StatusDead
	}
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	res, err := s.db.Exec(ctx,
		`UPDATE tasks SET status = ?, available_at = ?, last_error = ?, claimed_by = NULL, claimed_at = NULL, heartbeat_at = NULL, updated_at = ?
         WHERE id = ? AND status = ? AND claimed_by = ?`,
		next,
		formatTime(retryAt),
		nullableString(message),
		formatTime(s.timestamp()),
		t.ID,
		StatusRunning,
		t.ClaimedBy,
	)
	if err != nil {
		return "", fmt.Errorf("fail task: %w", err)
	}
	if err := expectOne(res, t.ID); err != nil {
		return "", err
	}
	return next, nil
}

// Release hands a running task back to pending without spending the
// delivery it was claimed with. Used when work is interrupted by shutdown.
func (s *Store) Release(ctx context.Context, t *Task) error {
	now := formatTime(s.timestamp())
	res, err := s.db.Exec(ctx,
		`UPDATE tasks SET status = ?, deliveries = CASE WHEN deliveries > 0 THEN deliveries - 1 ELSE 0 END,
             available_at = ?, claimed_by = NULL, claimed_at = NULL, heartbeat_at = NULL, updated_at = ?
         WHERE id = ? AND status = ? AND claimed_by = ?`,
		StatusPending, now, now, t.ID, StatusRunning, t.ClaimedBy,
	)
	if err != nil {
		return fmt.Errorf("release task: %w", err)
	}
	return expectOne(res, t.ID)
}

// Heartbeat refreshes the heartbeat of a running task.
func (s *Store) Heartbeat(ctx context.Context, t *Task) error {
	now := formatTime(s.timestamp())
	res, err := s.db.Exec(ctx,
		`UPDATE tasks SET heartbeat_at = ?, updated_at = ? WHERE id = ? AND status = ? AND claimed_by = ?`,
		now, now, t.ID, StatusRunning, t.ClaimedBy,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return expectOne(res, t.ID)
}

// ReclaimStale returns running tasks whose heartbeat is older than cutoff to
// pending, or marks them dead when their deliveries are spent.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := formatTime(s.timestamp())
	res, err := s.db.Exec(ctx,
		`UPDATE tasks
         SET status = CASE WHEN deliveries >= max_deliveries THEN ? ELSE ? END,
             available_at = ?, last_error = ?, claimed_by = NULL, claimed_at = NULL, heartbeat_at = NULL, updated_at = ?
         WHERE status = ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ?`,
		StatusDead,
		StatusPending,
		now,
		"reclaimed after heartbeat timeout",
		now,
		StatusRunning,
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale tasks: %w", err)
	}
	return res.RowsAffected()
}

// List returns tasks newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, limit int, statuses ...Status) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	query += ` ORDER BY created_at DESC, seq DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

// ListForProject returns a project's tasks in creation order.
func (s *Store) ListForProject(ctx context.Context, projectID string) ([]*Task, error) {
	return s.query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE project_id = ? ORDER BY created_at, seq`, projectID)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*Task, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Stats counts tasks by status.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.Query(ctx, `SELECT status, COUNT(1) FROM tasks GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		switch Status(status) {
		case StatusPending:
			stats.Pending = count
		case StatusRunning:
			stats.Running = count
		case StatusDone:
			stats.Done = count
		case StatusDead:
			stats.Dead = count
		}
	}
	return stats, rows.Err()
}

// RetryDead moves dead tasks back to pending with a fresh delivery budget.
// With no ids every dead task is retried.
func (s *Store) RetryDead(ctx context.Context, ids ...string) (int64, error) {
	now := formatTime(s.timestamp())
	query := `UPDATE tasks SET status = ?, deliveries = 0, available_at = ?, last_error = NULL, updated_at = ? WHERE status = ?`
	args := []any{StatusPending, now, now, StatusDead}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, strings.TrimSpace(id))
		}
	}
	res, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry dead tasks: %w", err)
	}
	return res.RowsAffected()
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotClaimed)
	}
	return nil
}
