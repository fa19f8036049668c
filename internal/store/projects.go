package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const projectColumns = "id, filename, content_type, source_bucket, source_key, source_url, duration_sec, status, error_message, created_at, updated_at"

func scanProject(scanner rowScanner) (*Project, error) {
	var (
		p            Project
		contentType  sql.NullString
		duration     sql.NullFloat64
		status       string
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&p.ID,
		&p.Filename,
		&contentType,
		&p.SourceBucket,
		&p.SourceKey,
		&p.SourceURL,
		&duration,
		&status,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	p.ContentType = contentType.String
	if duration.Valid {
		d := duration.Float64
		p.DurationSec = &d
	}
	p.Status = Status(status)
	p.ErrorMessage = errorMessage.String
	p.CreatedAt = parseTime(createdRaw)
	p.UpdatedAt = parseTime(updatedRaw)
	return &p, nil
}

// CreateProject inserts a project in the queued state. An empty ID is generated.
func (s *Store) CreateProject(ctx context.Context, p Project) (*Project, error) {
	if strings.TrimSpace(p.Filename) == "" {
		return nil, fmt.Errorf("%w: project filename is required", ErrInvariantViolation)
	}
	if p.SourceBucket == "" || p.SourceKey == "" {
		return nil, fmt.Errorf("%w: project source bucket and key are required", ErrInvariantViolation)
	}
	if p.DurationSec != nil && *p.DurationSec < 0 {
		return nil, fmt.Errorf("%w: negative duration", ErrInvariantViolation)
	}
	if p.ID == "" {
		p.ID = NewProjectID()
	}
	now := s.timestamp()
	ts := formatTime(now)

	_, err := s.db.Exec(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.Filename,
		nullableString(p.ContentType),
		p.SourceBucket,
		p.SourceKey,
		p.SourceURL,
		nullableFloat(p.DurationSec),
		StatusQueued,
		nil,
		ts,
		ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	return s.GetProject(ctx, p.ID)
}

// GetProject fetches a project by identifier.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListProjects returns projects newest first, optionally filtered by status.
func (s *Store) ListProjects(ctx context.Context, limit int, statuses ...Status) ([]*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
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
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// TransitionProject moves a project to status `to` with a single
// compare-and-set update. message is recorded only for StatusFailed.
// Re-applying the current status is a no-op; any other disallowed move
// returns ErrInvalidTransition.
func (s *Store) TransitionProject(ctx context.Context, id string, to Status, message string) error {
	from := AllowedFrom(to)
	if len(from) == 0 {
		return fmt.Errorf("%w: nothing may move to %s", ErrInvalidTransition, to)
	}
	args := []any{to}
	set := `status = ?, updated_at = ?`
	if to == StatusFailed {
		set = `status = ?, error_message = ?, updated_at = ?`
		args = append(args, nullableString(message))
	}
	args = append(args, formatTime(s.timestamp()), id)
	for _, st := range from {
		args = append(args, st)
	}

	res, err := s.db.Exec(ctx,
		`UPDATE projects SET `+set+` WHERE id = ? AND status IN (`+makePlaceholders(len(from))+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("transition project: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return s.explainRejected(ctx, id, to)
}

// RestartProject moves a failed project back to queued and clears its error.
func (s *Store) RestartProject(ctx context.Context, id string) error {
	res, err := s.db.Exec(ctx,
		`UPDATE projects SET status = ?, error_message = NULL, updated_at = ? WHERE id = ? AND status = ?`,
		StatusQueued, formatTime(s.timestamp()), id, StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("restart project: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s → %s (only failed projects restart)", ErrInvalidTransition, p.Status, StatusQueued)
}

func (s *Store) explainRejected(ctx context.Context, id string, to Status) error {
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return err
	}
	if p.Status == to {
		return nil
	}
	return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, p.Status, to)
}

// SetProjectDuration records a known duration in seconds.
func (s *Store) SetProjectDuration(ctx context.Context, id string, seconds float64) error {
	if seconds < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvariantViolation)
	}
	res, err := s.db.Exec(ctx,
		`UPDATE projects SET duration_sec = ?, updated_at = ? WHERE id = ?`,
		seconds, formatTime(s.timestamp()), id,
	)
	if err != nil {
		return fmt.Errorf("set project duration: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}
