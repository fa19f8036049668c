package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const clipColumns = "seq, id, project_id, start_sec, end_sec, title, reason, score, snapped_to_pause, preview_url, final_url, state, created_at, updated_at"

func scanClip(scanner rowScanner) (*Clip, error) {
	var (
		c          Clip
		title      sql.NullString
		reason     sql.NullString
		snapped    sql.NullInt64
		previewURL sql.NullString
		finalURL   sql.NullString
		state      string
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&c.Seq,
		&c.ID,
		&c.ProjectID,
		&c.StartSec,
		&c.EndSec,
		&title,
		&reason,
		&c.Score,
		&snapped,
		&previewURL,
		&finalURL,
		&state,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	c.Title = title.String
	c.Reason = reason.String
	c.SnappedToPause = snapped.Valid && snapped.Int64 != 0
	c.PreviewURL = previewURL.String
	c.FinalURL = finalURL.String
	c.State = ClipState(state)
	c.CreatedAt = parseTime(createdRaw)
	c.UpdatedAt = parseTime(updatedRaw)
	return &c, nil
}

// CreateClip validates the window against the project and inserts the clip.
// Windows with end <= start, a negative start, or an end past a known project
// duration are rejected with ErrInvariantViolation before anything is written.
func (s *Store) CreateClip(ctx context.Context, c Clip) (*Clip, error) {
	if c.EndSec <= c.StartSec {
		return nil, fmt.Errorf("%w: clip end %.3f must be after start %.3f", ErrInvariantViolation, c.EndSec, c.StartSec)
	}
	if c.StartSec < 0 {
		return nil, fmt.Errorf("%w: clip start %.3f is negative", ErrInvariantViolation, c.StartSec)
	}
	project, err := s.GetProject(ctx, c.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.DurationSec != nil && c.EndSec > *project.DurationSec {
		return nil, fmt.Errorf("%w: clip end %.3f exceeds project duration %.3f", ErrInvariantViolation, c.EndSec, *project.DurationSec)
	}
	if c.State == "" {
		c.State = ClipSuggested
	}
	if !c.State.Valid() {
		return nil, fmt.Errorf("%w: unknown clip state %q", ErrInvariantViolation, c.State)
	}
	if c.ID == "" {
		c.ID = newID()
	}
	ts := formatTime(s.timestamp())

	_, err = s.db.Exec(ctx,
		`INSERT INTO clips (id, project_id, start_sec, end_sec, title, reason, score, snapped_to_pause, preview_url, final_url, state, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.ProjectID,
		c.StartSec,
		c.EndSec,
		nullableString(c.Title),
		nullableString(c.Reason),
		c.Score,
		boolToInt(c.SnappedToPause),
		nullableString(c.PreviewURL),
		nullableString(c.FinalURL),
		c.State,
		ts,
		ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert clip: %w", err)
	}
	return s.GetClip(ctx, c.ID)
}

// GetClip fetches a clip by identifier.
func (s *Store) GetClip(ctx context.Context, id string) (*Clip, error) {
	row := s.db.QueryRow(ctx, `SELECT `+clipColumns+` FROM clips WHERE id = ?`, id)
	c, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("clip %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get clip: %w", err)
	}
	return c, nil
}

// ListClips returns a project's clips in creation order.
func (s *Store) ListClips(ctx context.Context, projectID string) ([]*Clip, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+clipColumns+` FROM clips WHERE project_id = ? ORDER BY created_at, seq`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer rows.Close()

	var clips []*Clip
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan clip: %w", err)
		}
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

// SetClipPreview points a clip at its rendered preview.
func (s *Store) SetClipPreview(ctx context.Context, id, previewURL string) error {
	return s.updateClip(ctx, id, `preview_url = ?`, nullableString(previewURL))
}

// SetClipState records a curation decision.
func (s *Store) SetClipState(ctx context.Context, id string, state ClipState) error {
	if !state.Valid() {
		return fmt.Errorf("%w: unknown clip state %q", ErrInvariantViolation, state)
	}
	return s.updateClip(ctx, id, `state = ?`, state)
}

func (s *Store) updateClip(ctx context.Context, id, set string, value any) error {
	res, err := s.db.Exec(ctx,
		`UPDATE clips SET `+set+`, updated_at = ? WHERE id = ?`,
		value, formatTime(s.timestamp()), id,
	)
	if err != nil {
		return fmt.Errorf("update clip: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("clip %s: %w", id, ErrNotFound)
	}
	return nil
}
