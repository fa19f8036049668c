package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const transcriptColumns = "seq, id, project_id, provider, language, text, segments_json, created_at"

func scanTranscript(scanner rowScanner) (*Transcript, error) {
	var (
		t           Transcript
		language    sql.NullString
		text        sql.NullString
		segmentsRaw sql.NullString
		createdRaw  sql.NullString
	)
	if err := scanner.Scan(&t.Seq, &t.ID, &t.ProjectID, &t.Provider, &language, &text, &segmentsRaw, &createdRaw); err != nil {
		return nil, err
	}
	t.Language = language.String
	t.Text = text.String
	if err := unmarshalJSON(segmentsRaw, &t.Segments); err != nil {
		return nil, err
	}
	t.CreatedAt = parseTime(createdRaw)
	return &t, nil
}

// CreateTranscript inserts a transcript. Transcripts are never updated.
func (s *Store) CreateTranscript(ctx context.Context, t Transcript) (*Transcript, error) {
	if t.ProjectID == "" {
		return nil, fmt.Errorf("%w: transcript requires a project", ErrInvariantViolation)
	}
	for _, seg := range t.Segments {
		if seg.EndSec < seg.StartSec {
			return nil, fmt.Errorf("%w: segment %s ends before it starts", ErrInvariantViolation, seg.ID)
		}
	}
	if t.ID == "" {
		t.ID = newID()
	}
	if t.Segments == nil {
		t.Segments = []Segment{}
	}
	segments, err := marshalJSON(t.Segments)
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO transcripts (id, project_id, provider, language, text, segments_json, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.ProjectID,
		t.Provider,
		nullableString(t.Language),
		nullableString(t.Text),
		segments,
		formatTime(s.timestamp()),
	)
	if err != nil {
		return nil, fmt.Errorf("insert transcript: %w", err)
	}
	row := s.db.QueryRow(ctx, `SELECT `+transcriptColumns+` FROM transcripts WHERE id = ?`, t.ID)
	return scanTranscript(row)
}

// LatestTranscript returns the most recent transcript of a project.
func (s *Store) LatestTranscript(ctx context.Context, projectID string) (*Transcript, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+transcriptColumns+` FROM transcripts WHERE project_id = ?
         ORDER BY created_at DESC, seq DESC LIMIT 1`,
		projectID,
	)
	t, err := scanTranscript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transcript for %s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest transcript: %w", err)
	}
	return t, nil
}

const silenceColumns = "seq, id, project_id, asset_id, silences_json, created_at"

func scanSilenceMap(scanner rowScanner) (*SilenceMap, error) {
	var (
		m          SilenceMap
		assetID    sql.NullString
		raw        sql.NullString
		createdRaw sql.NullString
	)
	if err := scanner.Scan(&m.Seq, &m.ID, &m.ProjectID, &assetID, &raw, &createdRaw); err != nil {
		return nil, err
	}
	m.AssetID = assetID.String
	if err := unmarshalJSON(raw, &m.Silences); err != nil {
		return nil, err
	}
	m.CreatedAt = parseTime(createdRaw)
	return &m, nil
}

// CreateSilenceMap inserts detected silence intervals.
func (s *Store) CreateSilenceMap(ctx context.Context, m SilenceMap) (*SilenceMap, error) {
	if m.ProjectID == "" {
		return nil, fmt.Errorf("%w: silence map requires a project", ErrInvariantViolation)
	}
	for _, iv := range m.Silences {
		if iv.EndSec < iv.StartSec {
			return nil, fmt.Errorf("%w: silence interval ends before it starts", ErrInvariantViolation)
		}
	}
	if m.ID == "" {
		m.ID = newID()
	}
	if m.Silences == nil {
		m.Silences = []Interval{}
	}
	raw, err := marshalJSON(m.Silences)
	if err != nil {
		return nil, err
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO silence_maps (id, project_id, asset_id, silences_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ProjectID, nullableString(m.AssetID), raw, formatTime(s.timestamp()),
	)
	if err != nil {
		return nil, fmt.Errorf("insert silence map: %w", err)
	}
	row := s.db.QueryRow(ctx, `SELECT `+silenceColumns+` FROM silence_maps WHERE id = ?`, m.ID)
	return scanSilenceMap(row)
}

// LatestSilenceMap returns the most recent silence map of a project.
func (s *Store) LatestSilenceMap(ctx context.Context, projectID string) (*SilenceMap, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+silenceColumns+` FROM silence_maps WHERE project_id = ?
         ORDER BY created_at DESC, seq DESC LIMIT 1`,
		projectID,
	)
	m, err := scanSilenceMap(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("silence map for %s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest silence map: %w", err)
	}
	return m, nil
}
