package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const assetColumns = "seq, id, project_id, type, bucket, object_key, url, meta_json, ttl_days, created_at"

func scanAsset(scanner rowScanner) (*Asset, error) {
	var (
		a          Asset
		assetType  string
		metaRaw    sql.NullString
		ttlDays    sql.NullInt64
		createdRaw sql.NullString
	)
	if err := scanner.Scan(
		&a.Seq,
		&a.ID,
		&a.ProjectID,
		&assetType,
		&a.Bucket,
		&a.Key,
		&a.URL,
		&metaRaw,
		&ttlDays,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	a.Type = AssetType(assetType)
	if err := unmarshalJSON(metaRaw, &a.Meta); err != nil {
		return nil, err
	}
	if ttlDays.Valid {
		v := int(ttlDays.Int64)
		a.TTLDays = &v
	}
	a.CreatedAt = parseTime(createdRaw)
	return &a, nil
}

// CreateAsset records an artifact that has already been written to the object store.
func (s *Store) CreateAsset(ctx context.Context, a Asset) (*Asset, error) {
	switch a.Type {
	case AssetAudio, AssetPreview, AssetFinal:
	default:
		return nil, fmt.Errorf("%w: unknown asset type %q", ErrInvariantViolation, a.Type)
	}
	if a.ProjectID == "" || a.Bucket == "" || a.Key == "" {
		return nil, fmt.Errorf("%w: asset requires project, bucket, and key", ErrInvariantViolation)
	}
	if a.ID == "" {
		a.ID = newID()
	}
	var meta any
	if len(a.Meta) > 0 {
		raw, err := marshalJSON(a.Meta)
		if err != nil {
			return nil, err
		}
		meta = raw
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO assets (id, project_id, type, bucket, object_key, url, meta_json, ttl_days, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.ProjectID,
		a.Type,
		a.Bucket,
		a.Key,
		a.URL,
		meta,
		nullableInt(a.TTLDays),
		formatTime(s.timestamp()),
	)
	if err != nil {
		return nil, fmt.Errorf("insert asset: %w", err)
	}
	return s.GetAsset(ctx, a.ID)
}

// GetAsset fetches an asset by identifier.
func (s *Store) GetAsset(ctx context.Context, id string) (*Asset, error) {
	row := s.db.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return a, nil
}

// LatestAudioAsset returns the most recently created audio asset of a project.
func (s *Store) LatestAudioAsset(ctx context.Context, projectID string) (*Asset, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE project_id = ? AND type = ?
         ORDER BY created_at DESC, seq DESC LIMIT 1`,
		projectID, AssetAudio,
	)
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("audio asset for %s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest audio asset: %w", err)
	}
	return a, nil
}

// ListAssets returns a project's assets in creation order.
func (s *Store) ListAssets(ctx context.Context, projectID string) ([]*Asset, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE project_id = ? ORDER BY created_at, seq`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}
