package api

import (
	"context"

	"clipforge/internal/store"
)

// ProjectReader abstracts the entity store reads needed for API queries.
type ProjectReader interface {
	GetProject(ctx context.Context, id string) (*store.Project, error)
	ListProjects(ctx context.Context, limit int, statuses ...store.Status) ([]*store.Project, error)
	ListClips(ctx context.Context, projectID string) ([]*store.Clip, error)
	ListAssets(ctx context.Context, projectID string) ([]*store.Asset, error)
}

// ProjectService exposes read-only project operations returning API DTOs.
type ProjectService struct {
	store ProjectReader
}

// NewProjectService constructs a ProjectService around the provided reader.
func NewProjectService(reader ProjectReader) *ProjectService {
	return &ProjectService{store: reader}
}

// List returns projects newest first, filtered by status.
func (s *ProjectService) List(ctx context.Context, limit int, statuses ...store.Status) ([]Project, error) {
	projects, err := s.store.ListProjects(ctx, limit, statuses...)
	if err != nil {
		return nil, err
	}
	return FromProjects(projects), nil
}

// Describe returns a project with its clips and assets. Missing projects
// surface store.ErrNotFound.
func (s *ProjectService) Describe(ctx context.Context, id string) (*ProjectDetail, error) {
	project, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	clips, err := s.store.ListClips(ctx, id)
	if err != nil {
		return nil, err
	}
	assets, err := s.store.ListAssets(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := NewProjectDetail(project, clips, assets)
	return &detail, nil
}
