package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"clipforge/internal/logging"
	"clipforge/internal/objectstore"
	"clipforge/internal/stage"
	"clipforge/internal/store"
)

const previewContentType = "video/mp4"

// previewRender cuts a clip's window from the source, uploads it, points the
// clip at it, and moves the project to preview_ready.
func (e *Executors) previewRender(ctx context.Context, logger *slog.Logger, project *store.Project, args stage.Args) error {
	clip, err := e.deps.Store.GetClip(ctx, args.ClipID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrMissingPrerequisite, err)
	}
	if err != nil {
		return err
	}
	if clip.ProjectID != project.ID {
		return fmt.Errorf("%w: clip %s belongs to project %s", ErrMissingPrerequisite, clip.ID, clip.ProjectID)
	}

	if clip.PreviewURL == "" {
		if err := e.renderPreview(ctx, logger, project, clip); err != nil {
			return err
		}
	} else {
		logger.Debug("preview already rendered", logging.String("clip_id", clip.ID))
	}

	err = e.deps.Store.TransitionProject(ctx, project.ID, store.StatusPreviewReady, "")
	if errors.Is(err, store.ErrInvalidTransition) {
		logger.Info("project moved past preview_ready; status left unchanged",
			logging.String("clip_id", clip.ID),
			logging.Error(err),
		)
		return nil
	}
	return err
}

func (e *Executors) renderPreview(ctx context.Context, logger *slog.Logger, project *store.Project, clip *store.Clip) error {
	ws, err := e.workspace(stage.PreviewRender, project.ID)
	if err != nil {
		return err
	}
	defer closeWorkspace(logger, ws)

	sourcePath := ws.Path("source" + filepath.Ext(project.Filename))
	if err := objectstore.Download(ctx, e.deps.Objects, project.SourceBucket, project.SourceKey, sourcePath); err != nil {
		return storageError(stage.PreviewRender, "download source", project.SourceKey, err)
	}
	previewPath, err := e.deps.Transcoder.CutSegment(ctx, ws, sourcePath, clip.StartSec, clip.Duration())
	if err != nil {
		return err
	}

	key := objectstore.PreviewKey(project.ID, clip.ID)
	if err := objectstore.Upload(ctx, e.deps.Objects, e.deps.Bucket, key, previewPath, previewContentType); err != nil {
		return err
	}
	url := e.deps.Objects.URLFor(e.deps.Bucket, key)

	var ttl *int
	if e.deps.PreviewTTLDays > 0 {
		days := e.deps.PreviewTTLDays
		ttl = &days
	}
	if _, err := e.deps.Store.CreateAsset(ctx, store.Asset{
		ProjectID: project.ID,
		Type:      store.AssetPreview,
		Bucket:    e.deps.Bucket,
		Key:       key,
		URL:       url,
		Meta:      map[string]any{"clip_id": clip.ID},
		TTLDays:   ttl,
	}); err != nil {
		return err
	}
	if err := e.deps.Store.SetClipPreview(ctx, clip.ID, url); err != nil {
		return err
	}
	logger.Info("preview rendered",
		logging.String("clip_id", clip.ID),
		logging.String("key", key),
		logging.Float64("start_sec", clip.StartSec),
		logging.Float64("duration_sec", clip.Duration()),
	)
	return nil
}
