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

const audioContentType = "audio/wav"

// audioExtract pulls a mono 16 kHz track out of the source video, stores it
// as the project's audio asset, and fans out to SilenceMap and Transcribe.
func (e *Executors) audioExtract(ctx context.Context, logger *slog.Logger, project *store.Project, _ stage.Args) error {
	if project.SourceKey == "" || project.Filename == "" {
		return fmt.Errorf("%w: project %s has no source object", ErrMissingPrerequisite, project.ID)
	}
	switch project.Status {
	case store.StatusPreviewReady, store.StatusExporting:
		logger.Info("audio already extracted; skipping redelivery",
			logging.String(logging.FieldEventType, "stage_skip"),
			logging.String("status", string(project.Status)),
		)
		return nil
	}
	if err := e.deps.Store.TransitionProject(ctx, project.ID, store.StatusProcessing, ""); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			return fmt.Errorf("%w: %w", ErrMissingPrerequisite, err)
		}
		return err
	}

	ws, err := e.workspace(stage.AudioExtract, project.ID)
	if err != nil {
		return err
	}
	defer closeWorkspace(logger, ws)

	sourcePath := ws.Path("source" + filepath.Ext(project.Filename))
	if err := objectstore.Download(ctx, e.deps.Objects, project.SourceBucket, project.SourceKey, sourcePath); err != nil {
		return storageError(stage.AudioExtract, "download source", project.SourceKey, err)
	}

	audioPath, err := e.deps.Transcoder.ExtractAudio(ctx, ws, sourcePath)
	if err != nil {
		return err
	}

	duration := e.deps.Transcoder.ProbeDuration(ctx, sourcePath)
	if duration <= 0 {
		duration = project.Duration()
	}

	key := objectstore.AudioKey(project.ID)
	if err := objectstore.Upload(ctx, e.deps.Objects, e.deps.Bucket, key, audioPath, audioContentType); err != nil {
		return err
	}
	meta := map[string]any{}
	if duration > 0 {
		meta["duration_sec"] = duration
	}
	asset, err := e.deps.Store.CreateAsset(ctx, store.Asset{
		ProjectID: project.ID,
		Type:      store.AssetAudio,
		Bucket:    e.deps.Bucket,
		Key:       key,
		URL:       e.deps.Objects.URLFor(e.deps.Bucket, key),
		Meta:      meta,
	})
	if err != nil {
		return err
	}
	if duration > 0 {
		if err := e.deps.Store.SetProjectDuration(ctx, project.ID, duration); err != nil {
			return err
		}
	}
	logger.Info("audio asset stored",
		logging.String("asset_id", asset.ID),
		logging.String("key", key),
		logging.Float64("duration_sec", duration),
	)

	next := stage.Args{ProjectID: project.ID, AssetID: asset.ID}
	if err := e.dispatch(ctx, stage.SilenceMap, next); err != nil {
		return err
	}
	return e.dispatch(ctx, stage.Transcribe, next)
}
