package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"clipforge/internal/logging"
	"clipforge/internal/objectstore"
	"clipforge/internal/stage"
	"clipforge/internal/store"
	"clipforge/internal/transcoder"
)

// silenceMap records where the audio falls quiet. It changes no status and
// dispatches nothing.
func (e *Executors) silenceMap(ctx context.Context, logger *slog.Logger, project *store.Project, args stage.Args) error {
	asset, err := e.audioAsset(ctx, project.ID, args.AssetID)
	if err != nil {
		return err
	}

	ws, err := e.workspace(stage.SilenceMap, project.ID)
	if err != nil {
		return err
	}
	defer closeWorkspace(logger, ws)

	audioPath := ws.Path("audio.wav")
	if err := objectstore.Download(ctx, e.deps.Objects, asset.Bucket, asset.Key, audioPath); err != nil {
		return storageError(stage.SilenceMap, "download audio", asset.Key, err)
	}
	diagnostics, err := e.deps.Transcoder.DetectSilence(ctx, audioPath)
	if err != nil {
		return err
	}

	intervals := transcoder.ParseSilence(diagnostics)
	silences := make([]store.Interval, 0, len(intervals))
	for _, iv := range intervals {
		silences = append(silences, store.Interval{StartSec: iv.StartSec, EndSec: iv.EndSec})
	}
	m, err := e.deps.Store.CreateSilenceMap(ctx, store.SilenceMap{
		ProjectID: project.ID,
		AssetID:   asset.ID,
		Silences:  silences,
	})
	if err != nil {
		return err
	}
	logger.Info("silence map stored",
		logging.String("silence_map_id", m.ID),
		logging.Int("intervals", len(silences)),
	)
	return nil
}

// audioAsset resolves the named audio asset, or the latest one when id is empty.
func (e *Executors) audioAsset(ctx context.Context, projectID, id string) (*store.Asset, error) {
	var (
		asset *store.Asset
		err   error
	)
	if id != "" {
		asset, err = e.deps.Store.GetAsset(ctx, id)
	} else {
		asset, err = e.deps.Store.LatestAudioAsset(ctx, projectID)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrMissingPrerequisite, err)
	}
	if err != nil {
		return nil, err
	}
	if asset.ProjectID != projectID || asset.Type != store.AssetAudio {
		return nil, fmt.Errorf("%w: asset %s is not audio of project %s", ErrMissingPrerequisite, asset.ID, projectID)
	}
	return asset, nil
}
