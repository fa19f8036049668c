package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"clipforge/internal/logging"
	"clipforge/internal/objectstore"
	"clipforge/internal/stage"
	"clipforge/internal/store"
	"clipforge/internal/transcription"
)

const (
	wavHeaderBytes    = 44
	wavBytesPerSecond = 16000 * 2
)

// transcribe sends the audio asset to the transcription service, stores a new
// transcript row, and dispatches HighlightPick.
func (e *Executors) transcribe(ctx context.Context, logger *slog.Logger, project *store.Project, args stage.Args) error {
	asset, err := e.audioAsset(ctx, project.ID, args.AssetID)
	if err != nil {
		return err
	}

	ws, err := e.workspace(stage.Transcribe, project.ID)
	if err != nil {
		return err
	}
	defer closeWorkspace(logger, ws)

	audioPath := ws.Path("audio.wav")
	if err := objectstore.Download(ctx, e.deps.Objects, asset.Bucket, asset.Key, audioPath); err != nil {
		return storageError(stage.Transcribe, "download audio", asset.Key, err)
	}
	file, err := os.Open(audioPath)
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	defer file.Close()

	hint := durationHint(asset, project, file)
	result, err := e.deps.Transcription.Transcribe(ctx, file, e.deps.Prompt, hint)
	if err != nil {
		return err
	}

	segments := make([]store.Segment, 0, len(result.Segments))
	for _, seg := range result.Segments {
		segments = append(segments, store.Segment{
			ID:         seg.ID,
			StartSec:   seg.StartSec,
			EndSec:     seg.EndSec,
			Text:       seg.Text,
			Confidence: seg.Confidence,
		})
	}
	tr, err := e.deps.Store.CreateTranscript(ctx, store.Transcript{
		ProjectID: project.ID,
		Provider:  providerName(result, e.deps.Transcription),
		Language:  result.Language,
		Text:      result.Text,
		Segments:  segments,
	})
	if err != nil {
		return err
	}
	logger.Info("transcript stored",
		logging.String("transcript_id", tr.ID),
		logging.String("provider", tr.Provider),
		logging.Int("segments", len(segments)),
	)
	return e.dispatch(ctx, stage.HighlightPick, stage.Args{ProjectID: project.ID})
}

// durationHint prefers the asset's recorded duration, then the project's,
// then the PCM payload size.
func durationHint(asset *store.Asset, project *store.Project, file *os.File) float64 {
	if d, ok := asset.MetaFloat("duration_sec"); ok && d > 0 {
		return d
	}
	if d := project.Duration(); d > 0 {
		return d
	}
	info, err := file.Stat()
	if err != nil || info.Size() <= wavHeaderBytes {
		return 0
	}
	return float64(info.Size()-wavHeaderBytes) / wavBytesPerSecond
}

func providerName(result transcription.Result, svc *transcription.Service) string {
	if result.Provider != "" {
		return result.Provider
	}
	return svc.ProviderName()
}
