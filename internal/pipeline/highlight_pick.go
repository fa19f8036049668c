package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"clipforge/internal/logging"
	"clipforge/internal/stage"
	"clipforge/internal/store"
)

// highlightPick turns the latest transcript into suggested clips and fans out
// one PreviewRender per clip. Clips already suggested for the same window are
// reused so a redelivered pick does not duplicate them.
func (e *Executors) highlightPick(ctx context.Context, logger *slog.Logger, project *store.Project, _ stage.Args) error {
	transcript, err := e.deps.Store.LatestTranscript(ctx, project.ID)
	if errors.Is(err, store.ErrNotFound) {
		logger.Debug("no transcript yet; nothing to pick",
			logging.String(logging.FieldEventType, "stage_skip"),
		)
		return nil
	}
	if err != nil {
		return err
	}
	if len(transcript.Segments) == 0 {
		logger.Info("transcript has no segments; nothing to pick",
			logging.String("transcript_id", transcript.ID),
		)
		return nil
	}

	existing, err := e.deps.Store.ListClips(ctx, project.ID)
	if err != nil {
		return err
	}

	var clips []*store.Clip
	for _, seg := range SelectHighlights(transcript.Segments, HighlightCount) {
		start, end, ok := clampWindow(seg, project.Duration())
		if !ok {
			logger.Debug("segment outside known duration; skipped", logging.String("segment_id", seg.ID))
			continue
		}
		if clip := findClip(existing, start, end); clip != nil {
			clips = append(clips, clip)
			continue
		}
		clip, err := e.deps.Store.CreateClip(ctx, store.Clip{
			ProjectID: project.ID,
			StartSec:  start,
			EndSec:    end,
			Title:     ClipTitle(seg.Text),
			Reason:    ClipReasonAuto,
			Score:     1.0,
			State:     store.ClipSuggested,
		})
		if err != nil {
			return err
		}
		clips = append(clips, clip)
	}
	logger.Info("highlights selected",
		logging.String("transcript_id", transcript.ID),
		logging.Int("clips", len(clips)),
	)

	for _, clip := range clips {
		if clip.PreviewURL != "" {
			continue
		}
		if err := e.dispatch(ctx, stage.PreviewRender, stage.Args{ProjectID: project.ID, ClipID: clip.ID}); err != nil {
			return err
		}
	}
	return nil
}

func findClip(clips []*store.Clip, start, end float64) *store.Clip {
	for _, c := range clips {
		if c.Reason == ClipReasonAuto && c.StartSec == start && c.EndSec == end {
			return c
		}
	}
	return nil
}
