package stage

import (
	"fmt"
	"strings"

	"clipforge/internal/services"
)

// Name identifies a pipeline stage.
type Name string

const (
	AudioExtract  Name = "audio_extract"
	SilenceMap    Name = "silence_map"
	Transcribe    Name = "transcribe"
	HighlightPick Name = "highlight_pick"
	PreviewRender Name = "preview_render"
)

// All lists the stages in pipeline order.
func All() []Name {
	return []Name{AudioExtract, SilenceMap, Transcribe, HighlightPick, PreviewRender}
}

// Valid reports whether n is a known stage.
func (n Name) Valid() bool {
	switch n {
	case AudioExtract, SilenceMap, Transcribe, HighlightPick, PreviewRender:
		return true
	}
	return false
}

// ParseName resolves a stage name, accepting hyphens in place of underscores.
func ParseName(raw string) (Name, error) {
	n := Name(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_"))
	if !n.Valid() {
		return "", services.Wrap(services.ErrValidation, "stage", "parse name", fmt.Sprintf("unknown stage %q", raw), nil)
	}
	return n, nil
}

// Args is the payload carried by a dispatch.
type Args struct {
	ProjectID string `json:"project_id"`
	AssetID   string `json:"asset_id,omitempty"`
	ClipID    string `json:"clip_id,omitempty"`
}

// Validate checks that args carry what stage n requires.
func (a Args) Validate(n Name) error {
	var missing string
	switch {
	case !n.Valid():
		return services.Wrap(services.ErrValidation, string(n), "validate args", "unknown stage", nil)
	case strings.TrimSpace(a.ProjectID) == "":
		missing = "project_id"
	case n == Transcribe && strings.TrimSpace(a.AssetID) == "":
		missing = "asset_id"
	case n == PreviewRender && strings.TrimSpace(a.ClipID) == "":
		missing = "clip_id"
	}
	if missing != "" {
		return services.Wrap(services.ErrValidation, string(n), "validate args", missing+" is required", nil)
	}
	return nil
}
