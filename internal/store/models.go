package store

import "time"

// Project is an uploaded video moving through the pipeline.
type Project struct {
	ID           string
	Filename     string
	ContentType  string
	SourceBucket string
	SourceKey    string
	SourceURL    string
	DurationSec  *float64
	Status       Status
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Duration returns the known duration or 0.
func (p *Project) Duration() float64 {
	if p == nil || p.DurationSec == nil {
		return 0
	}
	return *p.DurationSec
}

// AssetType classifies stored artifacts.
type AssetType string

const (
	AssetAudio   AssetType = "audio"
	AssetPreview AssetType = "preview"
	AssetFinal   AssetType = "final"
)

// Asset is a derived artifact stored in the object store.
type Asset struct {
	ID        string
	ProjectID string
	Type      AssetType
	Bucket    string
	Key       string
	URL       string
	Meta      map[string]any
	TTLDays   *int
	CreatedAt time.Time
	Seq       int64
}

// MetaFloat returns a numeric meta value.
func (a *Asset) MetaFloat(key string) (float64, bool) {
	if a == nil || a.Meta == nil {
		return 0, false
	}
	switch v := a.Meta[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Segment is a timed transcript span.
type Segment struct {
	ID         string   `json:"id"`
	StartSec   float64  `json:"start_sec"`
	EndSec     float64  `json:"end_sec"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Transcript is an insert-only transcription result.
type Transcript struct {
	ID        string
	ProjectID string
	Provider  string
	Language  string
	Text      string
	Segments  []Segment
	CreatedAt time.Time
	Seq       int64
}

// Interval is a silence window in seconds.
type Interval struct {
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
}

// SilenceMap records detected silences for an audio asset.
type SilenceMap struct {
	ID        string
	ProjectID string
	AssetID   string
	Silences  []Interval
	CreatedAt time.Time
	Seq       int64
}

// ClipState tracks user curation of a clip.
type ClipState string

const (
	ClipSuggested ClipState = "suggested"
	ClipKept      ClipState = "kept"
	ClipDiscarded ClipState = "discarded"
	ClipExported  ClipState = "exported"
)

// Valid reports whether s is a known clip state.
func (s ClipState) Valid() bool {
	switch s {
	case ClipSuggested, ClipKept, ClipDiscarded, ClipExported:
		return true
	}
	return false
}

// Clip is a candidate highlight window of a project.
type Clip struct {
	ID             string
	ProjectID      string
	StartSec       float64
	EndSec         float64
	Title          string
	Reason         string
	Score          float64
	SnappedToPause bool
	PreviewURL     string
	FinalURL       string
	State          ClipState
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Seq            int64
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	return c.EndSec - c.StartSec
}
