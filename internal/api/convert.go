package api

import (
	"maps"
	"time"

	"clipforge/internal/queue"
	"clipforge/internal/stage"
	"clipforge/internal/store"
	"clipforge/internal/workflow"
)

// FromProject converts a project record to its API representation.
func FromProject(p *store.Project) Project {
	if p == nil {
		return Project{}
	}
	dto := Project{
		ID:           p.ID,
		Filename:     p.Filename,
		ContentType:  p.ContentType,
		SourceURL:    p.SourceURL,
		Status:       string(p.Status),
		ErrorMessage: p.ErrorMessage,
		CreatedAt:    FormatTime(p.CreatedAt),
		UpdatedAt:    FormatTime(p.UpdatedAt),
	}
	if p.DurationSec != nil {
		d := *p.DurationSec
		dto.DurationSec = &d
	}
	return dto
}

// FromProjects converts a slice of projects.
func FromProjects(projects []*store.Project) []Project {
	out := make([]Project, 0, len(projects))
	for _, p := range projects {
		out = append(out, FromProject(p))
	}
	return out
}

// FromClip converts a clip record.
func FromClip(c *store.Clip) Clip {
	if c == nil {
		return Clip{}
	}
	return Clip{
		ID:             c.ID,
		StartSec:       c.StartSec,
		EndSec:         c.EndSec,
		Title:          c.Title,
		Reason:         c.Reason,
		Score:          c.Score,
		SnappedToPause: c.SnappedToPause,
		PreviewURL:     c.PreviewURL,
		FinalURL:       c.FinalURL,
		State:          string(c.State),
	}
}

// FromAsset converts an asset record.
func FromAsset(a *store.Asset) Asset {
	if a == nil {
		return Asset{}
	}
	dto := Asset{
		ID:        a.ID,
		Type:      string(a.Type),
		URL:       a.URL,
		CreatedAt: FormatTime(a.CreatedAt),
	}
	if len(a.Meta) > 0 {
		dto.Meta = maps.Clone(a.Meta)
	}
	if a.TTLDays != nil {
		ttl := *a.TTLDays
		dto.TTLDays = &ttl
	}
	return dto
}

// NewProjectDetail assembles the detail view. Nil slices render as empty
// arrays.
func NewProjectDetail(p *store.Project, clips []*store.Clip, assets []*store.Asset) ProjectDetail {
	detail := ProjectDetail{
		Project: FromProject(p),
		Clips:   make([]Clip, 0, len(clips)),
		Assets:  make([]Asset, 0, len(assets)),
	}
	for _, c := range clips {
		detail.Clips = append(detail.Clips, FromClip(c))
	}
	for _, a := range assets {
		detail.Assets = append(detail.Assets, FromAsset(a))
	}
	return detail
}

// FromTask converts a queue task.
func FromTask(t *queue.Task) Task {
	if t == nil {
		return Task{}
	}
	return Task{
		ID:            t.ID,
		Stage:         string(t.Stage),
		ProjectID:     t.Args.ProjectID,
		AssetID:       t.Args.AssetID,
		ClipID:        t.Args.ClipID,
		Status:        string(t.Status),
		Deliveries:    t.Deliveries,
		MaxDeliveries: t.MaxDeliveries,
		AvailableAt:   FormatTime(t.AvailableAt),
		ClaimedBy:     t.ClaimedBy,
		LastError:     t.LastError,
		CreatedAt:     FormatTime(t.CreatedAt),
		UpdatedAt:     FormatTime(t.UpdatedAt),
	}
}

// FromTasks converts a slice of tasks.
func FromTasks(tasks []*queue.Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, FromTask(t))
	}
	return out
}

// FromStatusSummary converts workflow diagnostics.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:    summary.Running,
		Workers:    summary.Workers,
		QueueStats: QueueStats(summary.QueueStats),
		LastError:  summary.LastError,
		Health:     HealthSlice(summary.Health),
	}
	if summary.LastTask != nil {
		task := FromTask(summary.LastTask)
		wf.LastTask = &task
	}
	return wf
}

// QueueStats keys task counts by status string.
func QueueStats(stats queue.Stats) map[string]int {
	return map[string]int{
		string(queue.StatusPending): stats.Pending,
		string(queue.StatusRunning): stats.Running,
		string(queue.StatusDone):    stats.Done,
		string(queue.StatusDead):    stats.Dead,
	}
}

// HealthSlice converts stage health records, keeping their order.
func HealthSlice(health []stage.Health) []StageHealth {
	out := make([]StageHealth, 0, len(health))
	for _, h := range health {
		out = append(out, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
