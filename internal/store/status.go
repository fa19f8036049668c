package store

import "slices"

// Status is a project's lifecycle state.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusProcessing   Status = "processing"
	StatusPreviewReady Status = "preview_ready"
	StatusExporting    Status = "exporting"
	StatusDone         Status = "done"
	StatusFailed       Status = "failed"
)

// predecessors lists the statuses a project may move from into each target.
// queued is only re-entered through RestartProject.
var predecessors = map[Status][]Status{
	StatusProcessing:   {StatusQueued, StatusProcessing},
	StatusPreviewReady: {StatusProcessing, StatusPreviewReady},
	StatusExporting:    {StatusPreviewReady},
	StatusDone:         {StatusExporting},
	StatusFailed:       {StatusQueued, StatusProcessing, StatusPreviewReady, StatusExporting},
}

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusQueued, StatusProcessing, StatusPreviewReady, StatusExporting, StatusDone, StatusFailed}
}

// AllowedFrom returns the statuses from which a project may move to target.
func AllowedFrom(target Status) []Status {
	return slices.Clone(predecessors[target])
}

// CanTransition reports whether from → to is permitted.
func CanTransition(from, to Status) bool {
	return slices.Contains(predecessors[to], from)
}

// IsTerminal reports whether automatic pipeline work must stop for s.
func (s Status) IsTerminal() bool {
	return s == StatusFailed || s == StatusDone
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return slices.Contains(AllStatuses(), s)
}
