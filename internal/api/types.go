package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Project describes a project in a transport-friendly format.
type Project struct {
	ID           string   `json:"id"`
	Filename     string   `json:"filename"`
	ContentType  string   `json:"content_type,omitempty"`
	SourceURL    string   `json:"source_url"`
	DurationSec  *float64 `json:"duration_sec,omitempty"`
	Status       string   `json:"status"`
	ErrorMessage string   `json:"error_message,omitempty"`
	CreatedAt    string   `json:"created_at,omitempty"`
	UpdatedAt    string   `json:"updated_at,omitempty"`
}

// Clip is a candidate highlight window.
type Clip struct {
	ID             string  `json:"id"`
	StartSec       float64 `json:"start_sec"`
	EndSec         float64 `json:"end_sec"`
	Title          string  `json:"title"`
	Reason         string  `json:"reason,omitempty"`
	Score          float64 `json:"score"`
	SnappedToPause bool    `json:"snapped_to_pause"`
	PreviewURL     string  `json:"preview_url,omitempty"`
	FinalURL       string  `json:"final_url,omitempty"`
	State          string  `json:"state"`
}

// Asset is a stored artifact.
type Asset struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	URL       string         `json:"url"`
	Meta      map[string]any `json:"meta,omitempty"`
	TTLDays   *int           `json:"ttl_days,omitempty"`
	CreatedAt string         `json:"created_at,omitempty"`
}

// ProjectDetail bundles a project with its clips and assets.
type ProjectDetail struct {
	Project Project `json:"project"`
	Clips   []Clip  `json:"clips"`
	Assets  []Asset `json:"assets"`
}

// CreateJobResponse acknowledges an accepted upload.
type CreateJobResponse struct {
	ProjectID string `json:"project_id"`
	SourceURL string `json:"source_url"`
	Status    string `json:"status"`
	MaxSizeMB int    `json:"max_size_mb"`
}

// Task describes a queued stage invocation.
type Task struct {
	ID            string `json:"id"`
	Stage         string `json:"stage"`
	ProjectID     string `json:"project_id"`
	AssetID       string `json:"asset_id,omitempty"`
	ClipID        string `json:"clip_id,omitempty"`
	Status        string `json:"status"`
	Deliveries    int    `json:"deliveries"`
	MaxDeliveries int    `json:"max_deliveries"`
	AvailableAt   string `json:"available_at,omitempty"`
	ClaimedBy     string `json:"claimed_by,omitempty"`
	LastError     string `json:"last_error,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running    bool           `json:"running"`
	Workers    int            `json:"workers"`
	QueueStats map[string]int `json:"queue_stats"`
	LastError  string         `json:"last_error,omitempty"`
	LastTask   *Task          `json:"last_task,omitempty"`
	Health     []StageHealth  `json:"health"`
}

// StageHealth mirrors readiness reporting for dependencies and stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// HealthResponse is served by the health endpoint.
type HealthResponse struct {
	Status   string          `json:"status"`
	Workflow *WorkflowStatus `json:"workflow,omitempty"`
}

// ErrorResponse carries a failure message.
type ErrorResponse struct {
	Error string `json:"error"`
}
