package preflight

import (
	"context"

	"clipforge/internal/config"
	"clipforge/internal/stage"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Health converts the result into a stage health record.
func (r Result) Health() stage.Health {
	if r.Passed {
		return stage.Health{Name: r.Name, Ready: true, Detail: r.Detail}
	}
	return stage.Unhealthy(r.Name, r.Detail)
}

// RunAll executes the local checks: scratch and data directories plus the
// ffmpeg binaries. Network checks are left to the callers that want them.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
	}
	if cfg.ObjectStore.Backend == config.ObjectStoreFS {
		results = append(results, CheckDirectoryAccess("Object store root", cfg.ObjectStore.Root))
	}
	for _, status := range CheckSystemDeps(cfg) {
		detail := status.Detail
		if status.Available {
			detail = status.Command
		}
		results = append(results, Result{Name: status.Name, Passed: status.Available || status.Optional, Detail: detail})
	}
	return results
}

// Checker reports local readiness as stage health. It implements
// stage.HealthChecker.
type Checker struct {
	cfg *config.Config
}

// NewChecker builds a Checker for cfg.
func NewChecker(cfg *config.Config) *Checker {
	return &Checker{cfg: cfg}
}

// HealthCheck implements stage.HealthChecker.
func (c *Checker) HealthCheck(context.Context) []stage.Health {
	results := RunAll(c.cfg)
	health := make([]stage.Health, 0, len(results))
	for _, r := range results {
		health = append(health, r.Health())
	}
	return health
}
