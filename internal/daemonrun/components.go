package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"clipforge/internal/api"
	"clipforge/internal/config"
	"clipforge/internal/intake"
	"clipforge/internal/logging"
	"clipforge/internal/objectstore"
	"clipforge/internal/pipeline"
	"clipforge/internal/queue"
	"clipforge/internal/stage"
	"clipforge/internal/store"
	"clipforge/internal/transcoder"
)

const bytesPerMB = 1 << 20

// Components bundles the services shared by the daemon and one-shot CLI runs.
// Executors and Intake are nil until Attach supplies a dispatcher.
type Components struct {
	Config    *config.Config
	Store     *store.Store
	Queue     *queue.Store
	Objects   objectstore.Client
	Projects  *api.ProjectService
	Executors *pipeline.Executors
	Intake    *intake.Service

	logger *slog.Logger
}

// Open connects the entity store, task queue and object store.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	st, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	objects, err := objectstore.New(cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open object store: %w", err)
	}
	return &Components{
		Config:   cfg,
		Store:    st,
		Queue:    queue.New(st.DB()),
		Objects:  objects,
		Projects: api.NewProjectService(st),
		logger:   logger,
	}, nil
}

// Attach builds the stage executors and intake around dispatcher. runner may
// be nil to invoke the configured ffmpeg binaries.
func (c *Components) Attach(dispatcher stage.Dispatcher, runner transcoder.Runner) error {
	executors, err := pipeline.NewFromConfig(c.Config, c.Store, c.Objects, dispatcher, runner, c.logger)
	if err != nil {
		return fmt.Errorf("build executors: %w", err)
	}
	c.Executors = executors
	c.Intake = intake.NewService(c.Store, c.Objects, dispatcher, intake.Options{
		Bucket:   c.Config.ObjectStore.Bucket,
		MaxBytes: int64(c.Config.API.MaxUploadMB) * bytesPerMB,
		Logger:   c.logger,
	})
	return nil
}

// Close releases the store connection.
func (c *Components) Close() error {
	return c.Store.Close()
}
