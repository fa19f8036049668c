package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/google/uuid"

	"clipforge/internal/api"
	"clipforge/internal/config"
	"clipforge/internal/daemon"
	"clipforge/internal/deps"
	"clipforge/internal/httpapi"
	"clipforge/internal/logging"
	"clipforge/internal/preflight"
	"clipforge/internal/queue"
	"clipforge/internal/scratch"
	"clipforge/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the clipforge daemon and blocks until ctx is cancelled or the
// process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String("run_id", uuid.NewString()))

	logDependencySnapshot(logger, cfg)
	scratch.SweepStale(signalCtx, cfg.Paths.WorkDir, scratch.DefaultMaxAge, logger)
	pidPath := filepath.Join(cfg.Paths.DataDir, "clipforge.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	comps, err := Open(signalCtx, cfg, logger)
	if err != nil {
		logger.Error("open runtime", logging.Error(err),
			logging.String(logging.FieldEventType, "runtime_open_failed"),
			logging.String(logging.FieldErrorHint, "check database and object store settings"),
		)
		return err
	}

	dispatcher := queue.NewDispatcher(comps.Queue, cfg.Workflow.MaxDeliveries, logger)
	if err := comps.Attach(dispatcher, nil); err != nil {
		comps.Close()
		return err
	}

	mgr := workflow.NewManager(cfg, comps.Queue, comps.Executors, logger,
		workflow.WithHealthChecker(preflight.NewChecker(cfg)))
	dispatcher.OnEnqueue(mgr.Wake)

	server := httpapi.New(httpapi.Options{
		Intake:         comps.Intake,
		Projects:       comps.Projects,
		MaxUploadMB:    cfg.API.MaxUploadMB,
		AllowedOrigins: cfg.API.AllowedOrigins,
		Status: func(ctx context.Context) api.WorkflowStatus {
			return api.FromStatusSummary(mgr.Status(ctx))
		},
		Logger: logger,
	})

	d, err := daemon.New(cfg, comps.Store, mgr, server, logger)
	if err != nil {
		comps.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check the lock file and api bind address"),
			logging.String(logging.FieldImpact, "uploads are not accepted"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("clipforge daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("transcription_key_present", cfg.RealTranscription()),
		logging.String("object_store_backend", cfg.ObjectStore.Backend),
		logging.String("database_driver", cfg.Database.Driver),
	}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		attrs = append(attrs,
			logging.Bool(status.Name+"_available", status.Available),
			logging.String(status.Name+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
