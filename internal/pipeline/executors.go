package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/objectstore"
	"clipforge/internal/services"
	"clipforge/internal/stage"
	"clipforge/internal/store"
	"clipforge/internal/transcoder"
	"clipforge/internal/transcription"
)

// ErrMissingPrerequisite marks a stage whose inputs no longer exist. The run
// wrapper treats it as a successful no-op since redelivery and out-of-order
// dispatch are expected.
var ErrMissingPrerequisite = errors.New("missing prerequisite")

const (
	// HighlightCount is the number of clips HighlightPick suggests.
	HighlightCount = 3
	// ClipReasonAuto is the provenance recorded on automatically picked clips.
	ClipReasonAuto = "auto"

	failureSummaryLimit = 160
)

// Deps carries the collaborators every stage needs.
type Deps struct {
	Store         *store.Store
	Objects       objectstore.Client
	Bucket        string
	Transcoder    *transcoder.Transcoder
	Transcription *transcription.Service
	Dispatcher    stage.Dispatcher
	// WorkDir hosts per-invocation workspaces.
	WorkDir string
	// Prompt is passed to the transcription provider.
	Prompt string
	// PreviewTTLDays is recorded on preview assets when positive.
	PreviewTTLDays int
	Logger         *slog.Logger
}

// Executors runs pipeline stages. It implements stage.Handler.
type Executors struct {
	deps   Deps
	logger *slog.Logger
	bodies map[stage.Name]stageBody
}

type stageBody func(ctx context.Context, logger *slog.Logger, project *store.Project, args stage.Args) error

// New validates deps and builds the executors.
func New(deps Deps) (*Executors, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("pipeline: store is required")
	case deps.Objects == nil:
		return nil, errors.New("pipeline: object store is required")
	case deps.Transcoder == nil:
		return nil, errors.New("pipeline: transcoder is required")
	case deps.Transcription == nil:
		return nil, errors.New("pipeline: transcription service is required")
	case deps.Dispatcher == nil:
		return nil, errors.New("pipeline: dispatcher is required")
	}
	if deps.Bucket == "" {
		deps.Bucket = "uploads"
	}
	e := &Executors{
		deps:   deps,
		logger: logging.NewComponentLogger(deps.Logger, "pipeline"),
	}
	e.bodies = map[stage.Name]stageBody{
		stage.AudioExtract:  e.audioExtract,
		stage.SilenceMap:    e.silenceMap,
		stage.Transcribe:    e.transcribe,
		stage.HighlightPick: e.highlightPick,
		stage.PreviewRender: e.previewRender,
	}
	return e, nil
}

// Handle implements stage.Handler.
func (e *Executors) Handle(ctx context.Context, name stage.Name, args stage.Args) error {
	if err := args.Validate(name); err != nil {
		return err
	}
	return e.run(ctx, name, args, e.bodies[name])
}

// run applies the behaviour shared by every stage: skip missing or halted
// projects, execute the body, and record failures on the project.
func (e *Executors) run(ctx context.Context, name stage.Name, args stage.Args, body stageBody) error {
	ctx = services.WithStage(services.WithProjectID(ctx, args.ProjectID), string(name))
	logger := logging.WithContext(ctx, e.logger)

	project, err := e.deps.Store.GetProject(ctx, args.ProjectID)
	if errors.Is(err, store.ErrNotFound) {
		logger.Debug("project missing; skipping stage",
			logging.String(logging.FieldEventType, "stage_skip"),
		)
		return nil
	}
	if err != nil {
		return services.Wrap(services.ErrTransient, string(name), "load project", "", err)
	}
	if project.Status.IsTerminal() {
		logger.Info("project halted; skipping stage",
			logging.String(logging.FieldEventType, "stage_skip"),
			logging.String("status", string(project.Status)),
		)
		return nil
	}

	started := time.Now()
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("status", string(project.Status)),
	)

	err = body(ctx, logger, project, args)
	switch {
	case err == nil:
		logger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Duration("elapsed", time.Since(started)),
		)
		return nil
	case errors.Is(err, ErrMissingPrerequisite):
		logger.Debug("prerequisite missing; skipping stage",
			logging.String(logging.FieldEventType, "stage_skip"),
			logging.Error(err),
		)
		return nil
	case ctx.Err() != nil:
		// Interrupted work is redelivered; the project is left as is.
		logger.Info("stage interrupted",
			logging.String(logging.FieldEventType, "stage_interrupted"),
			logging.Error(err),
		)
		return err
	}
	return e.handleFailure(ctx, logger, name, project.ID, err)
}

func (e *Executors) handleFailure(ctx context.Context, logger *slog.Logger, name stage.Name, projectID string, stageErr error) error {
	message := FailureMessage(name, stageErr)
	logger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("resolved_status", string(store.StatusFailed)),
		logging.String("error_message", message),
		logging.String(logging.FieldErrorHint, failureHint(stageErr)),
		logging.Error(stageErr),
	)
	if err := e.deps.Store.TransitionProject(ctx, projectID, store.StatusFailed, message); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, could not record stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}
	return stageErr
}

// FailureMessage renders the short stage-prefixed text stored on a failed project.
func FailureMessage(name stage.Name, err error) string {
	var (
		tErr   *transcoder.TranscodeError
		reason string
	)
	switch {
	case err == nil:
		reason = "failed without error detail"
	case errors.Is(err, transcription.ErrTranscriptionQuota):
		reason = "transcription quota or billing issue"
	case errors.Is(err, transcription.ErrTranscriptionExhausted):
		reason = "transcription retries exhausted"
	case errors.As(err, &tErr):
		reason = tErr.Error()
	default:
		reason = err.Error()
	}
	return fmt.Sprintf("%s: %s", name, services.Truncate(reason, failureSummaryLimit))
}

func failureHint(err error) string {
	var tErr *transcoder.TranscodeError
	switch {
	case errors.Is(err, transcription.ErrTranscriptionQuota):
		return "check the transcription account's quota and billing"
	case errors.Is(err, transcription.ErrTranscriptionExhausted):
		return "provider kept rate limiting or was unreachable; retry the project later"
	case errors.As(err, &tErr) && tErr.TimedOut:
		return "raise transcoder.timeout_seconds or inspect the source file"
	case errors.As(err, &tErr):
		return "inspect ffmpeg stderr; the source may be corrupt or unsupported"
	case errors.Is(err, objectstore.ErrStoreUnavailable), errors.Is(err, objectstore.ErrStoreWrite):
		return "verify object store connectivity and credentials"
	}
	return "retry the project once the cause is resolved"
}

func (e *Executors) workspace(name stage.Name, projectID string) (*transcoder.Workspace, error) {
	ws, err := transcoder.NewWorkspace(e.deps.WorkDir, projectID+"-"+string(name))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, string(name), "create workspace", "", err)
	}
	return ws, nil
}

// storageError marks an object store failure while keeping the cause in the chain.
func storageError(name stage.Name, op, key string, err error) error {
	marker := services.ErrExternalTool
	if errors.Is(err, objectstore.ErrObjectNotFound) {
		marker = services.ErrNotFound
	}
	return services.Wrap(marker, string(name), op, key, err)
}

func (e *Executors) dispatch(ctx context.Context, name stage.Name, args stage.Args) error {
	if err := e.deps.Dispatcher.Dispatch(ctx, name, args); err != nil {
		return fmt.Errorf("dispatch %s: %w", name, err)
	}
	return nil
}

func closeWorkspace(logger *slog.Logger, ws *transcoder.Workspace) {
	if err := ws.Close(); err != nil {
		logger.Warn("workspace cleanup failed",
			logging.String("dir", ws.Dir()),
			logging.Error(err),
			logging.String(logging.FieldEventType, "workspace_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the directory manually"),
			logging.String(logging.FieldImpact, "disk space is not reclaimed"),
		)
	}
}

// NewFromConfig wires executors from configuration. runner may be nil to use
// the real ffmpeg binaries.
func NewFromConfig(cfg *config.Config, st *store.Store, objects objectstore.Client, dispatcher stage.Dispatcher, runner transcoder.Runner, logger *slog.Logger) (*Executors, error) {
	return New(Deps{
		Store:          st,
		Objects:        objects,
		Bucket:         cfg.ObjectStore.Bucket,
		Transcoder:     transcoder.NewFromConfig(cfg, runner, logger),
		Transcription:  transcription.NewServiceFromConfig(cfg, logger),
		Dispatcher:     dispatcher,
		WorkDir:        cfg.Paths.WorkDir,
		Prompt:         cfg.Transcription.Prompt,
		PreviewTTLDays: cfg.ObjectStore.PreviewTTLDays,
		Logger:         logger,
	})
}
