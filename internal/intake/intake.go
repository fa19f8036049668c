package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"clipforge/internal/logging"
	"clipforge/internal/objectstore"
	"clipforge/internal/services"
	"clipforge/internal/stage"
	"clipforge/internal/store"
)

// ErrUploadTooLarge is returned when an upload exceeds the configured limit.
var ErrUploadTooLarge = fmt.Errorf("%w: upload exceeds size limit", services.ErrValidation)

const defaultContentType = "application/octet-stream"

// Container types the mime package does not know without system tables.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
}

// Upload describes an incoming source video.
type Upload struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	// Size is the byte length when known, or -1.
	Size int64
	// DurationHint seeds the project duration; 0 means unknown.
	DurationHint float64
}

// Service accepts uploads and starts their pipeline.
type Service struct {
	store      *store.Store
	objects    objectstore.Client
	dispatcher stage.Dispatcher
	bucket     string
	maxBytes   int64
	logger     *slog.Logger
}

// Options configures a Service.
type Options struct {
	Bucket string
	// MaxBytes bounds upload size; 0 disables the check.
	MaxBytes int64
	Logger   *slog.Logger
}

// NewService builds an intake service.
func NewService(st *store.Store, objects objectstore.Client, dispatcher stage.Dispatcher, opts Options) *Service {
	if opts.Bucket == "" {
		opts.Bucket = "uploads"
	}
	return &Service{
		store:      st,
		objects:    objects,
		dispatcher: dispatcher,
		bucket:     opts.Bucket,
		maxBytes:   opts.MaxBytes,
		logger:     logging.NewComponentLogger(opts.Logger, "intake"),
	}
}

// MaxBytes reports the configured upload limit.
func (s *Service) MaxBytes() int64 { return s.maxBytes }

// Accept stores the source object, creates a queued project and dispatches
// AudioExtract.
func (s *Service) Accept(ctx context.Context, up Upload) (*store.Project, error) {
	if up.Reader == nil {
		return nil, fmt.Errorf("%w: upload body is required", services.ErrValidation)
	}
	filename, err := SanitizeFilename(up.Filename)
	if err != nil {
		return nil, err
	}
	if up.DurationHint < 0 {
		return nil, fmt.Errorf("%w: duration hint must be >= 0", services.ErrValidation)
	}
	if s.maxBytes > 0 && up.Size > s.maxBytes {
		return nil, ErrUploadTooLarge
	}
	contentType := strings.TrimSpace(up.ContentType)
	if contentType == "" {
		ext := strings.ToLower(filepath.Ext(filename))
		contentType = videoTypes[ext]
		if contentType == "" {
			contentType = mime.TypeByExtension(ext)
		}
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	id := store.NewProjectID()
	ctx = services.WithProjectID(ctx, id)
	logger := logging.WithContext(ctx, s.logger)
	key := objectstore.SourceKey(id, filename)

	if err := s.objects.EnsureBucket(ctx, s.bucket); err != nil {
		return nil, err
	}
	body := &limitReader{r: up.Reader, remaining: s.maxBytes, unlimited: s.maxBytes <= 0}
	if err := s.objects.Put(ctx, s.bucket, key, body, up.Size, contentType); err != nil {
		if body.exceeded || errors.Is(err, ErrUploadTooLarge) {
			return nil, ErrUploadTooLarge
		}
		return nil, err
	}

	p := store.Project{
		ID:           id,
		Filename:     filename,
		ContentType:  contentType,
		SourceBucket: s.bucket,
		SourceKey:    key,
		SourceURL:    s.objects.URLFor(s.bucket, key),
	}
	if up.DurationHint > 0 {
		hint := up.DurationHint
		p.DurationSec = &hint
	}
	project, err := s.store.CreateProject(ctx, p)
	if err != nil {
		return nil, err
	}
	logger.Info("upload accepted",
		logging.String(logging.FieldEventType, "upload_accepted"),
		logging.String("filename", filename),
		logging.String("source_key", key),
	)

	if err := s.start(ctx, logger, project.ID); err != nil {
		return project, err
	}
	return project, nil
}

// Restart re-queues a failed project and dispatches AudioExtract again.
func (s *Service) Restart(ctx context.Context, projectID string) (*store.Project, error) {
	ctx = services.WithProjectID(ctx, projectID)
	logger := logging.WithContext(ctx, s.logger)
	if err := s.store.RestartProject(ctx, projectID); err != nil {
		return nil, err
	}
	logger.Info("project restarted", logging.String(logging.FieldEventType, "project_restart"))
	if err := s.start(ctx, logger, projectID); err != nil {
		return nil, err
	}
	return s.store.GetProject(ctx, projectID)
}

// start dispatches the first stage. A project that cannot be started is
// failed so it stays restartable.
func (s *Service) start(ctx context.Context, logger *slog.Logger, projectID string) error {
	err := s.dispatcher.Dispatch(ctx, stage.AudioExtract, stage.Args{ProjectID: projectID})
	if err == nil {
		return nil
	}
	message := fmt.Sprintf("%s: dispatch failed: %s", stage.AudioExtract, services.Summary(err, 120))
	logger.Error("could not dispatch first stage",
		logging.Error(err),
		logging.String(logging.FieldEventType, "dispatch_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access, then retry the project"),
	)
	if tErr := s.store.TransitionProject(context.WithoutCancel(ctx), projectID, store.StatusFailed, message); tErr != nil {
		logger.Warn("could not mark project failed",
			logging.Error(tErr),
			logging.String(logging.FieldEventType, "project_fail_record_failed"),
			logging.String(logging.FieldErrorHint, "inspect the project manually"),
			logging.String(logging.FieldImpact, "project stays queued without work"),
		)
	}
	return fmt.Errorf("dispatch %s: %w", stage.AudioExtract, err)
}

// SanitizeFilename reduces a client-supplied name to a safe base name.
func SanitizeFilename(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	base := filepath.Base(name)
	base = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, base)
	base = strings.TrimSpace(base)
	switch base {
	case "", ".", "..", "/":
		return "", fmt.Errorf("%w: filename %q is not usable", services.ErrValidation, name)
	}
	return base, nil
}

type limitReader struct {
	r         io.Reader
	remaining int64
	unlimited bool
	exceeded  bool
}

func (l *limitReader) Read(p []byte) (int, error) {
	if l.unlimited {
		return l.r.Read(p)
	}
	if l.exceeded {
		return 0, ErrUploadTooLarge
	}
	// Read one byte past the limit so an oversized body is detected.
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		l.exceeded = true
		return n, ErrUploadTooLarge
	}
	return n, err
}
