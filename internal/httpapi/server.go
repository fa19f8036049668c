package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"clipforge/internal/api"
	"clipforge/internal/intake"
	"clipforge/internal/logging"
	"clipforge/internal/objectstore"
	"clipforge/internal/services"
	"clipforge/internal/store"
)

const (
	bytesPerMB = 1 << 20
	// Multipart parts above this size spill to temp files.
	formMemoryBytes = 32 << 20
	// Allowance for multipart boundaries and form fields on top of the file.
	formOverheadBytes = 1 << 20
)

// StatusFunc reports workflow diagnostics for the health endpoint.
type StatusFunc func(ctx context.Context) api.WorkflowStatus

// Options configures the HTTP surface.
type Options struct {
	Intake   *intake.Service
	Projects *api.ProjectService
	// MaxUploadMB is advertised to clients and enforced on request bodies.
	MaxUploadMB    int
	AllowedOrigins []string
	Status         StatusFunc
	Logger         *slog.Logger
}

// Server routes intake and inspection requests.
type Server struct {
	intake      *intake.Service
	projects    *api.ProjectService
	maxUploadMB int
	status      StatusFunc
	logger      *slog.Logger
	router      chi.Router
}

// New builds the router.
func New(opts Options) *Server {
	s := &Server{
		intake:      opts.Intake,
		projects:    opts.Projects,
		maxUploadMB: opts.MaxUploadMB,
		status:      opts.Status,
		logger:      logging.NewComponentLogger(opts.Logger, "http"),
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/jobs", func(r chi.Router) {
		r.Post("/create", s.handleCreate)
		r.Get("/{id}", s.handleGet)
		r.Post("/{id}/retry", s.handleRetry)
	})
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{Status: "ok"}
	if s.status != nil {
		wf := s.status(r.Context())
		resp.Workflow = &wf
		for _, h := range wf.Health {
			if !h.Ready {
				resp.Status = "degraded"
				break
			}
		}
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	limit := int64(s.maxUploadMB) * bytesPerMB
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+formOverheadBytes)
	}
	if err := r.ParseMultipartForm(formMemoryBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, "upload exceeds "+strconv.Itoa(s.maxUploadMB)+" MB")
			return
		}
		s.writeError(w, r, http.StatusBadRequest, "expected multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	var hint float64
	if raw := strings.TrimSpace(r.FormValue("duration_hint_sec")); raw != "" {
		hint, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, "duration_hint_sec must be a number")
			return
		}
	}

	project, err := s.intake.Accept(r.Context(), intake.Upload{
		Reader:       file,
		Filename:     header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		Size:         header.Size,
		DurationHint: hint,
	})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, api.CreateJobResponse{
		ProjectID: project.ID,
		SourceURL: project.SourceURL,
		Status:    string(project.Status),
		MaxSizeMB: s.maxUploadMB,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	detail, err := s.projects.Describe(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, detail)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	project, err := s.intake.Restart(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, api.FromProject(project))
}

// writeFailure maps domain errors onto HTTP status codes.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, intake.ErrUploadTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrValidation), errors.Is(err, store.ErrInvariantViolation):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, objectstore.ErrStoreUnavailable), errors.Is(err, objectstore.ErrStoreWrite):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.logger).Error("request failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "http_request_failed"),
			logging.String("path", r.URL.Path),
			logging.String(logging.FieldErrorHint, "check object store and database connectivity"),
		)
	}
	s.writeError(w, r, status, err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.WithContext(r.Context(), s.logger).Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.writeJSON(w, r, status, api.ErrorResponse{Error: message})
}

// requestLogger stamps the request id on the context and logs each request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := services.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		r = r.WithContext(ctx)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		logging.WithContext(ctx, s.logger).Debug("request served",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("elapsed", time.Since(started)),
		)
	})
}
