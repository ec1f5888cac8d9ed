// Package server provides the HTTP API for ecolaudo.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/ecolaudo/internal/backup"
	"github.com/hyperjump/ecolaudo/internal/catalog"
	"github.com/hyperjump/ecolaudo/internal/config"
	"github.com/hyperjump/ecolaudo/internal/extract"
	"github.com/hyperjump/ecolaudo/internal/report"
	"github.com/hyperjump/ecolaudo/internal/storage"
)

// Files is the file store behind uploads.
type Files interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	Remove(path string) error
	Usage(paths ...string) (int64, error)
}

// Cache is the read-through cache the assembler reads uploads through.
type Cache interface {
	Invalidate(path string)
	Len() int
}

// WatchService reports the directories watched for out-of-band file changes.
type WatchService interface {
	Directories() []string
}

// Deps are the collaborators a Server serves.
type Deps struct {
	Store     storage.Storage
	Files     Files
	Cache     Cache
	Catalog   *catalog.Catalog
	Exporter  *report.Exporter
	Backup    *backup.Service
	Extractor *extract.Extractor
	Watch     WatchService
}

// Server is the HTTP server for the ecolaudo API.
type Server struct {
	Deps
	config        *config.Config
	logger        *zap.Logger
	exportLimiter *rate.Limiter
	server        *http.Server
}

// NewServer creates a server with the given dependencies. Cache and Watch may be nil.
func NewServer(cfg *config.Config, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		Deps:          deps,
		config:        cfg,
		logger:        logger,
		exportLimiter: rate.NewLimiter(rate.Limit(cfg.Export.RatePerSecond), cfg.Export.Burst),
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(s.corsOptions()))

	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/status", s.handleStatus)

	r.Route("/api", func(r chi.Router) {
		r.Route("/patients", func(r chi.Router) {
			r.Get("/", s.handleListPatients)
			r.Post("/", s.handleCreatePatient)
			r.Get("/{id}", s.handleGetPatient)
			r.Put("/{id}", s.handleUpdatePatient)
			r.Delete("/{id}", s.handleDeletePatient)
		})

		r.Route("/exams", func(r chi.Router) {
			r.Get("/", s.handleListExams)
			r.Post("/", s.handleCreateExam)
			r.Get("/{id}", s.handleGetExam)
			r.Put("/{id}", s.handleUpdateExam)
			r.Delete("/{id}", s.handleDeleteExam)
			r.Post("/{id}/images", s.handleUploadImage)
			r.Delete("/{id}/images/{imageID}", s.handleDeleteImage)
			r.Post("/{id}/evaluate", s.handleEvaluateExam)
			r.With(s.limitExports).Get("/{id}/export", s.handleExportExam)
		})
		r.Get("/images/{imageID}", s.handleGetImage)

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleListTemplates)
			r.Post("/", s.handleCreateTemplate)
			r.Get("/search", s.handleSearchTemplates)
			r.Get("/suggest", s.handleSuggestTemplates)
			r.Post("/import", s.handleImportTemplates)
			r.Put("/{id}", s.handleUpdateTemplate)
			r.Delete("/{id}", s.handleDeleteTemplate)
		})

		r.Route("/reference-values", func(r chi.Router) {
			r.Get("/", s.handleListReferenceValues)
			r.Post("/", s.handleCreateReferenceValue)
			r.Get("/export.xlsx", s.handleExportReferenceValues)
			r.Post("/import", s.handleImportReferenceValues)
			r.Put("/{id}", s.handleUpdateReferenceValue)
			r.Delete("/{id}", s.handleDeleteReferenceValue)
		})

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handleUpdateSettings)
		r.Post("/upload-letterhead", s.handleUploadLetterhead)
		r.Post("/initialize-defaults", s.handleInitializeDefaults)
		r.Post("/backup/export", s.handleBackupExport)
		r.Post("/backup/import", s.handleBackupImport)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// requestLogger logs each request through zap once it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// corsOptions allows the configured origins. A "*" entry allows any origin.
func (s *Server) corsOptions() cors.Options {
	origins := make([]string, 0, len(s.config.Server.CORSOrigins))
	for _, o := range s.config.Server.CORSOrigins {
		origins = append(origins, strings.TrimRight(o, "/"))
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", passphraseHeader},
		ExposedHeaders: []string{"Content-Disposition", "ETag"},
		MaxAge:         300,
	}
}

// limitExports rejects export requests above the configured rate.
func (s *Server) limitExports(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.exportLimiter.Allow() {
			w.Header().Set("Retry-After", "1")
			s.respondError(w, http.StatusTooManyRequests, "too many export requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
