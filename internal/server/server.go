// Package server exposes the media engine over HTTP for upload callbacks and the editor.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/Taichi-iskw/lesson-media/internal/logger"
)

// Config holds the HTTP listener settings
type Config struct {
	Addr           string
	AllowedOrigins []string
}

// Server is the HTTP front of the engine
type Server struct {
	srv *http.Server
	log *logger.Logger
}

// NewRouter builds the route table
func NewRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/uploads/complete", h.CompleteUpload).Methods(http.MethodPost)
	api.HandleFunc("/lessons/{id}", h.SaveLesson).Methods(http.MethodPut)
	api.HandleFunc("/lessons/{id}/media", h.GetMedia).Methods(http.MethodGet)
	api.HandleFunc("/lessons/{id}/media/prepare", h.PrepareUpload).Methods(http.MethodPost)
	api.HandleFunc("/lessons/{id}/media/external", h.RegisterExternal).Methods(http.MethodPost)
	api.HandleFunc("/lessons/{id}/transcript", h.GetTranscript).Methods(http.MethodGet)
	api.HandleFunc("/lessons/{id}/transcript/generate", h.GenerateTranscript).Methods(http.MethodPost)
	api.HandleFunc("/lessons/{id}/transcript/user", h.ClearUserTranscript).Methods(http.MethodDelete)
	api.HandleFunc("/media/{id}/metadata", h.FetchMetadata).Methods(http.MethodPost)

	return r
}

// New wraps the router with CORS and panic recovery
func New(cfg Config, h *Handlers, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With("component", "HTTPServer")

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	recovery := handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{log: log}))

	handler := recovery(cors(requestLogger(log, NewRouter(h))))

	return &Server{
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log,
	}
}

// Handler returns the full middleware chain
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run serves until ctx is canceled, then drains in-flight requests
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutdown signal received, draining requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

type recoveryLogger struct {
	log *logger.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.log.Error("panic recovered", "panic", fmt.Sprint(v...))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap exposes the connection to http.ResponseController
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func requestLogger(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(started),
		)
	})
}
