// Package api exposes the REST surface: search, chat, try-on, voice
// transcription, product detail and health.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/modaio/stylist/agent"
	"github.com/modaio/stylist/catalog"
	"github.com/modaio/stylist/core"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	MaxUploadBytes  int64         `json:"max_upload_bytes"`
}

// DefaultServerConfig returns default server settings. Write timeout is long
// because try-on turns wait on an upstream render task.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    120 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxUploadBytes:  10 << 20,
	}
}

// Server is the REST API server.
type Server struct {
	orchestrator *agent.Orchestrator
	index        core.VectorIndex
	transcriber  core.Transcriber
	router       *mux.Router
	httpServer   *http.Server
	config       ServerConfig
	logger       *slog.Logger

	ready atomic.Bool
	vocab atomic.Pointer[catalog.Vocabulary]
}

// NewServer creates the API server. transcriber may be nil when voice input
// is not deployed.
func NewServer(orchestrator *agent.Orchestrator, index core.VectorIndex, transcriber core.Transcriber, config ServerConfig, logger *slog.Logger) *Server {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultServerConfig().MaxUploadBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		orchestrator: orchestrator,
		index:        index,
		transcriber:  transcriber,
		config:       config,
		logger:       logger,
	}
	s.setupRoutes()
	return s
}

// SetReady flips the health status once ingestion completed.
func (s *Server) SetReady(vocab *catalog.Vocabulary) {
	s.vocab.Store(vocab)
	s.ready.Store(true)
}

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	s.router.Use(s.loggingMiddleware)
	s.router.Use(jsonContentTypeMiddleware)

	s.router.HandleFunc("/api/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/search", s.handleSearch).Methods("POST")
	s.router.HandleFunc("/api/chat", s.handleChat).Methods("POST")
	s.router.HandleFunc("/api/tryon", s.handleTryOn).Methods("POST")
	s.router.HandleFunc("/api/voice/transcribe", s.handleTranscribe).Methods("POST")
	s.router.HandleFunc("/api/products/{id}", s.handleProductDetail).Methods("GET")
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.Info("starting api server", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success": false, "error": "error marshaling response"}`))
		return
	}
	w.WriteHeader(code)
	w.Write(response)
}

func (s *Server) respondWithError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrEmptyQuery),
		errors.Is(err, core.ErrZeroWeights),
		errors.Is(err, core.ErrInvalidDimension):
		code = http.StatusBadRequest
	case errors.Is(err, core.ErrProductNotFound),
		errors.Is(err, core.ErrSessionNotFound):
		code = http.StatusNotFound
	case errors.Is(err, core.ErrSessionBusy):
		code = http.StatusConflict
	case errors.Is(err, core.ErrEmbeddingFailure),
		errors.Is(err, core.ErrCollaborator):
		code = http.StatusBadGateway
	case errors.Is(err, core.ErrIndexUnavailable):
		code = http.StatusServiceUnavailable
	}

	s.respondWithJSON(w, code, map[string]any{
		"success":   false,
		"error":     err.Error(),
		"retryable": core.Retryable(err),
	})
}
