package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/desertthunder/scribe/internal/shared"
	"github.com/desertthunder/scribe/internal/tasks"
)

// defaultHeartbeat is the SSE keepalive interval. Proxies commonly cut idle
// connections around 60s, so half that keeps streams alive.
const defaultHeartbeat = 30 * time.Second

// Server ties the orchestrator to its HTTP surface.
type Server struct {
	addr           string
	allowedOrigins []string
	tempDir        string
	orch           *tasks.Orchestrator
	logger         *log.Logger

	// heartbeat is overridable so stream tests do not wait 30 seconds.
	heartbeat time.Duration
}

func New(config *shared.Config, orch *tasks.Orchestrator, logger *log.Logger) *Server {
	origins := []string{"*"}
	if config.Server.AllowedOrigins != "" {
		origins = strings.Split(config.Server.AllowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}
	return &Server{
		addr:           fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		allowedOrigins: origins,
		tempDir:        config.Storage.TempDir,
		orch:           orch,
		logger:         logger,
		heartbeat:      defaultHeartbeat,
	}
}

// Router builds the full handler chain: routes, logging, CORS.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(Logging(s.logger))

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/process-video", s.handleProcess).Methods(http.MethodPost)
	api.HandleFunc("/task-status/{id}", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/task-stream/{id}", s.handleStream).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/history/{id}", s.handleHistoryDetail).Methods(http.MethodGet)
	api.HandleFunc("/history/{id}", s.handleHistoryDelete).Methods(http.MethodDelete)
	api.HandleFunc("/task/{id}", s.handleTaskDelete).Methods(http.MethodDelete)
	api.HandleFunc("/download/{filename}", s.handleDownload).Methods(http.MethodGet)
	api.HandleFunc("/tasks/active", s.handleActive).Methods(http.MethodGet)

	cors := handlers.CORS(
		handlers.AllowedOrigins(s.allowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	return cors(r)
}

// Start serves until ctx is canceled, then drains connections gracefully.
// WriteTimeout stays zero because SSE streams are long-lived.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
