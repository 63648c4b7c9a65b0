package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/roster/internal/shell/api"
	"github.com/artpar/roster/internal/shell/audit"
	"github.com/artpar/roster/internal/shell/employees"
	"github.com/artpar/roster/internal/shell/store"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitHTTPServerError = 4
)

// =============================================================================
// Server
// =============================================================================

// Server wires the store, the audit trails and the HTTP API together.
type Server struct {
	config     *Config
	httpServer *http.Server
	store      *store.SQLiteStore
	activity   *audit.ActivityLog
	tracker    *audit.RequestTracker
	logger     *slog.Logger
}

// NewServer creates a new server with all dependencies.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	if err := ensureDataDir(cfg.Database.DSN); err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      fmt.Errorf("failed to create data directory: %w", err),
			ExitCode: ExitDatabaseError,
		}
	}

	// Initialize database
	db, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      fmt.Errorf("failed to initialize database: %w", err),
			ExitCode: ExitDatabaseError,
		}
	}
	logger.Info("database initialized", "dsn", cfg.Database.DSN)

	// Audit trails
	sinkConfig := cfg.Audit.SinkConfig()
	activity := audit.NewActivityLog(db, sinkConfig, logger)
	tracker := audit.NewRequestTracker(db, sinkConfig, logger)

	service := employees.NewService(db, activity, tracker, logger)

	handler := api.NewHandler(api.Config{
		Employees:      service,
		Store:          db,
		Trails:         []api.Trail{activity, tracker},
		Logger:         logger,
		BasePath:       cfg.Server.BasePath,
		AllowedOrigins: cfg.Server.CORSOrigins,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		store:      db,
		activity:   activity,
		tracker:    tracker,
		logger:     logger,
	}, nil
}

// Handler returns the HTTP handler served by the server.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the audit trails and the HTTP server, then blocks until ctx
// is cancelled or the listener fails. It always shuts down before returning.
func (s *Server) Start(ctx context.Context) error {
	s.activity.Start()
	s.tracker.Start()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "address", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("received shutdown signal")
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		shutdownErr := s.shutdownWithTimeout()
		if shutdownErr != nil {
			s.logger.Error("shutdown error", "error", shutdownErr)
		}
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	}

	return s.shutdownWithTimeout()
}

func (s *Server) shutdownWithTimeout() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops accepting requests, drains the audit trails and closes the
// database. Audit entries queued by in-flight requests are written before
// the store closes.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}

	s.activity.Stop()
	s.tracker.Stop()

	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
		errs = append(errs, fmt.Errorf("database: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	s.logger.Info("server stopped")
	return nil
}

// ensureDataDir creates the directory holding a file-backed database.
func ensureDataDir(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// =============================================================================
// Errors
// =============================================================================

// ServerError represents a server error with an exit code.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
