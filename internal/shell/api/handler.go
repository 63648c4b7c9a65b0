// Package api provides HTTP handlers for the Roster API.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/artpar/roster/internal/core/monitoring"
	"github.com/artpar/roster/internal/shell/api/openapi"
	"github.com/artpar/roster/internal/shell/employees"
	"github.com/artpar/roster/internal/shell/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultMaxBodyBytes caps request bodies at 1 MiB.
const DefaultMaxBodyBytes int64 = 1 << 20

// readyTimeout bounds the store ping behind /ready.
const readyTimeout = 2 * time.Second

// =============================================================================
// Handler
// =============================================================================

// Trail is an audit trail whose state is reported by /ready.
type Trail interface {
	Name() string
	Running() bool
	Stats() (written, dropped, failed uint64)
}

// Config configures the API handler.
type Config struct {
	Employees *employees.Service
	Store     store.Store
	Trails    []Trail
	Logger    *slog.Logger

	// BasePath prefixes the employee routes. Default: "/api". Use "/" to
	// mount them at the root.
	BasePath string

	// MaxBodyBytes caps request bodies. Default: 1 MiB.
	MaxBodyBytes int64

	// AllowedOrigins lists CORS origins. Default: all origins.
	AllowedOrigins []string
}

// Handler provides HTTP handlers for the API.
type Handler struct {
	employees      *employees.Service
	store          store.Store
	trails         []Trail
	docs           *openapi.Generator
	logger         *slog.Logger
	basePath       string
	maxBodyBytes   int64
	allowedOrigins []string
}

// NewHandler creates a new API handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BasePath == "" {
		cfg.BasePath = "/api"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	basePath := ""
	if trimmed := strings.Trim(cfg.BasePath, "/"); trimmed != "" {
		basePath = "/" + trimmed
	}

	return &Handler{
		employees:      cfg.Employees,
		store:          cfg.Store,
		trails:         cfg.Trails,
		docs:           NewDocs(basePath),
		logger:         cfg.Logger.With("component", "http"),
		basePath:       basePath,
		maxBodyBytes:   cfg.MaxBodyBytes,
		allowedOrigins: cfg.AllowedOrigins,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(h.requestID)
	r.Use(middleware.RealIP)
	r.Use(h.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(h.corsHandler())
	r.Use(h.jsonContentType)
	r.Use(h.limitBody)

	r.NotFound(h.handleNotFound)
	r.MethodNotAllowed(h.handleMethodNotAllowed)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	// API documentation
	r.Get("/api-docs/openapi.json", h.docs.Handler())
	r.Get("/api-docs/openapi.yaml", h.docs.YAMLHandler())

	r.Route(h.basePath+"/employees", func(r chi.Router) {
		r.Get("/", h.handleListEmployees)
		r.Post("/", h.handleCreateEmployee)
		r.Get("/{id}", h.handleGetEmployee)
		r.Put("/{id}", h.handleUpdateEmployee)
		r.Delete("/{id}", h.handleDeleteEmployee)
	})

	return r
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	pingErr := h.store.Ping(ctx)
	if pingErr != nil {
		h.logger.Warn("readiness check failed", "check", "database", "error", pingErr)
	}

	checks := []monitoring.Check{{Name: "database", Status: monitoring.StoreStatus(pingErr)}}
	for _, t := range h.trails {
		_, dropped, failed := t.Stats()
		checks = append(checks, monitoring.Check{
			Name:   t.Name(),
			Status: monitoring.TrailStatus(t.Running(), dropped, failed),
		})
	}

	readiness := monitoring.AggregateReadiness(checks)
	status := http.StatusOK
	if readiness == monitoring.ReadinessNotReady {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, ReadyResponse{
		Status: string(readiness),
		Checks: monitoring.Summarize(checks),
	})
}

// =============================================================================
// Employee Handlers
// =============================================================================

func (h *Handler) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	result, err := h.employees.List(r.Context(), h.serviceRequest(r))
	h.reply(w, result, err)
}

func (h *Handler) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	result, err := h.employees.Get(r.Context(), h.serviceRequest(r), chi.URLParam(r, "id"))
	h.reply(w, result, err)
}

func (h *Handler) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	result, err := h.employees.Add(r.Context(), h.serviceRequest(r))
	h.reply(w, result, err)
}

func (h *Handler) handleUpdateEmployee(w http.ResponseWriter, r *http.Request) {
	result, err := h.employees.Update(r.Context(), h.serviceRequest(r), chi.URLParam(r, "id"))
	h.reply(w, result, err)
}

func (h *Handler) handleDeleteEmployee(w http.ResponseWriter, r *http.Request) {
	result, err := h.employees.Delete(r.Context(), h.serviceRequest(r), chi.URLParam(r, "id"))
	h.reply(w, result, err)
}

func (h *Handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, http.StatusNotFound, "Not found")
}

func (h *Handler) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// =============================================================================
// Helpers
// =============================================================================

// serviceRequest describes r for the employee service. The body is read in
// full for methods that carry one.
func (h *Handler) serviceRequest(r *http.Request) employees.Request {
	req := employees.Request{
		Method:    r.Method,
		Path:      r.URL.Path,
		RequestID: middleware.GetReqID(r.Context()),
	}

	if r.Method == http.MethodPost || r.Method == http.MethodPut {
		req.Body, req.BodyErr = io.ReadAll(r.Body)
		if req.BodyErr != nil {
			h.logger.Warn("failed to read request body", "error", req.BodyErr, "request_id", req.RequestID)
		}
	}

	return req
}

// reply writes the outcome of a service call.
func (h *Handler) reply(w http.ResponseWriter, v any, err error) {
	status, body := employees.Reply(v, err)
	h.writeJSON(w, status, body)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, employees.ErrorBody{Error: message})
}
