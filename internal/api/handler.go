// Package api serves the question pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ledgerask/ledgerask/internal/auth"
	"github.com/ledgerask/ledgerask/internal/config"
	"github.com/ledgerask/ledgerask/internal/observability"
	"github.com/ledgerask/ledgerask/internal/pipeline"
	"github.com/ledgerask/ledgerask/internal/store"
)

type ReadinessCheck func(ctx context.Context) error

type Asker interface {
	Ask(ctx context.Context, question string) pipeline.Response
}

type SchemaReader interface {
	Schema(ctx context.Context) (pipeline.SchemaSnapshot, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Asker             Asker
	Schema            SchemaReader
}

const maxRequestBodyBytes = 64 << 10

type server struct {
	cfg  config.Config
	deps Dependencies
}

type route struct {
	pattern string
	handle  http.HandlerFunc
	// protected routes sit behind the auth middleware when auth is required.
	protected bool
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	s := &server{cfg: cfg, deps: deps}
	gate := s.authGate()

	mux := http.NewServeMux()
	for _, rt := range s.routes() {
		var h http.Handler = rt.handle
		if rt.protected {
			h = gate(h)
		}
		mux.Handle(rt.pattern, h)
	}

	middlewares := []func(http.Handler) http.Handler{observability.TraceMiddleware, observability.MetricsMiddleware}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func (s *server) routes() []route {
	return []route{
		{pattern: "GET /v1/health", handle: s.health},
		{pattern: "GET /v1/ready", handle: s.ready},
		{pattern: "GET /v1/metrics", handle: promhttp.Handler().ServeHTTP},
		{pattern: "POST /v1/ask", handle: s.ask, protected: true},
		{pattern: "GET /query", handle: s.legacyQuery, protected: true},
		{pattern: "GET /v1/schema", handle: s.schema, protected: true},
	}
}

// authGate fails closed when auth is required but no middleware was supplied.
func (s *server) authGate() func(http.Handler) http.Handler {
	switch {
	case !s.cfg.Auth.Required:
		return func(next http.Handler) http.Handler { return next }
	case s.deps.AuthMiddleware != nil:
		return s.deps.AuthMiddleware
	}
	if s.deps.Logger != nil {
		s.deps.Logger.Error("auth required but auth middleware missing")
	}
	return func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
		})
	}
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": s.cfg.Service.Name})
}

func (s *server) ready(w http.ResponseWriter, r *http.Request) {
	if s.deps.Readiness != nil {
		timeout := s.deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := s.deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// CheckStore opens and pings a fresh store handle.
func CheckStore(opener store.Opener) ReadinessCheck {
	return func(ctx context.Context) error {
		return store.Ping(ctx, opener)
	}
}

func CheckGenerationConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.Generation.Endpoint == "" {
			return errors.New("generation endpoint is not configured")
		}
		if cfg.Generation.APIKey == "" {
			return errors.New("generation api key is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func requireRole(r *http.Request, role string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	if identity.HasRole(role) {
		return nil
	}
	return fmt.Errorf("missing required role %q", role)
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
