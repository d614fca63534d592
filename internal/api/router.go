package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/sim8085-launcher/internal/auth"
	"github.com/nerrad567/sim8085-launcher/internal/journal"
	"github.com/nerrad567/sim8085-launcher/internal/process"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		r.With(s.requirePermission(auth.PermBackendRead)).Get("/backend", s.handleBackend)

		r.Route("/launches", func(r chi.Router) {
			r.Use(s.requirePermission(auth.PermLaunchesRead))
			r.Get("/", s.handleListLaunches)
			r.Get("/{session}", s.handleGetLaunch)
		})

		r.With(s.requirePermission(auth.PermEventsStream)).Get("/ws", s.handleWebSocket)
	})

	r.With(s.requirePermission(auth.PermMetricsRead)).Get("/metrics", s.handleMetrics)

	return r
}

// componentCheckTimeout bounds each integration check in /health.
const componentCheckTimeout = 2 * time.Second

// handleHealth returns the launcher health status. A failing integration
// marks the launcher degraded but still answers 200; the launcher itself is up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
		"session": s.session,
	}

	if len(s.checks) > 0 {
		components := make(map[string]string, len(s.checks))
		for name, c := range s.checks {
			ctx, cancel := context.WithTimeout(r.Context(), componentCheckTimeout)
			err := c.HealthCheck(ctx)
			cancel()
			if err != nil {
				components[name] = err.Error()
				body["status"] = "degraded"
				continue
			}
			components[name] = "ok"
		}
		body["components"] = components
	}

	writeJSON(w, http.StatusOK, body)
}

// backendResponse is the body of GET /api/v1/backend.
type backendResponse struct {
	process.Stats
	URL string `json:"url,omitempty"`
}

func (s *Server) handleBackend(w http.ResponseWriter, _ *http.Request) {
	stats := s.backend.Stats()
	resp := backendResponse{Stats: stats}
	if stats.Port != 0 {
		resp.URL = "http://" + process.BackendHost + ":" + strconv.Itoa(int(stats.Port))
	}
	writeJSON(w, http.StatusOK, resp)
}

const (
	defaultLaunchLimit = 20
	maxLaunchLimit     = 200
)

func (s *Server) handleListLaunches(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "launch journal disabled")
		return
	}

	limit := defaultLaunchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLaunchLimit)
	}

	launches, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing launches", "error", err)
		writeInternalError(w, "failed to read launch journal")
		return
	}
	if launches == nil {
		launches = []journal.Launch{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"launches": launches,
		"count":    len(launches),
	})
}

func (s *Server) handleGetLaunch(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "launch journal disabled")
		return
	}

	session := chi.URLParam(r, "session")
	launch, err := s.history.Get(r.Context(), session)
	switch {
	case errors.Is(err, journal.ErrNotFound):
		writeNotFound(w, "launch not found")
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		s.logger.Error("reading launch", "session", session, "error", err)
		writeInternalError(w, "failed to read launch journal")
	default:
		writeJSON(w, http.StatusOK, launch)
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeUnavailable(w, "metrics disabled")
		return
	}
	s.metrics.ServeHTTP(w, r)
}
