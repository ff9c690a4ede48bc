package http

import (
	"context"
	"net/http"
	"time"
)

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks that the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	status, code := "ready", http.StatusOK
	switch {
	case s.deps.Store == nil:
		checks["store"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	default:
		if err := s.deps.Store.Ping(ctx); err != nil {
			checks["store"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}
