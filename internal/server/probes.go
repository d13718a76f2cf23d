package server

import (
	"context"
	"net/http"
	"time"
)

// probeTimeout bounds the database check on /readyz so a hung pool does not
// hang the probe.
const probeTimeout = 5 * time.Second

// handleHealthz is the liveness probe. A process that can serve HTTP is
// alive.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, envelope{"status": "ok"})
}

// handleReadyz reports whether the API can do useful work. Every upload and
// search lands in the database, so readiness is its reachability.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	status := http.StatusOK
	body := envelope{"status": "ok", "checks": envelope{"database": "ok"}}
	if err := s.store.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "fail"
		body["checks"] = envelope{"database": "fail: " + err.Error()}
	}
	respond(w, status, body)
}
