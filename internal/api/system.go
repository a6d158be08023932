package api

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout bounds each dependency check.
const healthCheckTimeout = 2 * time.Second

// Health status values.
const (
	healthOK       = "OK"
	healthDegraded = "DEGRADED"
)

type healthResponse struct {
	Status      string            `json:"status"`
	Timestamp   string            `json:"timestamp"`
	Uptime      float64           `json:"uptime"`
	Environment string            `json:"environment"`
	Version     string            `json:"version,omitempty"`
	Components  map[string]string `json:"components"`
}

// handleHealth reports liveness. A failed database ping answers 503; the
// optional components (MQTT, InfluxDB) are reported without affecting the
// status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      healthOK,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Uptime:      time.Since(s.started).Seconds(),
		Environment: s.cfg.Environment,
		Version:     s.version,
		Components:  map[string]string{"database": "ok"},
	}
	status := http.StatusOK

	if err := checkHealth(r.Context(), s.db); err != nil {
		s.logger.Warn("health check: database unavailable", "error", err)
		resp.Status = healthDegraded
		resp.Components["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	for name, c := range s.components {
		if c == nil {
			continue
		}
		if err := checkHealth(r.Context(), c); err != nil {
			resp.Components[name] = "unavailable"
			continue
		}
		resp.Components[name] = "ok"
	}

	writeJSON(w, status, resp)
}

func checkHealth(ctx context.Context, c HealthChecker) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return c.HealthCheck(ctx)
}

// handleNotFound answers unknown routes with the envelope.
func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "Route not found")
}

// handleMethodNotAllowed answers known routes called with the wrong method.
func handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
