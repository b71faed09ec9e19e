package metrics

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/marmos91/dittosmb/internal/logger"
)

// ReadinessFunc reports whether the server can take clients. The details
// are returned in the probe body; a non-nil error makes the probe fail.
type ReadinessFunc func() (details map[string]any, err error)

// healthResponse is the body of every health probe.
type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
}

type healthHandler struct {
	service   string
	startTime time.Time
	ready     ReadinessFunc
}

// liveness handles GET /health. It succeeds while the process serves HTTP.
func (h *healthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	uptime := time.Since(h.startTime)
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Data: map[string]any{
			"service":    h.service,
			"started_at": h.startTime.UTC().Format(time.RFC3339),
			"uptime":     uptime.Round(time.Second).String(),
			"uptime_sec": int64(uptime.Seconds()),
		},
	})
}

// readiness handles GET /health/ready.
func (h *healthHandler) readiness(w http.ResponseWriter, _ *http.Request) {
	if h.ready == nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:    "unhealthy",
			Timestamp: time.Now().UTC(),
			Error:     "server not started",
		})
		return
	}

	details, err := h.ready()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:    "unhealthy",
			Timestamp: time.Now().UTC(),
			Data:      details,
			Error:     err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Data:      details,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Debug("Failed to encode health response", logger.KeyError, err)
	}
}
