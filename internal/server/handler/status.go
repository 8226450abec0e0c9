package handler

import (
	"net/http"
	"time"

	"github.com/n8kahl/copilotd/internal/live"
)

// StatusHandler reports connection liveness and session metadata.
type StatusHandler struct {
	monitor   *live.Monitor
	mode      string
	startedAt time.Time
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(monitor *live.Monitor, mode string, startedAt time.Time) *StatusHandler {
	return &StatusHandler{monitor: monitor, mode: mode, startedAt: startedAt}
}

// GetStatus responds with the stream connection state, seconds since the
// last signal, and daemon uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	uptime := int64(time.Since(h.startedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"stream_status":  string(h.monitor.Status()),
		"age_seconds":    h.monitor.Age(),
		"uptime_seconds": uptime,
	})
}
