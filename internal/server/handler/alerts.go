package handler

import (
	"net/http"

	"github.com/n8kahl/copilotd/internal/domain"
)

// AlertHandler serves the durable dispatch history. The store is nil when
// Postgres is not configured; history requests then return 503 rather than
// pretending the log is empty.
type AlertHandler struct {
	store domain.AlertStore
}

// NewAlertHandler creates an AlertHandler. A nil store disables history.
func NewAlertHandler(store domain.AlertStore) *AlertHandler {
	return &AlertHandler{store: store}
}

// ListHistory responds with dispatched alerts, newest first.
// GET /api/alerts/history
func (h *AlertHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, domain.ErrStoreDisabled.Error())
		return
	}

	records, err := h.store.List(r.Context(), parseListOpts(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load alert history")
		return
	}
	if records == nil {
		records = []domain.AlertRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": records,
	})
}
