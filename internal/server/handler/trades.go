package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/n8kahl/copilotd/internal/dispatch"
	"github.com/n8kahl/copilotd/internal/domain"
	"github.com/n8kahl/copilotd/internal/ledger"
)

// TradeHandler serves the active-trade panel: staging contracts, dispatching
// lifecycle alerts, and closing or removing trades.
type TradeHandler struct {
	ledger     *ledger.Ledger
	dispatcher *dispatch.Dispatcher
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(lg *ledger.Ledger, dispatcher *dispatch.Dispatcher) *TradeHandler {
	return &TradeHandler{ledger: lg, dispatcher: dispatcher}
}

// ListTrades responds with the full trade list, newest first.
// GET /api/trades
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"trades": h.ledger.Trades(),
	})
}

// loadTradeRequest stages a contract into the ledger.
type loadTradeRequest struct {
	Symbol   string          `json:"symbol"`
	Contract domain.Contract `json:"contract"`
}

// LoadTrade stages a contract as an active trade, or refreshes the existing
// trade for the same contract.
// POST /api/trades
func (h *TradeHandler) LoadTrade(w http.ResponseWriter, r *http.Request) {
	var req loadTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Contract.Contract == "" {
		writeError(w, http.StatusBadRequest, "contract identifier is required")
		return
	}

	trade := h.ledger.LoadContract(r.Context(), req.Symbol, req.Contract)
	writeJSON(w, http.StatusOK, trade)
}

// DispatchAlert validates and delivers a lifecycle action for one trade.
// POST /api/trades/{contractId}/alert
func (h *TradeHandler) DispatchAlert(w http.ResponseWriter, r *http.Request) {
	contractID := r.PathValue("contractId")

	var payload domain.AlertPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	trade, err := h.dispatcher.DispatchAlert(r.Context(), contractID, payload)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

// ReAlert re-dispatches the trade's most recent alert with a refreshed
// price.
// POST /api/trades/{contractId}/realert
func (h *TradeHandler) ReAlert(w http.ResponseWriter, r *http.Request) {
	contractID := r.PathValue("contractId")

	trade, err := h.dispatcher.ReAlert(r.Context(), contractID)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

// CloseTrade marks a trade closed without deleting its history.
// POST /api/trades/{contractId}/close
func (h *TradeHandler) CloseTrade(w http.ResponseWriter, r *http.Request) {
	contractID := r.PathValue("contractId")

	trade, err := h.ledger.Close(r.Context(), contractID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown contract: "+contractID)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

// RemoveTrade hard-deletes one trade.
// DELETE /api/trades/{contractId}
func (h *TradeHandler) RemoveTrade(w http.ResponseWriter, r *http.Request) {
	contractID := r.PathValue("contractId")

	if err := h.ledger.Remove(r.Context(), contractID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown contract: "+contractID)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearTrades hard-deletes all trades.
// DELETE /api/trades
func (h *TradeHandler) ClearTrades(w http.ResponseWriter, r *http.Request) {
	h.ledger.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// writeDispatchError maps dispatcher failures to HTTP statuses. A failed
// engine post is a 502 so the dashboard can tell "engine down" apart from
// operator error.
func writeDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAction):
		writeError(w, http.StatusBadRequest, "unknown alert action")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "no active trade for that contract")
	case errors.Is(err, domain.ErrNoTemplate):
		writeError(w, http.StatusConflict, "no prior alert to re-send")
	default:
		writeError(w, http.StatusBadGateway, "alert could not be delivered to the engine")
	}
}
