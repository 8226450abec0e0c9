package handler

import (
	"net/http"

	"github.com/n8kahl/copilotd/internal/live"
	"github.com/n8kahl/copilotd/internal/tiles"
)

// TileHandler serves the reconciled watchlist state.
type TileHandler struct {
	reconciler *live.Reconciler
	store      *tiles.Store
}

// NewTileHandler creates a TileHandler.
func NewTileHandler(reconciler *live.Reconciler, store *tiles.Store) *TileHandler {
	return &TileHandler{reconciler: reconciler, store: store}
}

// ListTiles responds with all tiles in display order.
// GET /api/tiles
func (h *TileHandler) ListTiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tiles": h.reconciler.OrderedTiles(),
	})
}

// GetTile responds with one tile by symbol.
// GET /api/tiles/{symbol}
func (h *TileHandler) GetTile(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	tile, ok := h.store.Get(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown symbol: "+symbol)
		return
	}
	writeJSON(w, http.StatusOK, tile)
}
