// Package tiles holds the in-memory per-symbol tile state and its
// rendering-stable ordering. The store applies merge-don't-replace
// semantics so sparse delta updates never erase previously known fields.
package tiles

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/n8kahl/copilotd/internal/domain"
)

// Store keeps the latest known tile per symbol. All methods are safe for
// concurrent use; the returned tiles are copies and safe to retain.
type Store struct {
	fetcher domain.SnapshotFetcher
	now     func() time.Time

	mu    sync.RWMutex
	tiles map[string]domain.Tile
}

// NewStore creates a Store that uses fetcher for bootstrap fetches.
func NewStore(fetcher domain.SnapshotFetcher) *Store {
	return &Store{
		fetcher: fetcher,
		now:     time.Now,
		tiles:   make(map[string]domain.Tile),
	}
}

// Merge applies a partial update to the stored tile for incoming.Symbol,
// creating the record when none exists. Fields present in the update
// overwrite the stored values; absent fields are retained. UpdatedAt is
// restamped with the current time and never moves backwards.
func (s *Store) Merge(incoming domain.PartialTile) domain.Tile {
	s.mu.Lock()
	defer s.mu.Unlock()

	tile, ok := s.tiles[incoming.Symbol]
	if !ok {
		tile = domain.Tile{Symbol: incoming.Symbol}
	}
	incoming.Apply(&tile)

	if stamp := s.now(); stamp.After(tile.UpdatedAt) {
		tile.UpdatedAt = stamp
	}
	s.tiles[incoming.Symbol] = tile
	return tile
}

// Bootstrap performs the one-shot fetch-and-merge for a symbol that has no
// record yet. The fetch result goes through Merge rather than a blind
// overwrite, so a push update racing the fetch converges field-wise with
// last-write-wins.
func (s *Store) Bootstrap(ctx context.Context, symbol string) (domain.Tile, error) {
	partial, err := s.fetcher.TileState(ctx, symbol)
	if err != nil {
		return domain.Tile{}, fmt.Errorf("tiles: bootstrap %s: %w", symbol, err)
	}
	if partial == nil || partial.Symbol == "" {
		return domain.Tile{}, fmt.Errorf("tiles: bootstrap %s: %w", symbol, domain.ErrFetchFailed)
	}
	return s.Merge(*partial), nil
}

// Get returns the stored tile for symbol, if any.
func (s *Store) Get(symbol string) (domain.Tile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tile, ok := s.tiles[symbol]
	return tile, ok
}

// Has reports whether a record exists for symbol.
func (s *Store) Has(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tiles[symbol]
	return ok
}

// Evict removes the record for symbol. Called when a symbol leaves the
// watchlist.
func (s *Store) Evict(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tiles, symbol)
}

// Symbols returns the symbols currently held, in no particular order.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.tiles))
	for sym := range s.tiles {
		out = append(out, sym)
	}
	return out
}

// Snapshot returns the tiles for the given symbols in the given order,
// skipping symbols with no record yet (the window before bootstrap
// completes).
func (s *Store) Snapshot(symbols []string) []domain.Tile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Tile, 0, len(symbols))
	for _, sym := range symbols {
		if tile, ok := s.tiles[sym]; ok {
			out = append(out, tile)
		}
	}
	return out
}
