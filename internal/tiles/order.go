package tiles

import (
	"sort"

	"github.com/n8kahl/copilotd/internal/domain"
)

// SortTiles orders tiles by descending grade rank, tie-broken by descending
// confidence score. The sort is stable so equal-ranked tiles keep their
// incoming (watchlist) order. The input slice is not modified.
func SortTiles(in []domain.Tile) []domain.Tile {
	out := make([]domain.Tile, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := domain.GradeRank(out[i].Grade), domain.GradeRank(out[j].Grade)
		if ri != rj {
			return ri > rj
		}
		return out[i].ConfidenceScore > out[j].ConfidenceScore
	})
	return out
}

// StableOrder returns prev when next lists the same symbols in the same
// positions, and next otherwise. Reusing the previous slice lets consumers
// detect "nothing moved" by identity, so a field update that doesn't change
// rank never re-shuffles rows.
func StableOrder(prev, next []string) []string {
	if len(prev) != len(next) {
		return next
	}
	for i := range next {
		if prev[i] != next[i] {
			return next
		}
	}
	return prev
}

// SymbolOrder extracts the symbol sequence from an ordered tile list.
func SymbolOrder(tiles []domain.Tile) []string {
	out := make([]string, len(tiles))
	for i, t := range tiles {
		out[i] = t.Symbol
	}
	return out
}
