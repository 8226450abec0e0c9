package tiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n8kahl/copilotd/internal/domain"
)

func tile(symbol, grade string, confidence float64) domain.Tile {
	return domain.Tile{Symbol: symbol, Grade: grade, ConfidenceScore: confidence}
}

func TestSortTiles_GradeDominatesConfidence(t *testing.T) {
	in := []domain.Tile{
		tile("TSLA", "C", 90),
		tile("MSFT", "A", 60),
		tile("AMD", "B", 80),
		tile("AAPL", "A", 92),
	}

	sorted := SortTiles(in)

	assert.Equal(t, []string{"AAPL", "MSFT", "AMD", "TSLA"}, SymbolOrder(sorted))
	// Input untouched.
	assert.Equal(t, "TSLA", in[0].Symbol)
}

func TestSortTiles_UngradedSinkLast(t *testing.T) {
	sorted := SortTiles([]domain.Tile{
		tile("XYZ", "", 99),
		tile("SPY", "F", 10),
	})
	assert.Equal(t, []string{"SPY", "XYZ"}, SymbolOrder(sorted))
}

func TestSortTiles_StableWithinEqualRank(t *testing.T) {
	sorted := SortTiles([]domain.Tile{
		tile("SPY", "B", 70),
		tile("QQQ", "B", 70),
	})
	assert.Equal(t, []string{"SPY", "QQQ"}, SymbolOrder(sorted))
}

func TestStableOrder_ReusesIdenticalOrder(t *testing.T) {
	prev := []string{"AAPL", "MSFT", "AMD"}
	next := []string{"AAPL", "MSFT", "AMD"}

	got := StableOrder(prev, next)

	// Reference identity, not just value equality.
	require.Len(t, got, 3)
	assert.Same(t, &prev[0], &got[0])
}

func TestStableOrder_EmitsNewOrderOnChange(t *testing.T) {
	prev := []string{"AAPL", "MSFT"}

	reordered := StableOrder(prev, []string{"MSFT", "AAPL"})
	assert.NotSame(t, &prev[0], &reordered[0])
	assert.Equal(t, []string{"MSFT", "AAPL"}, reordered)

	grown := StableOrder(prev, []string{"AAPL", "MSFT", "AMD"})
	assert.Equal(t, []string{"AAPL", "MSFT", "AMD"}, grown)
}
