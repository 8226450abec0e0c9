package live

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n8kahl/copilotd/internal/domain"
	"github.com/n8kahl/copilotd/internal/tiles"
)

type fakeFetcher struct {
	mu    sync.Mutex
	tiles map[string]*domain.PartialTile
	fails map[string]bool
	calls []string
}

func (f *fakeFetcher) TileState(_ context.Context, symbol string) (*domain.PartialTile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, symbol)
	if f.fails[symbol] {
		return nil, domain.ErrFetchFailed
	}
	if tile, ok := f.tiles[symbol]; ok {
		return tile, nil
	}
	return nil, domain.ErrNotFound
}

type watchlistFunc func(ctx context.Context) ([]string, error)

func (f watchlistFunc) Watchlist(ctx context.Context) ([]string, error) { return f(ctx) }

type recordingSyncer struct {
	mu    sync.Mutex
	seen  []domain.Tile
}

func (r *recordingSyncer) SyncTile(_ context.Context, tile domain.Tile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, tile)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func partial(symbol, grade string, confidence float64) *domain.PartialTile {
	return &domain.PartialTile{
		Symbol:          symbol,
		Grade:           &grade,
		ConfidenceScore: &confidence,
	}
}

func newTestReconciler(t *testing.T, fetcher *fakeFetcher, syncer TradeSyncer) *Reconciler {
	t.Helper()
	store := tiles.NewStore(fetcher)
	watch := watchlistFunc(func(context.Context) ([]string, error) { return nil, nil })
	return NewReconciler(store, watch, NewMonitor(), syncer, nil, Config{}, discardLogger())
}

func TestSetWatchlist_BootstrapFailureIsolation(t *testing.T) {
	fetcher := &fakeFetcher{
		tiles: map[string]*domain.PartialTile{
			"AAPL": partial("AAPL", "A", 90),
			"TSLA": partial("TSLA", "C", 70),
		},
		fails: map[string]bool{"MSFT": true},
	}
	r := newTestReconciler(t, fetcher, nil)

	r.SetWatchlist(context.Background(), []string{"AAPL", "MSFT", "TSLA"})

	got := tiles.SymbolOrder(r.OrderedTiles())
	assert.ElementsMatch(t, []string{"AAPL", "TSLA"}, got)
}

func TestSetWatchlist_EvictsDepartedSymbols(t *testing.T) {
	fetcher := &fakeFetcher{tiles: map[string]*domain.PartialTile{
		"AAPL": partial("AAPL", "A", 90),
		"AMD":  partial("AMD", "B", 80),
	}}
	r := newTestReconciler(t, fetcher, nil)

	r.SetWatchlist(context.Background(), []string{"AAPL", "AMD"})
	r.SetWatchlist(context.Background(), []string{"AAPL"})

	got := tiles.SymbolOrder(r.OrderedTiles())
	assert.Equal(t, []string{"AAPL"}, got)
}

func TestSetWatchlist_DoesNotRefetchExisting(t *testing.T) {
	fetcher := &fakeFetcher{tiles: map[string]*domain.PartialTile{
		"AAPL": partial("AAPL", "A", 90),
	}}
	r := newTestReconciler(t, fetcher, nil)

	r.SetWatchlist(context.Background(), []string{"AAPL"})
	r.SetWatchlist(context.Background(), []string{"AAPL"})

	assert.Equal(t, []string{"AAPL"}, fetcher.calls)
}

func TestHandleMessage_TileMergesAndSyncs(t *testing.T) {
	fetcher := &fakeFetcher{}
	syncer := &recordingSyncer{}
	r := newTestReconciler(t, fetcher, syncer)
	r.SetWatchlist(context.Background(), []string{"SPY"})

	r.HandleMessage(context.Background(), []byte(`{"type":"tile","data":{"symbol":"SPY","grade":"A-","confidence_score":77}}`))

	require.Len(t, syncer.seen, 1)
	assert.Equal(t, "SPY", syncer.seen[0].Symbol)
	assert.Equal(t, "A-", syncer.seen[0].Grade, "syncer receives the full merged tile")
	assert.Equal(t, 0, r.monitor.Age())

	got := tiles.SymbolOrder(r.OrderedTiles())
	assert.Equal(t, []string{"SPY"}, got)
}

func TestHandleMessage_HeartbeatOnlyTouchesLiveness(t *testing.T) {
	syncer := &recordingSyncer{}
	r := newTestReconciler(t, &fakeFetcher{}, syncer)

	r.HandleMessage(context.Background(), []byte(`{"type":"heartbeat"}`))

	assert.Empty(t, syncer.seen)
	assert.Empty(t, r.OrderedTiles())
}

func TestHandleMessage_MalformedDroppedSilently(t *testing.T) {
	syncer := &recordingSyncer{}
	r := newTestReconciler(t, &fakeFetcher{}, syncer)

	r.HandleMessage(context.Background(), []byte(`not json`))
	r.HandleMessage(context.Background(), []byte(`{"type":"mystery"}`))

	assert.Empty(t, syncer.seen)
}

func TestOrder_ReusedWhenRankUnchanged(t *testing.T) {
	fetcher := &fakeFetcher{tiles: map[string]*domain.PartialTile{
		"AAPL": partial("AAPL", "A", 92),
		"AMD":  partial("AMD", "B", 80),
	}}
	r := newTestReconciler(t, fetcher, nil)
	r.SetWatchlist(context.Background(), []string{"AAPL", "AMD"})

	first := r.Order()
	require.Equal(t, []string{"AAPL", "AMD"}, first)

	// A price-style update that does not change rank.
	r.HandleMessage(context.Background(), []byte(`{"type":"tile","data":{"symbol":"AMD","confidence_score":81}}`))
	second := r.Order()

	assert.Same(t, &first[0], &second[0], "unchanged order must be reference-identical")

	// A rank flip must produce a new order.
	r.HandleMessage(context.Background(), []byte(`{"type":"tile","data":{"symbol":"AMD","grade":"A+"}}`))
	third := r.Order()
	assert.Equal(t, []string{"AMD", "AAPL"}, third)
}

func TestClose_MakesHandlersNoOps(t *testing.T) {
	syncer := &recordingSyncer{}
	r := newTestReconciler(t, &fakeFetcher{}, syncer)
	r.Close()

	r.HandleMessage(context.Background(), []byte(`{"type":"tile","data":{"symbol":"SPY"}}`))
	r.SetWatchlist(context.Background(), []string{"SPY"})

	assert.Empty(t, syncer.seen)
	assert.Empty(t, r.OrderedTiles())
}

func TestHandleStatus(t *testing.T) {
	r := newTestReconciler(t, &fakeFetcher{}, nil)

	r.HandleStatus(context.Background(), domain.ConnOnline)
	assert.Equal(t, domain.ConnOnline, r.monitor.Status())

	r.HandleStatus(context.Background(), domain.ConnOffline)
	assert.Equal(t, domain.ConnOffline, r.monitor.Status())
}
