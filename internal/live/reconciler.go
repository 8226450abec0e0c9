package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/n8kahl/copilotd/internal/domain"
	"github.com/n8kahl/copilotd/internal/tiles"
)

// Bus channel names consumed by the dashboard websocket hub.
const (
	ChannelTiles  = "tiles"
	ChannelStatus = "status"
	ChannelTrades = "trades"
)

// TradeSyncer receives the merged tile after every tile update so trade PnL
// stays current. Implemented by the ledger.
type TradeSyncer interface {
	SyncTile(ctx context.Context, tile domain.Tile)
}

// Reconciler merges the asynchronous tile stream, the watchlist, and the
// bootstrap fetches into one consistent, stably ordered tile list.
type Reconciler struct {
	store     *tiles.Store
	watchlist domain.WatchlistSource
	monitor   *Monitor
	syncer    TradeSyncer
	bus       domain.SignalBus
	logger    *slog.Logger

	refreshEvery   time.Duration
	bootstrapLimit int

	closed atomic.Bool

	mu    sync.RWMutex
	watch []string
	order []string
}

// Config carries the reconciler's tunables.
type Config struct {
	// WatchlistRefresh is the interval between watchlist re-evaluations.
	WatchlistRefresh time.Duration
	// BootstrapLimit bounds how many bootstrap fetches run concurrently.
	BootstrapLimit int
}

// NewReconciler wires the reconciler. syncer and bus may be nil; the
// corresponding steps are skipped.
func NewReconciler(store *tiles.Store, watchlist domain.WatchlistSource, monitor *Monitor, syncer TradeSyncer, bus domain.SignalBus, cfg Config, logger *slog.Logger) *Reconciler {
	if cfg.WatchlistRefresh <= 0 {
		cfg.WatchlistRefresh = 30 * time.Second
	}
	if cfg.BootstrapLimit <= 0 {
		cfg.BootstrapLimit = 4
	}
	return &Reconciler{
		store:          store,
		watchlist:      watchlist,
		monitor:        monitor,
		syncer:         syncer,
		bus:            bus,
		logger:         logger.With(slog.String("component", "reconciler")),
		refreshEvery:   cfg.WatchlistRefresh,
		bootstrapLimit: cfg.BootstrapLimit,
	}
}

// Run refreshes the watchlist immediately and then on a fixed interval until
// ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	if err := r.RefreshWatchlist(ctx); err != nil {
		r.logger.WarnContext(ctx, "initial watchlist refresh failed",
			slog.String("error", err.Error()),
		)
	}

	ticker := time.NewTicker(r.refreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.RefreshWatchlist(ctx); err != nil {
				r.logger.WarnContext(ctx, "watchlist refresh failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RefreshWatchlist queries the watchlist source and applies the result.
func (r *Reconciler) RefreshWatchlist(ctx context.Context) error {
	symbols, err := r.watchlist.Watchlist(ctx)
	if err != nil {
		return err
	}
	r.SetWatchlist(ctx, symbols)
	return nil
}

// SetWatchlist applies a watchlist membership change: records for departed
// symbols are evicted, and missing symbols are bootstrapped best-effort. A
// failed bootstrap leaves its symbol absent until the next pass or a push
// message fills it in; it never affects the other symbols.
func (r *Reconciler) SetWatchlist(ctx context.Context, symbols []string) {
	if r.closed.Load() {
		return
	}

	keep := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		keep[sym] = struct{}{}
	}
	for _, sym := range r.store.Symbols() {
		if _, ok := keep[sym]; !ok {
			r.store.Evict(sym)
		}
	}

	r.mu.Lock()
	r.watch = append([]string(nil), symbols...)
	r.mu.Unlock()

	var missing []string
	for _, sym := range symbols {
		if !r.store.Has(sym) {
			missing = append(missing, sym)
		}
	}

	if len(missing) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.bootstrapLimit)
		for _, sym := range missing {
			g.Go(func() error {
				if r.closed.Load() {
					return nil
				}
				if _, err := r.store.Bootstrap(gctx, sym); err != nil {
					r.logger.DebugContext(gctx, "bootstrap failed",
						slog.String("symbol", sym),
						slog.String("error", err.Error()),
					)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	if r.closed.Load() {
		return
	}
	r.publishTiles(ctx)
}

// HandleMessage processes one raw push-channel frame in arrival order. Tile
// updates are merged, refresh liveness, and are relayed to the trade syncer;
// heartbeats refresh liveness only; everything else is dropped silently.
func (r *Reconciler) HandleMessage(ctx context.Context, raw []byte) {
	if r.closed.Load() {
		return
	}

	msg, ok := domain.DecodeStreamMessage(raw)
	if !ok {
		return
	}

	r.monitor.Signal()
	if msg.Type != domain.MsgTile {
		return
	}

	merged := r.store.Merge(*msg.Tile)
	if r.syncer != nil {
		r.syncer.SyncTile(ctx, merged)
	}
	r.publishTiles(ctx)
}

// HandleStatus reflects feed connectivity changes into the monitor and
// pushes the new status to the bus.
func (r *Reconciler) HandleStatus(ctx context.Context, status domain.ConnStatus) {
	if r.closed.Load() {
		return
	}
	switch status {
	case domain.ConnOnline:
		r.monitor.MarkOnline()
	case domain.ConnOffline:
		r.monitor.MarkOffline()
	}
	r.PublishStatus(ctx, r.monitor.Status(), r.monitor.Age())
}

// OrderedTiles returns the current tiles in rendering order.
func (r *Reconciler) OrderedTiles() []domain.Tile {
	r.mu.RLock()
	watch := r.watch
	prev := r.order
	r.mu.RUnlock()

	sorted := tiles.SortTiles(r.store.Snapshot(watch))
	next := tiles.StableOrder(prev, tiles.SymbolOrder(sorted))

	r.mu.Lock()
	r.order = next
	r.mu.Unlock()

	// Read tiles back in the (possibly reused) order so callers see rows in
	// the exact positions the previous render used.
	out := make([]domain.Tile, 0, len(next))
	for _, sym := range next {
		if tile, ok := r.store.Get(sym); ok {
			out = append(out, tile)
		}
	}
	return out
}

// Order returns the current rendered symbol order. Successive calls return
// the same slice for as long as the set and order of symbols are unchanged.
func (r *Reconciler) Order() []string {
	r.OrderedTiles()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.order
}

// Close tears the reconciler down. In-flight bootstrap completions and
// late-arriving frames become no-ops.
func (r *Reconciler) Close() {
	r.closed.Store(true)
}

// PublishStatus pushes a status envelope to the bus.
func (r *Reconciler) PublishStatus(ctx context.Context, status domain.ConnStatus, ageSecs int) {
	if r.bus == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"type": "status",
		"data": map[string]any{
			"status":          status,
			"last_signal_age": ageSecs,
		},
	})
	if err != nil {
		return
	}
	if err := r.bus.Publish(ctx, ChannelStatus, payload); err != nil {
		r.logger.DebugContext(ctx, "status publish failed", slog.String("error", err.Error()))
	}
}

func (r *Reconciler) publishTiles(ctx context.Context) {
	if r.bus == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"type": "tiles",
		"data": r.OrderedTiles(),
	})
	if err != nil {
		return
	}
	if err := r.bus.Publish(ctx, ChannelTiles, payload); err != nil {
		r.logger.DebugContext(ctx, "tiles publish failed", slog.String("error", err.Error()))
	}
}
