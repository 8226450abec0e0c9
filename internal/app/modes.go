package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/n8kahl/copilotd/internal/dispatch"
	"github.com/n8kahl/copilotd/internal/domain"
	"github.com/n8kahl/copilotd/internal/feed"
	"github.com/n8kahl/copilotd/internal/ledger"
	"github.com/n8kahl/copilotd/internal/live"
	"github.com/n8kahl/copilotd/internal/server"
	"github.com/n8kahl/copilotd/internal/server/handler"
	"github.com/n8kahl/copilotd/internal/server/ws"
	"github.com/n8kahl/copilotd/internal/tiles"
)

// core holds the long-lived components shared by both modes.
type core struct {
	store      *tiles.Store
	monitor    *live.Monitor
	ledger     *ledger.Ledger
	reconciler *live.Reconciler
	dispatcher *dispatch.Dispatcher
	feed       *feed.StreamFeed
}

// buildCore assembles the reconciliation pipeline: engine client feeds the
// tile store, the stream feed drives the reconciler, the ledger tracks
// trades, and every mutation is mirrored onto the signal bus.
func (a *App) buildCore(ctx context.Context, deps *Dependencies) *core {
	store := tiles.NewStore(deps.Engine)
	monitor := live.NewMonitor()

	lg := ledger.New(deps.LedgerStore, a.cfg.Ledger.MaxTrades, a.logger)
	if err := lg.Restore(ctx); err != nil {
		a.logger.WarnContext(ctx, "ledger restore failed, starting empty",
			slog.String("error", err.Error()),
		)
	}

	reconciler := live.NewReconciler(store, deps.Engine, monitor, lg, deps.SignalBus, live.Config{
		WatchlistRefresh: a.cfg.Engine.WatchlistRefresh.Duration,
		BootstrapLimit:   a.cfg.Engine.BootstrapLimit,
	}, a.logger)

	// Each liveness tick refreshes the status channel so dashboards can show
	// a counting age even when the stream is quiet.
	monitor.SetOnTick(func(status domain.ConnStatus, ageSecs int) {
		reconciler.PublishStatus(ctx, status, ageSecs)
	})

	// Every ledger mutation is pushed to the trades channel.
	lg.SetOnChange(func(trades []domain.ActiveTrade) {
		payload, err := json.Marshal(map[string]any{
			"type": "trades",
			"data": trades,
		})
		if err != nil {
			return
		}
		if err := deps.SignalBus.Publish(ctx, live.ChannelTrades, payload); err != nil {
			a.logger.DebugContext(ctx, "trades publish failed", slog.String("error", err.Error()))
		}
	})

	dispatcher := dispatch.New(lg, deps.Engine, deps.AlertStore, deps.Notifier, a.logger)

	streamFeed := feed.NewStreamFeed(
		a.cfg.Engine.WsURL,
		reconciler.HandleMessage,
		reconciler.HandleStatus,
		a.logger,
	)

	return &core{
		store:      store,
		monitor:    monitor,
		ledger:     lg,
		reconciler: reconciler,
		dispatcher: dispatcher,
		feed:       streamFeed,
	}
}

// runCore starts the monitor tick, watchlist refresh, and stream feed.
func (a *App) runCore(ctx context.Context, g *errgroup.Group, c *core) {
	g.Go(func() error {
		return c.monitor.Run(ctx)
	})
	g.Go(func() error {
		return c.reconciler.Run(ctx)
	})
	g.Go(func() error {
		defer c.feed.Close()
		return c.feed.Run(ctx)
	})
}

// runArchiver periodically snapshots tiles and trades to blob storage.
func (a *App) runArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies, c *core) {
	if deps.Archiver == nil {
		return
	}
	interval := a.cfg.S3.SnapshotInterval.Duration

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				at := time.Now().UTC()
				if n, err := deps.Archiver.ArchiveTiles(ctx, at, c.reconciler.OrderedTiles()); err != nil {
					a.logger.WarnContext(ctx, "tile archive failed", slog.String("error", err.Error()))
				} else if n > 0 {
					a.logger.InfoContext(ctx, "tiles archived", slog.Int64("count", n))
				}
				if n, err := deps.Archiver.ArchiveTrades(ctx, at, c.ledger.Trades()); err != nil {
					a.logger.WarnContext(ctx, "trade archive failed", slog.String("error", err.Error()))
				} else if n > 0 {
					a.logger.InfoContext(ctx, "trades archived", slog.Int64("count", n))
				}
			}
		}
	})
}

// ServeMode runs the full daemon: reconciliation pipeline, websocket hub,
// dashboard HTTP API, and the optional archiver.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	c := a.buildCore(ctx, deps)
	defer c.reconciler.Close()

	a.runCore(ctx, g, c)
	a.runArchiver(ctx, g, deps, c)

	hub := ws.NewHub(deps.SignalBus, a.logger)
	hub.SetSnapshot(func() [][]byte {
		return snapshotFrames(c)
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		startedAt := time.Now().UTC()
		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		}, server.Handlers{
			Health: handler.NewHealthHandler(),
			Status: handler.NewStatusHandler(c.monitor, a.cfg.Mode, startedAt),
			Tiles:  handler.NewTileHandler(c.reconciler, c.store),
			Trades: handler.NewTradeHandler(c.ledger, c.dispatcher),
			Alerts: handler.NewAlertHandler(deps.AlertStore),
		}, hub, a.logger)

		g.Go(func() error {
			return srv.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// MonitorMode runs the reconciliation pipeline and archiver without the
// dashboard API, useful for headless recording sessions.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)
	c := a.buildCore(ctx, deps)
	defer c.reconciler.Close()

	a.runCore(ctx, g, c)
	a.runArchiver(ctx, g, deps, c)

	return g.Wait()
}

// snapshotFrames renders the current tiles, status, and trades as the hello
// frames a freshly connected websocket client receives.
func snapshotFrames(c *core) [][]byte {
	var frames [][]byte

	if data, err := json.Marshal(map[string]any{
		"type": "tiles",
		"data": c.reconciler.OrderedTiles(),
	}); err == nil {
		frames = append(frames, data)
	}

	if data, err := json.Marshal(map[string]any{
		"type": "status",
		"data": map[string]any{
			"status":          c.monitor.Status(),
			"last_signal_age": c.monitor.Age(),
		},
	}); err == nil {
		frames = append(frames, data)
	}

	if data, err := json.Marshal(map[string]any{
		"type": "trades",
		"data": c.ledger.Trades(),
	}); err == nil {
		frames = append(frames, data)
	}

	return frames
}
