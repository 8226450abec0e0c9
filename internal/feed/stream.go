// Package feed maintains the persistent subscription to the engine's push
// stream and relays frames to the reconciler.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/n8kahl/copilotd/internal/domain"
	"github.com/n8kahl/copilotd/internal/platform/engine"
)

const (
	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// MessageHandler is called for each raw push frame, in arrival order.
type MessageHandler func(ctx context.Context, raw []byte)

// StatusHandler is called on every connectivity transition.
type StatusHandler func(ctx context.Context, status domain.ConnStatus)

// StreamFeed connects to the push stream and keeps the connection alive,
// reconnecting with exponential backoff. Each attempt uses a fresh client;
// the consumer only ever sees frames from the live connection.
type StreamFeed struct {
	wsURL     string
	onMessage MessageHandler
	onStatus  StatusHandler
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

// NewStreamFeed creates a feed for the given stream URL.
func NewStreamFeed(wsURL string, onMessage MessageHandler, onStatus StatusHandler, logger *slog.Logger) *StreamFeed {
	return &StreamFeed{
		wsURL:     wsURL,
		onMessage: onMessage,
		onStatus:  onStatus,
		logger:    logger.With(slog.String("component", "stream_feed")),
		done:      make(chan struct{}),
	}
}

// Run connects and blocks until ctx is cancelled or the feed is closed,
// reconnecting with backoff whenever the connection drops.
func (f *StreamFeed) Run(ctx context.Context) error {
	delay := reconnectDelay

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		client := engine.NewWSClient(f.wsURL,
			func(raw []byte) {
				if f.onMessage != nil {
					f.onMessage(ctx, raw)
				}
			},
			func(status domain.ConnStatus) {
				if f.onStatus != nil {
					f.onStatus(ctx, status)
				}
			},
		)

		connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err := client.Connect(connCtx)
		cancel()

		if err == nil {
			delay = reconnectDelay
			select {
			case <-ctx.Done():
				_ = client.Close()
				return ctx.Err()
			case <-f.done:
				_ = client.Close()
				return nil
			case <-client.Done():
				// Dropped; fall through to reconnect.
			}
		} else {
			if f.onStatus != nil {
				f.onStatus(ctx, domain.ConnOffline)
			}
			f.logger.Warn("stream connect failed, retrying",
				slog.String("error", err.Error()),
				slog.Duration("delay", delay),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// Close stops the feed and tears down any live connection.
func (f *StreamFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
