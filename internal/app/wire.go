package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/n8kahl/copilotd/internal/blob/s3"
	"github.com/n8kahl/copilotd/internal/cache/redis"
	"github.com/n8kahl/copilotd/internal/config"
	"github.com/n8kahl/copilotd/internal/domain"
	"github.com/n8kahl/copilotd/internal/notify"
	"github.com/n8kahl/copilotd/internal/platform/engine"
	"github.com/n8kahl/copilotd/internal/store/postgres"
)

// Dependencies bundles the infrastructure the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
// AlertStore and Archiver are nil when their backing service is disabled.
type Dependencies struct {
	Engine      *engine.Client
	LedgerStore domain.LedgerStore
	AlertStore  domain.AlertStore
	SignalBus   domain.SignalBus
	Archiver    domain.Archiver
	Notifier    *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function to be
// called on shutdown.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Engine: engine.NewClient(cfg.Engine.BaseURL, cfg.Engine.ApiKey),
	}

	// --- Redis: ledger persistence and the hub's signal bus ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.LedgerStore = redis.NewLedgerCache(redisClient, cfg.Ledger.StorageKey, logger)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- Postgres: durable alert history (optional) ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.AlertStore = postgres.NewAlertStore(pgClient.Pool())
	}

	// --- S3: session archives (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client))
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Actions, logger)
	}

	return deps, cleanup, nil
}
