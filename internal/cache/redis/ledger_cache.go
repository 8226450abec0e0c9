package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/n8kahl/copilotd/internal/domain"
)

// ledgerSchema is the envelope version for the persisted trade list. Bump it
// when the ActiveTrade shape changes incompatibly; unknown versions load as
// an empty ledger rather than failing startup.
const ledgerSchema = 1

// ledgerEnvelope wraps the serialized trade list with a schema version and a
// write timestamp for debugging stale sessions.
type ledgerEnvelope struct {
	Schema  int                  `json:"schema"`
	SavedAt time.Time            `json:"savedAt"`
	Trades  []domain.ActiveTrade `json:"trades"`
}

// LedgerCache implements domain.LedgerStore on a single Redis key holding the
// whole trade list as one JSON document. The list is small (capped) so a
// full rewrite per mutation is cheaper than per-trade keys.
type LedgerCache struct {
	rdb    *redis.Client
	key    string
	logger *slog.Logger
}

// NewLedgerCache creates a LedgerCache writing to key. An empty key falls
// back to "copilot:active_trades".
func NewLedgerCache(c *Client, key string, logger *slog.Logger) *LedgerCache {
	if key == "" {
		key = "copilot:active_trades"
	}
	return &LedgerCache{
		rdb:    c.Underlying(),
		key:    key,
		logger: logger.With(slog.String("component", "ledger_cache")),
	}
}

// Save overwrites the persisted trade list.
func (lc *LedgerCache) Save(ctx context.Context, trades []domain.ActiveTrade) error {
	env := ledgerEnvelope{
		Schema:  ledgerSchema,
		SavedAt: time.Now().UTC(),
		Trades:  trades,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("redis: marshal ledger: %w", err)
	}
	if err := lc.rdb.Set(ctx, lc.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis: save ledger: %w", err)
	}
	return nil
}

// Load restores the persisted trade list. A missing key, corrupt document,
// or unknown schema version yields an empty list so the session can start
// cleanly; only transport errors propagate.
func (lc *LedgerCache) Load(ctx context.Context) ([]domain.ActiveTrade, error) {
	data, err := lc.rdb.Get(ctx, lc.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: load ledger: %w", err)
	}

	var env ledgerEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		lc.logger.WarnContext(ctx, "discarding corrupt ledger entry",
			slog.String("key", lc.key),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	if env.Schema != ledgerSchema {
		lc.logger.WarnContext(ctx, "discarding ledger entry with unknown schema",
			slog.String("key", lc.key),
			slog.Int("schema", env.Schema),
		)
		return nil, nil
	}
	return env.Trades, nil
}

var _ domain.LedgerStore = (*LedgerCache)(nil)
