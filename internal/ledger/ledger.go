// Package ledger implements lifecycle and PnL bookkeeping for staged trades.
// The ledger owns its ActiveTrade records outright; it reads contract data
// from tiles but never mutates a tile.
package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/n8kahl/copilotd/internal/domain"
)

// DefaultMaxTrades caps the ledger; loading beyond the cap evicts the oldest
// trade by insertion position.
const DefaultMaxTrades = 12

// Ledger is the active-trade collection, keyed by contract identifier and
// ordered newest-first. Every mutation is persisted best-effort through the
// configured store; a write failure is logged and dropped so in-memory state
// stays authoritative for the session.
type Ledger struct {
	store     domain.LedgerStore
	logger    *slog.Logger
	maxTrades int
	newID     func() string
	now       func() time.Time
	onChange  func(trades []domain.ActiveTrade)

	mu     sync.Mutex
	trades []domain.ActiveTrade
}

// New creates a Ledger backed by store (may be nil for a purely in-memory
// session).
func New(store domain.LedgerStore, maxTrades int, logger *slog.Logger) *Ledger {
	if maxTrades <= 0 {
		maxTrades = DefaultMaxTrades
	}
	return &Ledger{
		store:     store,
		logger:    logger.With(slog.String("component", "ledger")),
		maxTrades: maxTrades,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// SetOnChange registers a callback invoked with a copy of the trade list
// after every mutation. Must be called before the ledger is shared.
func (l *Ledger) SetOnChange(fn func(trades []domain.ActiveTrade)) {
	l.onChange = fn
}

// Restore loads the persisted trade list from the store. Called once on
// startup; an empty or missing entry leaves the ledger empty.
func (l *Ledger) Restore(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	trades, err := l.store.Load(ctx)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.trades = trades
	l.mu.Unlock()
	l.logger.InfoContext(ctx, "ledger restored", slog.Int("trades", len(trades)))
	return nil
}

// Trades returns a copy of the current trade list, newest first.
func (l *Ledger) Trades() []domain.ActiveTrade {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.copyTrades()
}

// Get returns the trade for contractID, if present.
func (l *Ledger) Get(contractID string) (domain.ActiveTrade, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.trades {
		if l.trades[i].ContractID == contractID {
			return l.trades[i], true
		}
	}
	return domain.ActiveTrade{}, false
}

// LoadContract upserts a trade for the contract's identifier. An existing
// trade gets its contract snapshot refreshed in place, preserving timeline,
// entry price, and PnL. A new trade is prepended; the ledger is capped and
// the oldest trades beyond the cap are evicted.
func (l *Ledger) LoadContract(ctx context.Context, symbol string, contract domain.Contract) domain.ActiveTrade {
	l.mu.Lock()

	for i := range l.trades {
		if l.trades[i].ContractID == contract.Contract {
			l.trades[i].Contract = contract
			if l.trades[i].Symbol == "" {
				l.trades[i].Symbol = symbol
			}
			out := l.trades[i]
			l.mu.Unlock()
			l.persist(ctx)
			return out
		}
	}

	trade := domain.ActiveTrade{
		ContractID: contract.Contract,
		Symbol:     symbol,
		Contract:   contract,
		LatestMid:  contract.Mid,
		Timeline:   []domain.ActiveTradeAlert{},
	}
	l.trades = append([]domain.ActiveTrade{trade}, l.trades...)
	if len(l.trades) > l.maxTrades {
		l.trades = l.trades[:l.maxTrades]
	}
	l.mu.Unlock()
	l.persist(ctx)
	return trade
}

// RecordAlert appends a confirmed dispatch to the trade's timeline. An enter
// action carrying a price sets (or overwrites) the entry price. PnL is
// recomputed immediately; when either operand is missing the previous value
// is preserved, never zeroed. The payload replaces lastTemplate.
func (l *Ledger) RecordAlert(ctx context.Context, contractID string, payload domain.AlertPayload) (domain.ActiveTrade, error) {
	l.mu.Lock()

	idx := l.indexOf(contractID)
	if idx < 0 {
		l.mu.Unlock()
		return domain.ActiveTrade{}, domain.ErrNotFound
	}

	trade := &l.trades[idx]
	trade.Timeline = append(trade.Timeline, domain.ActiveTradeAlert{
		ID:         l.newID(),
		Action:     payload.Action,
		Note:       payload.Note,
		Price:      payload.Price,
		Grade:      payload.Grade,
		Confidence: payload.Confidence,
		Level:      payload.Level,
		Stop:       payload.Stop,
		Target:     payload.Target,
		CreatedAt:  l.now(),
	})

	if payload.Action == domain.ActionEnter && payload.Price > 0 {
		price := payload.Price
		trade.EntryPrice = &price
	}
	recomputePnl(trade)

	p := payload
	trade.LastTemplate = &p

	out := *trade
	l.mu.Unlock()
	l.persist(ctx)
	return out, nil
}

// Close marks the trade closed without touching its timeline or contract
// data; closed trades stay visible for audit.
func (l *Ledger) Close(ctx context.Context, contractID string) (domain.ActiveTrade, error) {
	l.mu.Lock()

	idx := l.indexOf(contractID)
	if idx < 0 {
		l.mu.Unlock()
		return domain.ActiveTrade{}, domain.ErrNotFound
	}

	closedAt := l.now()
	l.trades[idx].IsClosed = true
	l.trades[idx].ClosedAt = &closedAt

	out := l.trades[idx]
	l.mu.Unlock()
	l.persist(ctx)
	return out, nil
}

// Remove hard-deletes one trade. Irreversible.
func (l *Ledger) Remove(ctx context.Context, contractID string) error {
	l.mu.Lock()

	idx := l.indexOf(contractID)
	if idx < 0 {
		l.mu.Unlock()
		return domain.ErrNotFound
	}
	l.trades = append(l.trades[:idx], l.trades[idx+1:]...)
	l.mu.Unlock()
	l.persist(ctx)
	return nil
}

// Clear hard-deletes all trades. Irreversible.
func (l *Ledger) Clear(ctx context.Context) {
	l.mu.Lock()
	l.trades = nil
	l.mu.Unlock()
	l.persist(ctx)
}

// SyncTile refreshes contract data and live mid prices for every trade on
// the tile's symbol. A tile without options data is a no-op for all trades;
// trades whose contract is not in the tile's top ranks are left untouched.
func (l *Ledger) SyncTile(ctx context.Context, tile domain.Tile) {
	if len(tile.OptionsTop3) == 0 {
		return
	}

	l.mu.Lock()
	changed := false
	for i := range l.trades {
		trade := &l.trades[i]
		if trade.Symbol != tile.Symbol {
			continue
		}
		match := findContract(tile.OptionsTop3, trade.ContractID)
		if match == nil {
			continue
		}

		trade.Contract = *match
		if mid := pickMid(match); mid != nil {
			trade.LatestMid = mid
		}
		recomputePnl(trade)
		changed = true
	}
	l.mu.Unlock()

	if changed {
		l.persist(ctx)
	}
}

// ReAlertTemplate returns the most recent alert payload for the trade, the
// basis for dispatching the same action again with fresh pricing.
func (l *Ledger) ReAlertTemplate(contractID string) (domain.AlertPayload, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(contractID)
	if idx < 0 {
		return domain.AlertPayload{}, domain.ErrNotFound
	}
	if l.trades[idx].LastTemplate == nil {
		return domain.AlertPayload{}, domain.ErrNoTemplate
	}
	return *l.trades[idx].LastTemplate, nil
}

// indexOf returns the position of contractID or -1. Caller must hold l.mu.
func (l *Ledger) indexOf(contractID string) int {
	for i := range l.trades {
		if l.trades[i].ContractID == contractID {
			return i
		}
	}
	return -1
}

// copyTrades returns a defensive copy. Caller must hold l.mu.
func (l *Ledger) copyTrades() []domain.ActiveTrade {
	out := make([]domain.ActiveTrade, len(l.trades))
	copy(out, l.trades)
	return out
}

// persist writes the trade list to the store best-effort and fires the
// change callback. Persistence failures never propagate to the mutation
// that triggered them.
func (l *Ledger) persist(ctx context.Context) {
	l.mu.Lock()
	snapshot := l.copyTrades()
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.Save(ctx, snapshot); err != nil {
			l.logger.WarnContext(ctx, "ledger persist failed",
				slog.String("error", err.Error()),
			)
		}
	}
	if l.onChange != nil {
		l.onChange(snapshot)
	}
}

// recomputePnl derives PnlPct from entry price and latest mid. With either
// operand missing (or a zero entry) the previous value is kept.
func recomputePnl(trade *domain.ActiveTrade) {
	if trade.EntryPrice == nil || *trade.EntryPrice == 0 || trade.LatestMid == nil {
		return
	}
	pnl := (*trade.LatestMid - *trade.EntryPrice) / *trade.EntryPrice * 100
	trade.PnlPct = &pnl
}

// pickMid selects the freshest price from a contract snapshot: mid, then
// bid, then ask. Returns nil when the snapshot carries no price at all.
func pickMid(c *domain.Contract) *float64 {
	switch {
	case c.Mid != nil:
		return c.Mid
	case c.Bid != nil:
		return c.Bid
	case c.Ask != nil:
		return c.Ask
	}
	return nil
}

// findContract locates a contract by identifier in a tile's ranked summary.
func findContract(contracts []domain.Contract, contractID string) *domain.Contract {
	for i := range contracts {
		if contracts[i].Contract == contractID {
			return &contracts[i]
		}
	}
	return nil
}
