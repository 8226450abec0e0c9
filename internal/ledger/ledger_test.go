package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n8kahl/copilotd/internal/domain"
)

func f64(v float64) *float64 { return &v }

func testContract() domain.Contract {
	return domain.Contract{
		Contract:      "O:SPY240621C00450000",
		Ticker:        "SPY",
		Expiry:        "2024-06-21",
		Strike:        f64(450),
		Type:          "call",
		Bid:           f64(2.4),
		Ask:           f64(2.6),
		Mid:           f64(2.5),
		Delta:         f64(0.45),
		OpenInterest:  f64(1000),
		SpreadQuality: "tight",
	}
}

func enterPayload(price float64) domain.AlertPayload {
	return domain.AlertPayload{
		Action:     domain.ActionEnter,
		Symbol:     "SPY",
		Contract:   "O:SPY240621C00450000",
		Price:      price,
		Grade:      "A",
		Confidence: 90,
		Level:      "ORB High",
		Stop:       1,
		Target:     3,
	}
}

func newTestLedger() *Ledger {
	return New(nil, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPnlFromLiveMid(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	contract := testContract()

	l.LoadContract(ctx, "SPY", contract)
	_, err := l.RecordAlert(ctx, contract.Contract, enterPayload(2.0))
	require.NoError(t, err)

	l.SyncTile(ctx, domain.Tile{
		Symbol:      "SPY",
		OptionsTop3: []domain.Contract{contract},
	})

	trade, ok := l.Get(contract.Contract)
	require.True(t, ok)
	require.NotNil(t, trade.PnlPct)
	assert.InDelta(t, 25.0, *trade.PnlPct, 0.001)
}

func TestSyncTile_MidFallbackOrder(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	contract := testContract()
	l.LoadContract(ctx, "SPY", contract)

	noMid := contract
	noMid.Mid = nil
	noMid.Bid = f64(2.1)
	l.SyncTile(ctx, domain.Tile{Symbol: "SPY", OptionsTop3: []domain.Contract{noMid}})
	trade, _ := l.Get(contract.Contract)
	require.NotNil(t, trade.LatestMid)
	assert.Equal(t, 2.1, *trade.LatestMid, "bid when mid absent")

	askOnly := contract
	askOnly.Mid = nil
	askOnly.Bid = nil
	askOnly.Ask = f64(2.8)
	l.SyncTile(ctx, domain.Tile{Symbol: "SPY", OptionsTop3: []domain.Contract{askOnly}})
	trade, _ = l.Get(contract.Contract)
	assert.Equal(t, 2.8, *trade.LatestMid, "ask when mid and bid absent")

	noPrices := contract
	noPrices.Mid, noPrices.Bid, noPrices.Ask = nil, nil, nil
	l.SyncTile(ctx, domain.Tile{Symbol: "SPY", OptionsTop3: []domain.Contract{noPrices}})
	trade, _ = l.Get(contract.Contract)
	assert.Equal(t, 2.8, *trade.LatestMid, "previous mid when snapshot has no price")
}

func TestSyncTile_PnlPreservedWithoutEntry(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	contract := testContract()
	l.LoadContract(ctx, "SPY", contract)

	l.SyncTile(ctx, domain.Tile{Symbol: "SPY", OptionsTop3: []domain.Contract{contract}})

	trade, _ := l.Get(contract.Contract)
	assert.Nil(t, trade.PnlPct, "no entry price: pnl must stay unset, not zero")
}

func TestSyncTile_NoOptionsIsNoOp(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	contract := testContract()
	l.LoadContract(ctx, "SPY", contract)

	before, _ := l.Get(contract.Contract)
	l.SyncTile(ctx, domain.Tile{Symbol: "SPY"})
	after, _ := l.Get(contract.Contract)

	assert.Equal(t, before, after)
}

func TestSyncTile_UnmatchedContractUntouched(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	contract := testContract()
	l.LoadContract(ctx, "SPY", contract)

	other := contract
	other.Contract = "O:SPY240621C00455000"
	other.Mid = f64(9.9)
	l.SyncTile(ctx, domain.Tile{Symbol: "SPY", OptionsTop3: []domain.Contract{other}})

	trade, _ := l.Get(contract.Contract)
	assert.Equal(t, 2.5, *trade.LatestMid)
}

func TestLoadContract_UpsertPreservesState(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	contract := testContract()

	l.LoadContract(ctx, "SPY", contract)
	_, err := l.RecordAlert(ctx, contract.Contract, enterPayload(2.0))
	require.NoError(t, err)

	refreshed := contract
	refreshed.Mid = f64(2.7)
	l.LoadContract(ctx, "SPY", refreshed)

	trades := l.Trades()
	require.Len(t, trades, 1, "upsert, not duplicate")
	assert.Equal(t, 2.7, *trades[0].Contract.Mid)
	assert.Len(t, trades[0].Timeline, 1, "timeline preserved")
	require.NotNil(t, trades[0].EntryPrice)
	assert.Equal(t, 2.0, *trades[0].EntryPrice)
}

func TestLoadContract_CapEvictsOldest(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	for i := 0; i < 13; i++ {
		c := testContract()
		c.Contract = fmt.Sprintf("O:SPY2406%02dC", i)
		l.LoadContract(ctx, "SPY", c)
	}

	trades := l.Trades()
	require.Len(t, trades, 12)
	assert.Equal(t, "O:SPY240612C", trades[0].ContractID, "newest first")
	_, ok := l.Get("O:SPY240600C")
	assert.False(t, ok, "oldest evicted")
}

func TestRecordAlert_EnterSetsEntryAndTemplate(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	contract := testContract()
	l.LoadContract(ctx, "SPY", contract)

	trade, err := l.RecordAlert(ctx, contract.Contract, enterPayload(2.0))
	require.NoError(t, err)

	require.Len(t, trade.Timeline, 1)
	assert.NotEmpty(t, trade.Timeline[0].ID)
	assert.Equal(t, domain.ActionEnter, trade.Timeline[0].Action)
	require.NotNil(t, trade.EntryPrice)
	assert.Equal(t, 2.0, *trade.EntryPrice)
	require.NotNil(t, trade.LastTemplate)
	assert.Equal(t, enterPayload(2.0), *trade.LastTemplate)

	// Entry + loaded mid gives an immediate PnL.
	require.NotNil(t, trade.PnlPct)
	assert.InDelta(t, 25.0, *trade.PnlPct, 0.001)
}

func TestRecordAlert_NonEnterKeepsEntry(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	contract := testContract()
	l.LoadContract(ctx, "SPY", contract)
	_, err := l.RecordAlert(ctx, contract.Contract, enterPayload(2.0))
	require.NoError(t, err)

	trim := enterPayload(2.6)
	trim.Action = domain.ActionTrim
	trade, err := l.RecordAlert(ctx, contract.Contract, trim)
	require.NoError(t, err)

	assert.Equal(t, 2.0, *trade.EntryPrice, "trim must not move the entry")
	assert.Len(t, trade.Timeline, 2)
	assert.Equal(t, domain.ActionTrim, trade.LastTemplate.Action)
}

func TestRecordAlert_UnknownContract(t *testing.T) {
	l := newTestLedger()
	_, err := l.RecordAlert(context.Background(), "O:NOPE", enterPayload(1))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClose_NonDestructive(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	contract := testContract()
	l.LoadContract(ctx, "SPY", contract)
	_, err := l.RecordAlert(ctx, contract.Contract, enterPayload(2.0))
	require.NoError(t, err)

	closed, err := l.Close(ctx, contract.Contract)
	require.NoError(t, err)

	assert.True(t, closed.IsClosed)
	assert.NotNil(t, closed.ClosedAt)
	assert.Len(t, closed.Timeline, 1, "timeline intact")
	assert.Equal(t, contract.Contract, closed.Contract.Contract, "contract intact")
	assert.Len(t, l.Trades(), 1, "closed trades remain listed")
}

func TestRemoveAndClear(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	a := testContract()
	b := testContract()
	b.Contract = "O:SPY240621C00455000"
	l.LoadContract(ctx, "SPY", a)
	l.LoadContract(ctx, "SPY", b)

	require.NoError(t, l.Remove(ctx, a.Contract))
	assert.Len(t, l.Trades(), 1)
	assert.ErrorIs(t, l.Remove(ctx, a.Contract), domain.ErrNotFound)

	l.Clear(ctx)
	assert.Empty(t, l.Trades())
}

func TestReAlertTemplate(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()
	contract := testContract()
	l.LoadContract(ctx, "SPY", contract)

	_, err := l.ReAlertTemplate(contract.Contract)
	assert.ErrorIs(t, err, domain.ErrNoTemplate)

	_, err = l.RecordAlert(ctx, contract.Contract, enterPayload(2.0))
	require.NoError(t, err)

	tpl, err := l.ReAlertTemplate(contract.Contract)
	require.NoError(t, err)
	assert.Equal(t, enterPayload(2.0), tpl)

	_, err = l.ReAlertTemplate("O:NOPE")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

type failStore struct{ saves int }

func (s *failStore) Save(context.Context, []domain.ActiveTrade) error {
	s.saves++
	return errors.New("redis down")
}

func (s *failStore) Load(context.Context) ([]domain.ActiveTrade, error) { return nil, nil }

func TestPersistFailureIsSwallowed(t *testing.T) {
	store := &failStore{}
	l := New(store, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	l.LoadContract(ctx, "SPY", testContract())

	assert.Equal(t, 1, store.saves)
	assert.Len(t, l.Trades(), 1, "in-memory state stays authoritative")
}

type memStore struct{ saved []domain.ActiveTrade }

func (s *memStore) Save(_ context.Context, trades []domain.ActiveTrade) error {
	s.saved = trades
	return nil
}

func (s *memStore) Load(context.Context) ([]domain.ActiveTrade, error) { return s.saved, nil }

func TestRestore(t *testing.T) {
	store := &memStore{}
	ctx := context.Background()

	first := New(store, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	first.LoadContract(ctx, "SPY", testContract())

	second := New(store, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, second.Restore(ctx))
	require.Len(t, second.Trades(), 1)
	assert.Equal(t, testContract().Contract, second.Trades()[0].ContractID)
}
