package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n8kahl/copilotd/internal/domain"
	"github.com/n8kahl/copilotd/internal/ledger"
)

type fakeOutbound struct {
	err  error
	sent []domain.AlertPayload
}

func (f *fakeOutbound) PostAlert(_ context.Context, payload domain.AlertPayload) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, payload)
	return nil
}

type memAlertStore struct {
	records []domain.AlertRecord
	err     error
}

func (m *memAlertStore) Insert(_ context.Context, rec domain.AlertRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memAlertStore) List(_ context.Context, _ domain.ListOpts) ([]domain.AlertRecord, error) {
	return m.records, nil
}

func f64(v float64) *float64 { return &v }

func testContract() domain.Contract {
	return domain.Contract{
		Contract: "O:SPY240621C00450000",
		Ticker:   "SPY",
		Type:     "call",
		Bid:      f64(2.4),
		Ask:      f64(2.6),
		Mid:      f64(2.5),
	}
}

func enterPayload() domain.AlertPayload {
	return domain.AlertPayload{
		Action:     domain.ActionEnter,
		Price:      2.5,
		Grade:      "A",
		Confidence: 90,
		Level:      "ORB High",
		Stop:       1,
		Target:     3,
	}
}

func newHarness(outbound Outbound, alerts domain.AlertStore) (*Dispatcher, *ledger.Ledger) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lg := ledger.New(nil, 0, logger)
	return New(lg, outbound, alerts, nil, logger), lg
}

func TestDispatchAlert_RecordsAfterConfirmedPost(t *testing.T) {
	outbound := &fakeOutbound{}
	alerts := &memAlertStore{}
	d, lg := newHarness(outbound, alerts)
	ctx := context.Background()

	lg.LoadContract(ctx, "SPY", testContract())

	trade, err := d.DispatchAlert(ctx, "O:SPY240621C00450000", enterPayload())
	require.NoError(t, err)

	require.Len(t, outbound.sent, 1)
	assert.Equal(t, "SPY", outbound.sent[0].Symbol)
	assert.Equal(t, "O:SPY240621C00450000", outbound.sent[0].Contract)

	require.Len(t, trade.Timeline, 1)
	assert.Equal(t, domain.ActionEnter, trade.Timeline[0].Action)
	require.NotNil(t, trade.EntryPrice)
	assert.Equal(t, 2.5, *trade.EntryPrice)

	require.Len(t, alerts.records, 1)
	assert.Equal(t, "O:SPY240621C00450000", alerts.records[0].ContractID)
}

func TestDispatchAlert_FailedPostLeavesLedgerUntouched(t *testing.T) {
	outbound := &fakeOutbound{err: errors.New("engine unavailable")}
	d, lg := newHarness(outbound, nil)
	ctx := context.Background()

	lg.LoadContract(ctx, "SPY", testContract())

	_, err := d.DispatchAlert(ctx, "O:SPY240621C00450000", enterPayload())
	require.Error(t, err)

	trade, ok := lg.Get("O:SPY240621C00450000")
	require.True(t, ok)
	assert.Empty(t, trade.Timeline)
	assert.Nil(t, trade.EntryPrice)
	assert.Nil(t, trade.LastTemplate)
}

func TestDispatchAlert_InvalidAction(t *testing.T) {
	d, lg := newHarness(&fakeOutbound{}, nil)
	ctx := context.Background()
	lg.LoadContract(ctx, "SPY", testContract())

	payload := enterPayload()
	payload.Action = "yolo"
	_, err := d.DispatchAlert(ctx, "O:SPY240621C00450000", payload)
	assert.ErrorIs(t, err, domain.ErrInvalidAction)
}

func TestDispatchAlert_UnknownContract(t *testing.T) {
	d, _ := newHarness(&fakeOutbound{}, nil)

	_, err := d.DispatchAlert(context.Background(), "O:MISSING", enterPayload())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDispatchAlert_ExitClosesTrade(t *testing.T) {
	d, lg := newHarness(&fakeOutbound{}, nil)
	ctx := context.Background()
	lg.LoadContract(ctx, "SPY", testContract())

	payload := enterPayload()
	payload.Action = domain.ActionExit

	trade, err := d.DispatchAlert(ctx, "O:SPY240621C00450000", payload)
	require.NoError(t, err)

	assert.True(t, trade.IsClosed)
	require.NotNil(t, trade.ClosedAt)
	require.Len(t, trade.Timeline, 1)
}

func TestDispatchAlert_AuditFailureIsBestEffort(t *testing.T) {
	alerts := &memAlertStore{err: errors.New("db down")}
	d, lg := newHarness(&fakeOutbound{}, alerts)
	ctx := context.Background()
	lg.LoadContract(ctx, "SPY", testContract())

	trade, err := d.DispatchAlert(ctx, "O:SPY240621C00450000", enterPayload())
	require.NoError(t, err)
	assert.Len(t, trade.Timeline, 1)
}

func TestReAlert_RefreshesPriceFromLatestMid(t *testing.T) {
	outbound := &fakeOutbound{}
	d, lg := newHarness(outbound, nil)
	ctx := context.Background()
	lg.LoadContract(ctx, "SPY", testContract())

	_, err := d.DispatchAlert(ctx, "O:SPY240621C00450000", enterPayload())
	require.NoError(t, err)

	lg.SyncTile(ctx, domain.Tile{
		Symbol: "SPY",
		OptionsTop3: []domain.Contract{{
			Contract: "O:SPY240621C00450000",
			Mid:      f64(3.1),
		}},
	})

	trade, err := d.ReAlert(ctx, "O:SPY240621C00450000")
	require.NoError(t, err)

	require.Len(t, outbound.sent, 2)
	assert.Equal(t, 3.1, outbound.sent[1].Price)
	assert.Equal(t, domain.ActionEnter, outbound.sent[1].Action)
	assert.Len(t, trade.Timeline, 2)
}

func TestReAlert_WithoutTemplate(t *testing.T) {
	d, lg := newHarness(&fakeOutbound{}, nil)
	ctx := context.Background()
	lg.LoadContract(ctx, "SPY", testContract())

	_, err := d.ReAlert(ctx, "O:SPY240621C00450000")
	assert.ErrorIs(t, err, domain.ErrNoTemplate)
}
