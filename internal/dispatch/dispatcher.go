// Package dispatch coordinates alert delivery: validate the action, post it
// to the analytics engine, and only then record the confirmed dispatch in the
// ledger, audit log, and notifier channels.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/n8kahl/copilotd/internal/domain"
	"github.com/n8kahl/copilotd/internal/ledger"
	"github.com/n8kahl/copilotd/internal/notify"
)

// Outbound posts an alert payload to the analytics engine.
type Outbound interface {
	PostAlert(ctx context.Context, payload domain.AlertPayload) error
}

// Dispatcher is the single path for trade lifecycle actions. The ledger is
// mutated only after the engine has confirmed delivery; a failed post leaves
// the trade exactly as it was.
type Dispatcher struct {
	ledger   *ledger.Ledger
	outbound Outbound
	alerts   domain.AlertStore
	notifier *notify.Notifier
	logger   *slog.Logger
}

// New creates a Dispatcher. The alert store and notifier are optional; when
// nil the corresponding side effects are skipped.
func New(lg *ledger.Ledger, outbound Outbound, alerts domain.AlertStore, notifier *notify.Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		ledger:   lg,
		outbound: outbound,
		alerts:   alerts,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "dispatch")),
	}
}

// DispatchAlert validates and delivers one lifecycle action for the trade
// identified by contractID. An exit action also closes the trade after the
// dispatch is recorded. Returns the updated trade.
func (d *Dispatcher) DispatchAlert(ctx context.Context, contractID string, payload domain.AlertPayload) (domain.ActiveTrade, error) {
	if !domain.ValidAction(payload.Action) {
		return domain.ActiveTrade{}, fmt.Errorf("dispatch: action %q: %w", payload.Action, domain.ErrInvalidAction)
	}

	trade, ok := d.ledger.Get(contractID)
	if !ok {
		return domain.ActiveTrade{}, fmt.Errorf("dispatch: contract %s: %w", contractID, domain.ErrNotFound)
	}
	if payload.Symbol == "" {
		payload.Symbol = trade.Symbol
	}
	if payload.Contract == "" {
		payload.Contract = trade.ContractID
	}

	if err := d.outbound.PostAlert(ctx, payload); err != nil {
		return domain.ActiveTrade{}, fmt.Errorf("dispatch: post alert: %w", err)
	}

	updated, err := d.ledger.RecordAlert(ctx, contractID, payload)
	if err != nil {
		return domain.ActiveTrade{}, fmt.Errorf("dispatch: record alert: %w", err)
	}
	if payload.Action == domain.ActionExit {
		updated, err = d.ledger.Close(ctx, contractID)
		if err != nil {
			return domain.ActiveTrade{}, fmt.Errorf("dispatch: close after exit: %w", err)
		}
	}

	d.audit(ctx, contractID, payload)
	d.notify(ctx, payload)

	d.logger.InfoContext(ctx, "alert dispatched",
		slog.String("action", string(payload.Action)),
		slog.String("symbol", payload.Symbol),
		slog.String("contract", contractID),
	)
	return updated, nil
}

// ReAlert re-dispatches the trade's most recent alert with the price
// refreshed from the latest mid. The action, levels, and note are reused
// verbatim from the stored template.
func (d *Dispatcher) ReAlert(ctx context.Context, contractID string) (domain.ActiveTrade, error) {
	payload, err := d.ledger.ReAlertTemplate(contractID)
	if err != nil {
		return domain.ActiveTrade{}, fmt.Errorf("dispatch: re-alert template: %w", err)
	}
	if trade, ok := d.ledger.Get(contractID); ok && trade.LatestMid != nil {
		payload.Price = *trade.LatestMid
	}
	return d.DispatchAlert(ctx, contractID, payload)
}

// audit appends the confirmed dispatch to the durable alert log, best effort.
func (d *Dispatcher) audit(ctx context.Context, contractID string, payload domain.AlertPayload) {
	if d.alerts == nil {
		return
	}
	rec := domain.AlertRecord{
		Action:     payload.Action,
		Symbol:     payload.Symbol,
		ContractID: contractID,
		Payload:    payload,
	}
	if err := d.alerts.Insert(ctx, rec); err != nil {
		d.logger.WarnContext(ctx, "alert audit insert failed",
			slog.String("contract", contractID),
			slog.String("error", err.Error()),
		)
	}
}

// notify fans the alert out to the configured notification channels, best
// effort.
func (d *Dispatcher) notify(ctx context.Context, payload domain.AlertPayload) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.NotifyAction(ctx, payload); err != nil {
		d.logger.WarnContext(ctx, "alert notification failed",
			slog.String("error", err.Error()),
		)
	}
}
