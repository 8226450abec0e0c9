// Package notify fans confirmed trade actions out to chat channels. Senders
// are best effort and filterable by action kind, so an operator can route
// entries to one channel and ignore trims entirely.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/n8kahl/copilotd/internal/domain"
)

// Sender is one outbound notification channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender.
	Name() string
}

// Notifier dispatches to all registered senders, filtered by action kind.
type Notifier struct {
	senders []Sender
	actions map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier for the given senders. Only actions listed
// in actions are forwarded; an empty list allows everything.
func NewNotifier(senders []Sender, actions []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(actions))
	for _, a := range actions {
		allowed[strings.TrimSpace(a)] = true
	}
	return &Notifier{
		senders: senders,
		actions: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// NotifyAction formats and delivers a confirmed alert to all senders. Sender
// failures are logged and collected; one failing channel never blocks the
// others.
func (n *Notifier) NotifyAction(ctx context.Context, payload domain.AlertPayload) error {
	if len(n.senders) == 0 {
		return nil
	}
	if len(n.actions) > 0 && !n.actions[string(payload.Action)] {
		n.logger.DebugContext(ctx, "action filtered out",
			slog.String("action", string(payload.Action)),
		)
		return nil
	}

	title, message := FormatAlert(payload)

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// FormatAlert renders an alert payload as a chat notification.
func FormatAlert(p domain.AlertPayload) (title, message string) {
	title = fmt.Sprintf("%s %s %s", actionLabel(p.Action), p.Symbol, p.Contract)

	var b strings.Builder
	fmt.Fprintf(&b, "Price %.2f | Grade %s | Conf %.0f", p.Price, p.Grade, p.Confidence)
	if p.Level != "" {
		fmt.Fprintf(&b, "\nLevel %s", p.Level)
	}
	fmt.Fprintf(&b, "\nStop %.2f | Target %.2f", p.Stop, p.Target)
	if p.Note != "" {
		fmt.Fprintf(&b, "\n%s", p.Note)
	}
	return title, b.String()
}

func actionLabel(a domain.AlertAction) string {
	switch a {
	case domain.ActionEnter:
		return "ENTER"
	case domain.ActionAdd:
		return "ADD"
	case domain.ActionTakeProfit:
		return "TAKE PROFIT"
	case domain.ActionTrim:
		return "TRIM"
	case domain.ActionExit:
		return "EXIT"
	}
	return strings.ToUpper(string(a))
}
