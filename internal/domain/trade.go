package domain

import "time"

// AlertAction is one discrete trade lifecycle action the operator can
// dispatch. The set is closed; anything else is rejected at the boundary.
type AlertAction string

const (
	ActionEnter      AlertAction = "enter"
	ActionAdd        AlertAction = "add"
	ActionTakeProfit AlertAction = "take_profit"
	ActionTrim       AlertAction = "trim"
	ActionExit       AlertAction = "exit"
)

// ValidAction reports whether a is one of the dispatchable action kinds.
func ValidAction(a AlertAction) bool {
	switch a {
	case ActionEnter, ActionAdd, ActionTakeProfit, ActionTrim, ActionExit:
		return true
	}
	return false
}

// AlertPayload is the outbound alert dispatched for a lifecycle action and
// kept as the trade's lastTemplate for one-click re-alerting.
type AlertPayload struct {
	Action     AlertAction `json:"action"`
	Symbol     string      `json:"symbol"`
	Contract   string      `json:"contract"`
	Price      float64     `json:"price"`
	Grade      string      `json:"grade"`
	Confidence float64     `json:"confidence"`
	Level      string      `json:"level"`
	Stop       float64     `json:"stop"`
	Target     float64     `json:"target"`
	Note       string      `json:"note,omitempty"`
}

// ActiveTradeAlert is one immutable timeline entry on an active trade.
// Entries are created only when a dispatch has been confirmed and are never
// mutated or removed individually.
type ActiveTradeAlert struct {
	ID         string      `json:"id"`
	Action     AlertAction `json:"action"`
	Note       string      `json:"note,omitempty"`
	Price      float64     `json:"price"`
	Grade      string      `json:"grade"`
	Confidence float64     `json:"confidence"`
	Level      string      `json:"level"`
	Stop       float64     `json:"stop"`
	Target     float64     `json:"target"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// ActiveTrade is a locally staged position keyed by its contract identifier.
// Timeline is append-only; PnlPct is always derived from EntryPrice and
// LatestMid, never set directly.
type ActiveTrade struct {
	ContractID   string             `json:"contractId"`
	Symbol       string             `json:"symbol"`
	Contract     Contract           `json:"contract"`
	EntryPrice   *float64           `json:"entryPrice,omitempty"`
	LatestMid    *float64           `json:"latestMid,omitempty"`
	PnlPct       *float64           `json:"pnlPct,omitempty"`
	Timeline     []ActiveTradeAlert `json:"timeline"`
	LastTemplate *AlertPayload      `json:"lastTemplate,omitempty"`
	IsClosed     bool               `json:"isClosed"`
	ClosedAt     *time.Time         `json:"closedAt,omitempty"`
}
