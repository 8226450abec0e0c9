package domain

import "time"

// Confluence is one named confluence score contributing to a tile's grade.
type Confluence struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// KeyLevel is a named price level (ORB high, prior close, VWAP, ...).
type KeyLevel struct {
	Label string  `json:"label"`
	Price float64 `json:"price"`
}

// Contract describes one options contract from a tile's ranked summary.
// The Contract string is the immutable identity; every other field is
// refreshed whenever a newer snapshot arrives.
type Contract struct {
	Contract      string   `json:"contract"`
	Ticker        string   `json:"ticker"`
	Expiry        string   `json:"expiry,omitempty"`
	Strike        *float64 `json:"strike,omitempty"`
	Type          string   `json:"type,omitempty"`
	Bid           *float64 `json:"bid,omitempty"`
	Ask           *float64 `json:"ask,omitempty"`
	Mid           *float64 `json:"mid,omitempty"`
	Delta         *float64 `json:"delta,omitempty"`
	OpenInterest  *float64 `json:"oi,omitempty"`
	SpreadQuality string   `json:"spread_quality,omitempty"`
}

// Band is the coarse state label the engine derives from probability.
type Band struct {
	Label    string   `json:"label"`
	MinScore *float64 `json:"min_score,omitempty"`
	MaxScore *float64 `json:"max_score,omitempty"`
}

// AdminFields carries the operator-only derived fields of a tile.
type AdminFields struct {
	Managing    map[string]any     `json:"managing,omitempty"`
	MarketMicro map[string]float64 `json:"marketMicro,omitempty"`
	LastPrice   *float64           `json:"lastPrice,omitempty"`
	Timing      *TimingLabel       `json:"timing,omitempty"`
	Levels      []KeyLevel         `json:"levels,omitempty"`
	ATR         *float64           `json:"atr,omitempty"`
}

// TimingLabel wraps the session-timing hint shown next to a tile.
type TimingLabel struct {
	Label string `json:"label,omitempty"`
}

// Tile is the latest analytics snapshot for one symbol. Symbol is the
// immutable key; UpdatedAt is stamped locally at merge time and never
// supplied by the engine.
type Tile struct {
	Symbol            string           `json:"symbol"`
	Regime            string           `json:"regime,omitempty"`
	Grade             string           `json:"grade,omitempty"`
	ConfidenceScore   float64          `json:"confidence_score"`
	ProbabilityToAction float64        `json:"probability_to_action"`
	Band              *Band            `json:"band,omitempty"`
	Breakdown         []Confluence     `json:"breakdown,omitempty"`
	OptionsTop3       []Contract       `json:"options_top3,omitempty"`
	Rationale         *Rationale       `json:"rationale,omitempty"`
	Admin             *AdminFields     `json:"admin,omitempty"`
	ETASeconds        *float64         `json:"eta_seconds,omitempty"`
	KeyLevels         []KeyLevel       `json:"key_levels,omitempty"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// Rationale lists the engine's positives and risks for a setup.
type Rationale struct {
	Positives []string `json:"positives,omitempty"`
	Risks     []string `json:"risks,omitempty"`
}

// PartialTile is a sparse delta tile from the push channel. A nil field means
// "not included in this update" and must not disturb the stored value; the
// engine is free to send only the fields that changed.
type PartialTile struct {
	Symbol              string       `json:"symbol"`
	Regime              *string      `json:"regime,omitempty"`
	Grade               *string      `json:"grade,omitempty"`
	ConfidenceScore     *float64     `json:"confidence_score,omitempty"`
	ProbabilityToAction *float64     `json:"probability_to_action,omitempty"`
	Band                *Band        `json:"band,omitempty"`
	Breakdown           []Confluence `json:"breakdown,omitempty"`
	OptionsTop3         []Contract   `json:"options_top3,omitempty"`
	Rationale           *Rationale   `json:"rationale,omitempty"`
	Admin               *AdminFields `json:"admin,omitempty"`
	ETASeconds          *float64     `json:"eta_seconds,omitempty"`
	KeyLevels           []KeyLevel   `json:"key_levels,omitempty"`
}

// Apply overwrites the fields of t that are present in p. Absent fields are
// left untouched so sparse deltas never erase previously known state.
func (p PartialTile) Apply(t *Tile) {
	if p.Regime != nil {
		t.Regime = *p.Regime
	}
	if p.Grade != nil {
		t.Grade = *p.Grade
	}
	if p.ConfidenceScore != nil {
		t.ConfidenceScore = *p.ConfidenceScore
	}
	if p.ProbabilityToAction != nil {
		t.ProbabilityToAction = *p.ProbabilityToAction
	}
	if p.Band != nil {
		t.Band = p.Band
	}
	if p.Breakdown != nil {
		t.Breakdown = p.Breakdown
	}
	if p.OptionsTop3 != nil {
		t.OptionsTop3 = p.OptionsTop3
	}
	if p.Rationale != nil {
		t.Rationale = p.Rationale
	}
	if p.Admin != nil {
		t.Admin = p.Admin
	}
	if p.ETASeconds != nil {
		t.ETASeconds = p.ETASeconds
	}
	if p.KeyLevels != nil {
		t.KeyLevels = p.KeyLevels
	}
}

// ConnStatus is the push-channel connectivity state.
type ConnStatus string

const (
	ConnConnecting ConnStatus = "connecting"
	ConnOnline     ConnStatus = "online"
	ConnOffline    ConnStatus = "offline"
)
