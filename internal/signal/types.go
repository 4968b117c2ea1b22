package signal

import (
	"time"

	"momentum-core/internal/indicators"
)

// Signal kinds.
const (
	KindBuy   = "BUY"
	KindSell  = "SELL"
	KindStop  = "STOP" // stop-loss feedback, consumed by learning only
	KindWatch = "WATCH"
)

// Trend labels.
const (
	TrendUp       = "UP"
	TrendDown     = "DOWN"
	TrendSideways = "SIDEWAYS"
)

// Signal is one decision emitted on the bus. Immutable once published.
type Signal struct {
	ID              string              `json:"id"`
	Ticker          string              `json:"ticker"`
	Kind            string              `json:"kind"`
	Confidence      float64             `json:"confidence"`
	Trend           string              `json:"trend"`
	TrendStrength   float64             `json:"trend_strength"`
	Price           float64             `json:"price"`
	ChangePct       float64             `json:"change_pct"`
	WeightsVersion  int                 `json:"weights_version"`
	Snapshot        indicators.Snapshot `json:"snapshot"`
	Reasons         []string            `json:"reasons,omitempty"`
	MatchedPatterns []string            `json:"matched_patterns,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}
