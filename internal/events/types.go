package events

import "time"

// Topic enumerates high-level message topics inside the decision engine.
type Topic string

const (
	// Market-data topics: freshness beats completeness, slow subscribers drop.
	TopicCandidate Topic = "candidate"
	TopicPriceTick Topic = "price_tick"

	// Decision-flow topics.
	TopicSignal         Topic = "signal"
	TopicPositionOpened Topic = "position.opened"
	TopicPositionClosed Topic = "position.closed"
	TopicOrderFilled    Topic = "order.filled"
	TopicOrderRejected  Topic = "order.rejected"

	// Trend confirmation request/response exchange (take-profit gating).
	TopicTrendCheck Topic = "trend_check"

	// Learning outputs.
	TopicWeightsUpdated    Topic = "weights.updated"
	TopicThresholdProposal Topic = "threshold.proposal"

	// Operational topics.
	TopicRiskAlert         Topic = "risk_alert"
	TopicBrokerUnreachable Topic = "broker.unreachable"
)

// PriceTick is the per-symbol price update payload on TopicPriceTick.
type PriceTick struct {
	Ticker string  `json:"ticker"`
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// Candidate is a screener hit on TopicCandidate: a ticker showing unusual
// movement that deserves a full indicator evaluation. At is the screener's
// own detection time.
type Candidate struct {
	Ticker         string    `json:"ticker"`
	Price          float64   `json:"price"`
	ChangePct      float64   `json:"change_pct"`
	VolumeSpikePct float64   `json:"volume_spike_pct"`
	At             time.Time `json:"timestamp"`
}

// PositionEvent announces a lifecycle change on TopicPositionOpened or
// TopicPositionClosed without coupling subscribers to the position package.
type PositionEvent struct {
	PositionID string  `json:"position_id"`
	Ticker     string  `json:"ticker"`
	Status     string  `json:"status"`
	ExitReason string  `json:"exit_reason,omitempty"`
	ReturnPct  float64 `json:"return_pct,omitempty"`
}

// TrendCheck is a request/response exchange on TopicTrendCheck. The asker
// supplies a Reply channel (buffer >= 1); the responder sends the current
// trend for the ticker, or nothing if it cannot answer.
type TrendCheck struct {
	Ticker string
	Reply  chan string
}

