package db

import "time"

// Signal is one persisted signal row. Snapshot and Reasons carry JSON blobs;
// the callers own their shape. Outcome starts PENDING and is written back
// when the position it opened closes.
type Signal struct {
	ID             string    `json:"id"`
	Ticker         string    `json:"ticker"`
	Kind           string    `json:"kind"`
	Confidence     float64   `json:"confidence"`
	Trend          string    `json:"trend"`
	TrendStrength  float64   `json:"trend_strength"`
	Price          float64   `json:"price"`
	ChangePct      float64   `json:"change_pct"`
	WeightsVersion int       `json:"weights_version"`
	Snapshot       string    `json:"snapshot,omitempty"`
	Reasons        string    `json:"reasons,omitempty"`
	Outcome        string    `json:"outcome"`
	OutcomePct     float64   `json:"outcome_pct"`
	CreatedAt      time.Time `json:"created_at"`
}

// SignalKindStats aggregates settled outcomes for one signal kind.
type SignalKindStats struct {
	Kind    string `json:"kind"`
	Total   int    `json:"total"`
	Wins    int    `json:"wins"`
	Losses  int    `json:"losses"`
	Pending int    `json:"pending"`
}

// Position is one persisted position row.
type Position struct {
	ID             string     `json:"id"`
	Ticker         string     `json:"ticker"`
	Status         string     `json:"status"`
	Quantity       float64    `json:"quantity"`
	AvgPrice       float64    `json:"avg_price"`
	Invested       float64    `json:"invested"`
	TranchesFilled int        `json:"tranches_filled"`
	SignalID       string     `json:"signal_id,omitempty"`
	ExitReason     string     `json:"exit_reason,omitempty"`
	ExitPrice      float64    `json:"exit_price,omitempty"`
	MaxDrawdownPct float64    `json:"max_drawdown_pct"`
	MaxProfitPct   float64    `json:"max_profit_pct"`
	OpenedAt       time.Time  `json:"opened_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
}

// Trade is one completed round trip, the learning engine's unit of evidence.
type Trade struct {
	ID            string    `json:"id"`
	PositionID    string    `json:"position_id"`
	Ticker        string    `json:"ticker"`
	EntryPrice    float64   `json:"entry_price"`
	ExitPrice     float64   `json:"exit_price"`
	Quantity      float64   `json:"quantity"`
	ReturnPct     float64   `json:"return_pct"`
	Outcome       string    `json:"outcome"`
	ExitReason    string    `json:"exit_reason"`
	Confidence    float64   `json:"confidence"`
	ChangePct     float64   `json:"change_pct"`
	EntrySnapshot string    `json:"entry_snapshot,omitempty"`
	HoldSeconds   int64     `json:"hold_seconds"`
	OpenedAt      time.Time `json:"opened_at"`
	ClosedAt      time.Time `json:"closed_at"`
}

// Fill is one immutable executed order slice. A staged entry writes one row
// per tranche; the exit writes one more.
type Fill struct {
	ID          string    `json:"id"`
	PositionID  string    `json:"position_id"`
	Ticker      string    `json:"ticker"`
	Side        string    `json:"side"`
	Quantity    float64   `json:"quantity"`
	OrderPrice  float64   `json:"order_price"`
	FilledPrice float64   `json:"filled_price"`
	Slippage    float64   `json:"slippage"`
	Commission  float64   `json:"commission"`
	SplitIndex  int       `json:"split_index"`
	FilledAt    time.Time `json:"filled_at"`
}

// Pattern is one persisted mined pattern.
type Pattern struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Conditions   string    `json:"conditions"`
	WinRate      float64   `json:"win_rate"`
	AvgReturn    float64   `json:"avg_return"`
	SampleSize   int       `json:"sample_size"`
	IsActive     bool      `json:"is_active"`
	DiscoveredAt time.Time `json:"discovered_at"`
	ValidatedAt  time.Time `json:"validated_at"`
}

// WeightRecord is one weight_history row.
type WeightRecord struct {
	ID               int64     `json:"id"`
	Version          int       `json:"version"`
	Weights          string    `json:"weights"`
	PerformanceScore float64   `json:"performance_score"`
	SampleSize       int       `json:"sample_size"`
	CreatedAt        time.Time `json:"created_at"`
}

// TickerStats aggregates per-ticker trade outcomes.
type TickerStats struct {
	Ticker         string    `json:"ticker"`
	Trades         int       `json:"trades"`
	Wins           int       `json:"wins"`
	TotalReturnPct float64   `json:"total_return_pct"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RiskMetrics aggregates one trading day.
type RiskMetrics struct {
	Date        string  `json:"date"`
	DailyPnL    float64 `json:"daily_pnl"`
	DailyTrades int     `json:"daily_trades"`
	DailyWins   int     `json:"daily_wins"`
	DailySpend  float64 `json:"daily_spend"`
}
