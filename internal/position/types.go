package position

import (
	"time"

	"momentum-core/internal/indicators"
)

// Position lifecycle statuses. A ticker has at most one non-CLOSED position.
const (
	StatusInitiating  = "INITIATING"
	StatusOpen        = "OPEN"
	StatusExitPending = "EXIT_PENDING"
	StatusClosed      = "CLOSED"
)

// Exit reasons.
const (
	ExitStopLoss      = "STOP_LOSS"
	ExitTakeProfit    = "TAKE_PROFIT"
	ExitTrendReversal = "TREND_REVERSAL"
	ExitRiskHalt      = "RISK_HALT"
)

// Position is the managed state for one ticker's exposure. Only the owning
// goroutine mutates it; readers get copies through the manager.
type Position struct {
	ID             string    `json:"id"`
	Ticker         string    `json:"ticker"`
	Status         string    `json:"status"`
	Quantity       float64   `json:"quantity"`
	AvgPrice       float64   `json:"avg_price"` // volume-weighted across filled tranches
	Invested       float64   `json:"invested"`
	TranchesFilled int       `json:"tranches_filled"`
	SignalID       string    `json:"signal_id"`
	ExitReason     string    `json:"exit_reason,omitempty"`
	ExitPrice      float64   `json:"exit_price,omitempty"`
	MaxDrawdownPct float64   `json:"max_drawdown_pct"`
	MaxProfitPct   float64   `json:"max_profit_pct"`
	OpenedAt       time.Time `json:"opened_at"`
	ClosedAt       time.Time `json:"closed_at,omitempty"`

	// Entry context carried through to the trade record.
	entryConfidence float64
	entryChangePct  float64
	entrySnapshot   indicators.Snapshot
}

// ReturnPct returns the unrealized return at price, in percent.
func (p *Position) ReturnPct(price float64) float64 {
	if p.AvgPrice <= 0 {
		return 0
	}
	return (price - p.AvgPrice) / p.AvgPrice * 100
}

// applyFill folds one entry fill into the volume-weighted average.
func (p *Position) applyFill(qty, price, commission float64) {
	total := p.AvgPrice*p.Quantity + price*qty
	p.Quantity += qty
	p.AvgPrice = total / p.Quantity
	p.Invested += price*qty + commission
	p.TranchesFilled++
}
