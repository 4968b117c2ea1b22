package risk

import "errors"

// Admission rejections. The signal pipeline treats every one of these as a
// silent drop of the candidate, never a fault.
var (
	ErrMaxPositions   = errors.New("max concurrent positions reached")
	ErrBudgetExceeded = errors.New("daily budget exceeded")
	ErrTickerHeld     = errors.New("ticker already has an open position")
	ErrHalted         = errors.New("trading halted")
)

// Limits are the admission knobs.
type Limits struct {
	MaxConcurrent int     // open positions at once
	DailyBudget   float64 // currency reserved per trading day
	PositionSize  float64 // target spend per position
	StopLossPct   float64 // exit when unrealized return falls to this, e.g. -15
	TakeProfitPct float64 // exit candidate when unrealized return reaches this, e.g. 30
}

// DefaultLimits mirrors the production tuning.
func DefaultLimits() Limits {
	return Limits{
		MaxConcurrent: 5,
		DailyBudget:   1_000_000,
		PositionSize:  100_000,
		StopLossPct:   -15,
		TakeProfitPct: 30,
	}
}

// Reservation is an admitted claim on a slot and a slice of budget. The
// holder must settle it exactly once with Release or Refund.
type Reservation struct {
	Ticker string
	Amount float64
}
