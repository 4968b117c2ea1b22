package order

import "time"

// Order sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Intent is one order the position manager wants executed. Entries are one
// intent per tranche; exits are a single intent for the full quantity.
type Intent struct {
	ID         string    `json:"id"`
	PositionID string    `json:"position_id"`
	Ticker     string    `json:"ticker"`
	Side       string    `json:"side"`
	Qty        float64   `json:"qty"`
	Price      float64   `json:"price"` // reference price at submit time
	Tranche    int       `json:"tranche"`
	Reason     string    `json:"reason,omitempty"` // exit reason, empty for entries
	CreatedAt  time.Time `json:"created_at"`
}

// Fill is the executed result of an intent.
type Fill struct {
	OrderID    string    `json:"order_id"`
	PositionID string    `json:"position_id"`
	Ticker     string    `json:"ticker"`
	Side       string    `json:"side"`
	Qty        float64   `json:"qty"`
	Price      float64   `json:"price"`
	Commission float64   `json:"commission"`
	Tranche    int       `json:"tranche"`
	FilledAt   time.Time `json:"filled_at"`
}

// Cost returns the cash consumed by the fill including commission.
func (f Fill) Cost() float64 {
	return f.Qty*f.Price + f.Commission
}
