package order

import (
	"context"
	"fmt"
	"time"

	"momentum-core/pkg/broker"
)

// BrokerGateway adapts the HTTP broker client to the Gateway interface.
type BrokerGateway struct {
	client *broker.Client
}

// NewBrokerGateway wraps a broker client.
func NewBrokerGateway(client *broker.Client) *BrokerGateway {
	return &BrokerGateway{client: client}
}

func (g *BrokerGateway) Name() string { return "broker" }

// Submit places a market order and maps the acknowledgement onto a Fill.
// A REJECTED status maps to ErrRejected so the executor will not retry.
func (g *BrokerGateway) Submit(ctx context.Context, in Intent) (Fill, error) {
	resp, err := g.client.SubmitOrder(ctx, broker.OrderRequest{
		ClientOrderID: in.ID,
		Ticker:        in.Ticker,
		Side:          in.Side,
		Qty:           in.Qty,
		Type:          "MARKET",
	})
	if err != nil {
		return Fill{}, err
	}
	if resp.Status != "FILLED" {
		return Fill{}, fmt.Errorf("%w: %s", ErrRejected, resp.Reason)
	}
	return Fill{
		OrderID:    resp.OrderID,
		PositionID: in.PositionID,
		Ticker:     in.Ticker,
		Side:       in.Side,
		Qty:        resp.FilledQty,
		Price:      resp.FilledPrice,
		Commission: resp.Commission,
		Tranche:    in.Tranche,
		FilledAt:   time.Now(),
	}, nil
}
