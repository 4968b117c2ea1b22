// Package broker is a thin HTTP client for an external order gateway.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// OrderRequest is the wire form of an order submission.
type OrderRequest struct {
	ClientOrderID string  `json:"client_order_id"`
	Ticker        string  `json:"ticker"`
	Side          string  `json:"side"`
	Qty           float64 `json:"qty"`
	Type          string  `json:"type"` // MARKET only for now
}

// OrderResponse is the gateway's fill acknowledgement.
type OrderResponse struct {
	OrderID     string  `json:"order_id"`
	Status      string  `json:"status"` // FILLED or REJECTED
	FilledQty   float64 `json:"filled_qty"`
	FilledPrice float64 `json:"filled_price"`
	Commission  float64 `json:"commission"`
	Reason      string  `json:"reason,omitempty"`
}

// Client talks to the broker gateway over HTTP with client-side rate
// limiting so bursts of tranches cannot trip the venue's limits.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a broker client. rps bounds outbound requests per second.
func NewClient(baseURL, apiKey string, rps float64) *Client {
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)),
	}
}

// SubmitOrder places a market order and waits for the acknowledgement.
func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (OrderResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return OrderResponse{}, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return OrderResponse{}, fmt.Errorf("marshal order: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return OrderResponse{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return OrderResponse{}, fmt.Errorf("submit order: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return OrderResponse{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return OrderResponse{}, fmt.Errorf("broker returned %d: %s", resp.StatusCode, data)
	}

	var out OrderResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return OrderResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// Ping checks gateway reachability.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ping broker: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("broker health returned %d", resp.StatusCode)
	}
	return nil
}
