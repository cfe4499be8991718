// Package gateway routes order submissions to the remote paper-broker API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"papertrade-core/internal/ledger"
	"papertrade-core/internal/market"
)

var (
	ErrRejected = errors.New("order rejected by remote broker")
)

// Router submits orders to a remote paper-broker endpoint and returns
// its authoritative fill price. Failures are reported to the caller,
// which falls back to local simulation.
type Router struct {
	baseURL    string
	httpClient *http.Client
}

// NewRouter builds a router against the remote API base URL.
func NewRouter(baseURL string) *Router {
	return &Router{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type orderRequest struct {
	Ticker string  `json:"ticker"`
	Venue  string  `json:"venue"`
	Side   string  `json:"side"`
	Qty    float64 `json:"qty"`
	Price  float64 `json:"price,omitempty"`
}

type orderResponse struct {
	Status    string  `json:"status"`
	FillPrice float64 `json:"fill_price"`
	Reason    string  `json:"reason,omitempty"`
}

// RouteOrder implements the ledger order-routing hook.
func (r *Router) RouteOrder(ctx context.Context, inst market.Instrument, side ledger.Side, qty, price float64) (float64, error) {
	payload, err := json.Marshal(orderRequest{
		Ticker: inst.Ticker,
		Venue:  string(inst.Venue),
		Side:   string(side),
		Qty:    qty,
		Price:  price,
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/orders", bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := r.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 300 {
		return 0, fmt.Errorf("remote broker status %d: %s", res.StatusCode, string(body))
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode broker response: %w", err)
	}
	if !strings.EqualFold(resp.Status, "filled") {
		if resp.Reason != "" {
			return 0, fmt.Errorf("%w: %s", ErrRejected, resp.Reason)
		}
		return 0, ErrRejected
	}
	if resp.FillPrice <= 0 {
		return 0, fmt.Errorf("remote broker returned non-positive fill price %v", resp.FillPrice)
	}
	return resp.FillPrice, nil
}
