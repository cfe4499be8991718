package ledger

import (
	"time"

	"papertrade-core/internal/market"
)

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the closing side for a position opened by s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType distinguishes market from limit orders. Both fill instantly
// in the simulator; the type is carried for display and history only.
type OrderType string

const (
	TypeMarket OrderType = "MARKET"
	TypeLimit  OrderType = "LIMIT"
)

// Order statuses.
const (
	StatusNew      = "NEW"
	StatusFilled   = "FILLED"
	StatusRejected = "REJECTED"
)

// Price sources recorded on a fill, so degraded fills are visible to the
// caller instead of silently priced.
const (
	PriceFromOrder    = "order"
	PriceFromRemote   = "remote"
	PriceFromMark     = "mark"
	PriceFromFallback = "fallback"
)

// Position is the net exposure for one instrument. Qty is signed:
// positive is long, negative is short. AvgPrice is meaningful only while
// Qty is nonzero; a position that nets to exactly zero is deleted.
type Position struct {
	Instrument market.Instrument `json:"instrument"`
	Qty        float64           `json:"qty"`
	AvgPrice   float64           `json:"avgPrice"`
}

// Order is one entry in the append-only order log.
type Order struct {
	ID          string            `json:"id"`
	Ts          time.Time         `json:"ts"`
	Instrument  market.Instrument `json:"instrument"`
	Side        Side              `json:"side"`
	Type        OrderType         `json:"type"`
	Price       float64           `json:"price"`
	Qty         float64           `json:"qty"`
	Status      string            `json:"status"`
	PriceSource string            `json:"priceSource,omitempty"`
}

// Trade records a fill, one per filled order.
type Trade struct {
	ID         string            `json:"id"`
	Ts         time.Time         `json:"ts"`
	Instrument market.Instrument `json:"instrument"`
	Side       Side              `json:"side"`
	Price      float64           `json:"price"`
	Qty        float64           `json:"qty"`
}

// Bracket is a pair of conditional exit thresholds attached to a
// position. Zero means unset.
type Bracket struct {
	Entry  float64 `json:"entry"`
	Target float64 `json:"target,omitempty"`
	Stop   float64 `json:"stop,omitempty"`
}

// OrderRequest is the input to PlaceOrder.
type OrderRequest struct {
	Instrument market.Instrument
	Side       Side
	Type       OrderType // defaults to MARKET
	Qty        float64
	Price      float64 // 0 means resolve from mark / fallback
	Bracket    *Bracket
}
