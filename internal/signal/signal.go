package signal

import (
	"time"

	"papertrade-core/internal/market"
)

// Action is the recommendation direction.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Signal is a trade recommendation produced by Evaluate. It is produced
// once and never mutated; the caller decides whether to act on it.
type Signal struct {
	Instrument market.Instrument `json:"instrument"`
	Strategy   string            `json:"strategy"`
	Action     Action            `json:"action"`
	Entry      float64           `json:"entry"`
	Stop       float64           `json:"stop"`
	Target     float64           `json:"target,omitempty"`
	Confidence float64           `json:"confidence"`
	Ts         time.Time         `json:"ts"`
}
