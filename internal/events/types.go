package events

import "time"

// Event enumerates high-level topics inside the paper-trading core.
type Event string

const (
	EventPriceTick      Event = "price_tick"
	EventSignal         Event = "signal"
	EventOrderFilled    Event = "order.filled"
	EventPositionChange Event = "position_change"
	EventRiskAlert      Event = "risk_alert"
)

// PriceTick is the payload published on EventPriceTick.
type PriceTick struct {
	Ticker string    `json:"ticker"`
	Venue  string    `json:"venue"`
	Price  float64   `json:"price"`
	Ts     time.Time `json:"ts"`
}

// RiskAlert is the payload published on EventRiskAlert.
type RiskAlert struct {
	Reason string    `json:"reason"`
	Ts     time.Time `json:"ts"`
}
