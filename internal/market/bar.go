package market

import (
	"fmt"
	"math"
	"time"
)

// Venue identifies one of the two supported exchanges.
type Venue string

const (
	VenueNSE Venue = "NSE"
	VenueBSE Venue = "BSE"
)

// ParseVenue validates a venue string.
func ParseVenue(s string) (Venue, error) {
	switch Venue(s) {
	case VenueNSE, VenueBSE:
		return Venue(s), nil
	}
	return "", fmt.Errorf("unknown venue %q", s)
}

// Instrument is the (ticker, venue) pair used as the join key between
// signals, positions and marks.
type Instrument struct {
	Ticker string `json:"ticker"`
	Venue  Venue  `json:"venue"`
}

// Key renders the canonical "TICKER.VENUE" map key.
func (i Instrument) Key() string {
	return i.Ticker + "." + string(i.Venue)
}

func (i Instrument) String() string { return i.Key() }

// Bar is one OHLC(V) observation over a fixed time window.
type Bar struct {
	Ts     time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume,omitempty"`
}

// Valid reports whether all OHLC fields are finite and positive.
func (b Bar) Valid() bool {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return !b.Ts.IsZero()
}

// Clean drops malformed bars and bars that break timestamp monotonicity,
// so indicator math never sees a NaN or an out-of-order sample.
// The input slice is not modified.
func Clean(bars []Bar) []Bar {
	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		if !b.Valid() {
			continue
		}
		if len(out) > 0 && !b.Ts.After(out[len(out)-1].Ts) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Closes extracts the closing-price series.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
