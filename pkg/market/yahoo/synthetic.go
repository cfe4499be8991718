package yahoo

import (
	"hash/fnv"
	"math/rand"
	"time"

	"papertrade-core/internal/market"
)

var tfSeconds = map[string]int64{
	"1m":  60,
	"5m":  300,
	"15m": 900,
	"1h":  3600,
	"1d":  86400,
}

// SyntheticBars builds a deterministic random-walk series for an
// instrument, seeded from the instrument key so repeated calls for the
// same symbol reproduce the same bars. Used when the remote chart API
// has no data for the requested window.
func SyntheticBars(inst market.Instrument, timeframe string, lookbackDays int, now time.Time) []market.Bar {
	step, ok := tfSeconds[timeframe]
	if !ok {
		step = 60
	}
	if lookbackDays < 1 {
		lookbackDays = 1
	}
	points := int64(lookbackDays) * 86400 / step
	if points < 50 {
		points = 50
	}
	if points > 1200 {
		points = 1200
	}

	h := fnv.New64a()
	h.Write([]byte(inst.Key()))
	rnd := rand.New(rand.NewSource(int64(h.Sum64())))

	price := 500.0 + rnd.Float64()*2500.0
	volScale := 0.001
	if timeframe == "1d" {
		volScale = 0.01
	}

	end := now.UTC().Truncate(time.Duration(step) * time.Second)
	bars := make([]market.Bar, 0, points)
	for i := int64(0); i < points; i++ {
		drift := (rnd.Float64() - 0.5) * volScale * price
		open := price
		closePx := open + drift
		if closePx < 1 {
			closePx = 1
		}
		high := max(open, closePx) + rnd.Float64()*volScale*2*price
		low := min(open, closePx) - rnd.Float64()*volScale*2*price
		if low < 0.5 {
			low = 0.5
		}
		bars = append(bars, market.Bar{
			Ts:     end.Add(-time.Duration(points-i) * time.Duration(step) * time.Second),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePx,
			Volume: 100000 + rnd.Float64()*50000,
		})
		price = closePx
	}
	return bars
}
