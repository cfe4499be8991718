package signal

import (
	"math"

	"papertrade-core/internal/indicators"
	"papertrade-core/internal/market"
)

// StrategyName tags signals produced by the SMA-crossover rule.
const StrategyName = "sma_cross"

const (
	fastPeriod = 20
	slowPeriod = 50
	rsiPeriod  = 14

	// minHistory is the floor below which no signal is ever produced.
	minHistory = 60

	// the anti-chase gate: no new long above overbought, no new short
	// below oversold
	overbought = 80
	oversold   = 20

	// placeholder confidence until a scoring model is plugged in
	baseConfidence = 0.6
)

// Evaluate inspects an ascending bar series for instrument and returns a
// BUY/SELL recommendation when the fast SMA crosses the slow SMA on the
// final bar, or nil when there is nothing to act on. It is a pure
// function of its input: malformed bars are filtered out, insufficient
// history yields nil rather than an error, and identical input always
// produces an identical signal.
func Evaluate(inst market.Instrument, bars []market.Bar) *Signal {
	bars = market.Clean(bars)
	n := len(bars)
	if n < minHistory {
		return nil
	}

	closes := market.Closes(bars)
	fast := indicators.SMASeries(closes, fastPeriod)
	slow := indicators.SMASeries(closes, slowPeriod)
	rsi := indicators.RSISeries(closes, rsiPeriod)

	cFast, pFast := fast[n-1], fast[n-2]
	cSlow, pSlow := slow[n-1], slow[n-2]
	cRSI := rsi[n-1]
	if anyNaN(cFast, pFast, cSlow, pSlow, cRSI) {
		return nil
	}

	last := bars[n-1]
	prev := bars[n-2]

	crossedUp := pFast <= pSlow && cFast > cSlow
	crossedDn := pFast >= pSlow && cFast < cSlow

	switch {
	case crossedUp && cRSI < overbought:
		entry := last.Close
		stop := math.Min(prev.Low, entry*0.99)
		return &Signal{
			Instrument: inst,
			Strategy:   StrategyName,
			Action:     ActionBuy,
			Entry:      entry,
			Stop:       stop,
			Target:     entry + 2*(entry-stop),
			Confidence: baseConfidence,
			Ts:         last.Ts,
		}
	case crossedDn && cRSI > oversold:
		entry := last.Close
		stop := math.Max(prev.High, entry*1.01)
		return &Signal{
			Instrument: inst,
			Strategy:   StrategyName,
			Action:     ActionSell,
			Entry:      entry,
			Stop:       stop,
			Target:     entry - 2*(stop-entry),
			Confidence: baseConfidence,
			Ts:         last.Ts,
		}
	}
	return nil
}

func anyNaN(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
