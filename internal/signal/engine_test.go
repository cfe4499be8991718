package signal

import (
	"math"
	"testing"
	"time"

	"papertrade-core/internal/market"
)

var testInst = market.Instrument{Ticker: "RELIANCE", Venue: market.VenueNSE}

func barSeries(closes []float64) []market.Bar {
	base := time.Date(2026, 2, 2, 9, 15, 0, 0, time.UTC)
	bars := make([]market.Bar, len(closes))
	for i, px := range closes {
		bars[i] = market.Bar{
			Ts:     base.Add(time.Duration(i) * time.Minute),
			Open:   px,
			High:   px + 0.5,
			Low:    px - 0.5,
			Close:  px,
			Volume: 1000,
		}
	}
	return bars
}

// bullishCross alternates 100/99 for 59 bars, then jumps to 110. The
// fast and slow averages sit exactly equal on the second-to-last bar and
// the jump pulls the fast one above on the last, a clean upward cross.
func bullishCross() []market.Bar {
	closes := make([]float64, 60)
	for i := 0; i < 59; i++ {
		if i%2 == 0 {
			closes[i] = 100
		} else {
			closes[i] = 99
		}
	}
	closes[59] = 110
	return barSeries(closes)
}

func bearishCross() []market.Bar {
	closes := make([]float64, 60)
	for i := 0; i < 59; i++ {
		if i%2 == 0 {
			closes[i] = 100
		} else {
			closes[i] = 101
		}
	}
	closes[59] = 90
	return barSeries(closes)
}

func TestEvaluateBullishCrossover(t *testing.T) {
	sig := Evaluate(testInst, bullishCross())
	if sig == nil {
		t.Fatalf("expected a signal")
	}
	if sig.Action != ActionBuy {
		t.Fatalf("expected BUY, got %s", sig.Action)
	}
	if sig.Entry != 110 {
		t.Fatalf("entry must be the last close, got %v", sig.Entry)
	}
	// Previous bar's low (99.5) is tighter than 1% below entry (108.9).
	if sig.Stop != 99.5 {
		t.Fatalf("expected stop 99.5, got %v", sig.Stop)
	}
	if math.Abs(sig.Target-131) > 1e-9 {
		t.Fatalf("expected 2R target 131, got %v", sig.Target)
	}
	if sig.Strategy != StrategyName || sig.Confidence != 0.6 {
		t.Fatalf("unexpected metadata %+v", sig)
	}
	if !sig.Ts.Equal(bullishCross()[59].Ts) {
		t.Fatalf("signal timestamp must be the last bar's")
	}
}

func TestEvaluateBearishCrossover(t *testing.T) {
	sig := Evaluate(testInst, bearishCross())
	if sig == nil {
		t.Fatalf("expected a signal")
	}
	if sig.Action != ActionSell {
		t.Fatalf("expected SELL, got %s", sig.Action)
	}
	if sig.Entry != 90 {
		t.Fatalf("entry must be the last close, got %v", sig.Entry)
	}
	// Previous bar's high (100.5) is wider than 1% above entry (90.9).
	if sig.Stop != 100.5 {
		t.Fatalf("expected stop 100.5, got %v", sig.Stop)
	}
	if math.Abs(sig.Target-69) > 1e-9 {
		t.Fatalf("expected 2R target 69, got %v", sig.Target)
	}
}

func TestEvaluateInsufficientHistory(t *testing.T) {
	bars := bullishCross()
	if sig := Evaluate(testInst, bars[:59]); sig != nil {
		t.Fatalf("59 bars must not produce a signal, got %+v", sig)
	}
	if sig := Evaluate(testInst, nil); sig != nil {
		t.Fatalf("empty input must not produce a signal")
	}
}

func TestEvaluateNoCrossNoSignal(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100
	}
	if sig := Evaluate(testInst, barSeries(closes)); sig != nil {
		t.Fatalf("flat series must not produce a signal, got %+v", sig)
	}
}

func TestEvaluateOverboughtGate(t *testing.T) {
	// Flat at 100 then a jump: the averages cross upward but the series
	// has never printed a loss, so momentum is pegged at the ceiling and
	// the long is suppressed.
	closes := make([]float64, 60)
	for i := 0; i < 59; i++ {
		closes[i] = 100
	}
	closes[59] = 110
	if sig := Evaluate(testInst, barSeries(closes)); sig != nil {
		t.Fatalf("overbought crossover must be suppressed, got %+v", sig)
	}
}

func TestEvaluateFiltersMalformedBars(t *testing.T) {
	bars := bullishCross()
	junk := market.Bar{Ts: bars[0].Ts.Add(-time.Minute), Open: 0, High: 0, Low: 0, Close: 0}
	withJunk := append([]market.Bar{junk}, bars...)

	sig := Evaluate(testInst, withJunk)
	if sig == nil || sig.Action != ActionBuy {
		t.Fatalf("malformed bars must be ignored, got %+v", sig)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	bars := bullishCross()
	a := Evaluate(testInst, bars)
	b := Evaluate(testInst, bars)
	if a == nil || b == nil {
		t.Fatalf("expected signals")
	}
	if *a != *b {
		t.Fatalf("identical input must produce identical output: %+v != %+v", a, b)
	}
}
