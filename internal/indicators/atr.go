package indicators

import "math"

// ATR computes the Average True Range over the last period bars as a
// rolling mean of the true range, the volatility proxy used for position
// sizing. Returns 0 when there is not enough history.
func ATR(highs, lows, closes []float64, period int) float64 {
	n := len(closes)
	if period <= 0 || n < 2 || len(highs) != n || len(lows) != n {
		return 0
	}

	trs := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		tr := highs[i] - lows[i]
		tr = math.Max(tr, math.Abs(highs[i]-closes[i-1]))
		tr = math.Max(tr, math.Abs(lows[i]-closes[i-1]))
		trs = append(trs, tr)
	}
	if len(trs) < period {
		// not enough samples for a full window; average what we have
		sum := 0.0
		for _, tr := range trs {
			sum += tr
		}
		return sum / float64(len(trs))
	}
	sum := 0.0
	for i := len(trs) - period; i < len(trs); i++ {
		sum += trs[i]
	}
	return sum / float64(period)
}
