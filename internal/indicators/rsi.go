package indicators

import "math"

// RSISeries computes a Wilder-style Relative Strength Index over closing
// prices. Average gain and loss are exponentially smoothed with factor
// 1/period per step, seeded from the first price delta. out[0] is NaN
// because no delta exists for the first bar; the oscillator is defined as
// exactly 100 while the smoothed loss is zero.
func RSISeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}
	out[0] = math.NaN()
	if period <= 0 {
		for i := 1; i < len(out); i++ {
			out[i] = math.NaN()
		}
		return out
	}

	p := float64(period)
	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain := math.Max(0, change)
		loss := math.Max(0, -change)
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - (100 / (1 + rs))
	}
	return out
}
