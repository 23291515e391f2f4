package domain

import "math"

// TrendCorrelations holds pairwise Pearson coefficients over a window of
// readings, rounded to three decimals. Dashboard material only; trend
// coefficients feed no scoring or alerting decision.
type TrendCorrelations struct {
	PM25Wind   float64 `json:"pm25_wind"`
	PM25Noise  float64 `json:"pm25_noise"`
	WindNoise  float64 `json:"wind_noise"`
	SampleSize int     `json:"sample_size"`
}

// ComputeTrendCorrelations calculates Pearson correlations between PM2.5,
// wind speed, and noise over the given readings. Readings missing either
// factor of a pair are skipped for that pair. Returns false when fewer than
// two readings are available.
func ComputeTrendCorrelations(readings []SensorReading) (TrendCorrelations, bool) {
	if len(readings) < 2 {
		return TrendCorrelations{}, false
	}
	return TrendCorrelations{
		PM25Wind:   pairCorrelation(readings, FactorPM25, FactorWind),
		PM25Noise:  pairCorrelation(readings, FactorPM25, FactorNoise),
		WindNoise:  pairCorrelation(readings, FactorWind, FactorNoise),
		SampleSize: len(readings),
	}, true
}

func pairCorrelation(readings []SensorReading, a, b Factor) float64 {
	var xs, ys []float64
	for _, r := range readings {
		x, okX := r.Value(a)
		y, okY := r.Value(b)
		if okX && okY {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	return round3(pearson(xs, ys))
}

// pearson computes the Pearson correlation coefficient, returning 0 for
// degenerate inputs (fewer than two pairs or zero variance).
func pearson(xs, ys []float64) float64 {
	n := float64(len(xs))
	if len(xs) != len(ys) || len(xs) < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumX2, sumY2 float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumX2 += xs[i] * xs[i]
		sumY2 += ys[i] * ys[i]
	}

	numerator := n*sumXY - sumX*sumY
	denominator := math.Sqrt((n*sumX2 - sumX*sumX) * (n*sumY2 - sumY*sumY))
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
