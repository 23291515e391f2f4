package domain

import (
	"math"
	"time"
)

// RiskLevel is the qualitative band of a risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
)

// FactorScore records one factor's contribution to an assessment.
type FactorScore struct {
	Factor   Factor  `json:"factor"`
	Weight   float64 `json:"weight"` // renormalized weight actually applied
	SubScore float64 `json:"sub_score"`
}

// RiskAssessment is the scored view of exactly one SensorReading.
// Derived deterministically; never mutated.
type RiskAssessment struct {
	LocationID          string        `json:"location_id"`
	ReadingID           string        `json:"reading_id"`
	Timestamp           time.Time     `json:"timestamp"`
	Score               int           `json:"score"`
	Level               RiskLevel     `json:"level"`
	ContributingFactors []FactorScore `json:"contributing_factors"`
}

// RiskConfig enumerates every scoring tunable. Band fields are inclusive
// lower bounds; a score equal to a boundary lands in the higher band.
type RiskConfig struct {
	WeightPM25     float64
	WeightNoise    float64
	WeightTemp     float64
	WeightHumidity float64
	WeightWind     float64

	ModerateAt int
	HighAt     int
	CriticalAt int
}

// DefaultRiskConfig returns the production weights and band boundaries.
// PM2.5 carries the largest weight, matching the network's primary pollutant
// concern; wind is scored inversely (calm air traps pollutants).
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		WeightPM25:     0.40,
		WeightNoise:    0.20,
		WeightTemp:     0.15,
		WeightHumidity: 0.10,
		WeightWind:     0.15,

		ModerateAt: 30,
		HighAt:     50,
		CriticalAt: 70,
	}
}

func (c RiskConfig) weight(f Factor) float64 {
	switch f {
	case FactorPM25:
		return c.WeightPM25
	case FactorNoise:
		return c.WeightNoise
	case FactorTemp:
		return c.WeightTemp
	case FactorHumidity:
		return c.WeightHumidity
	case FactorWind:
		return c.WeightWind
	default:
		return 0
	}
}

// Score converts a reading into a RiskAssessment. Pure function of its inputs.
//
// Absent factors are excluded and the remaining weights renormalized, so a
// missing humidity field does not drag the score toward zero. A reading with
// no present factors scores 0/Low.
func Score(reading SensorReading, cfg RiskConfig) RiskAssessment {
	assessment := RiskAssessment{
		LocationID: reading.LocationID,
		ReadingID:  reading.ID,
		Timestamp:  reading.Timestamp,
		Level:      RiskLow,
	}

	var weightSum float64
	type present struct {
		factor   Factor
		weight   float64
		subScore float64
	}
	var factors []present
	for _, f := range scoredFactors {
		v, ok := reading.Value(f)
		if !ok {
			continue
		}
		w := cfg.weight(f)
		if w <= 0 {
			continue
		}
		factors = append(factors, present{factor: f, weight: w, subScore: FactorSubScore(f, v)})
		weightSum += w
	}
	if weightSum == 0 {
		return assessment
	}

	var weighted float64
	for _, p := range factors {
		normalized := p.weight / weightSum
		weighted += normalized * p.subScore
		assessment.ContributingFactors = append(assessment.ContributingFactors, FactorScore{
			Factor:   p.factor,
			Weight:   normalized,
			SubScore: p.subScore,
		})
	}

	assessment.Score = int(math.Round(math.Min(100, math.Max(0, weighted))))
	assessment.Level = LevelForScore(assessment.Score, cfg)
	return assessment
}

// LevelForScore maps a score to its band. Boundaries are inclusive lower
// bounds: 30 is Moderate, 50 is High, 70 is Critical.
func LevelForScore(score int, cfg RiskConfig) RiskLevel {
	switch {
	case score >= cfg.CriticalAt:
		return RiskCritical
	case score >= cfg.HighAt:
		return RiskHigh
	case score >= cfg.ModerateAt:
		return RiskModerate
	default:
		return RiskLow
	}
}

// FactorSubScore maps a factor value through its scoring curve into [0,100].
// Curves are fixed piecewise-linear and monotonic; only weights and band
// boundaries are configurable.
//
//	pm25      EPA AQI breakpoints: 12 / 35.4 / 55.4 / 150.4 µg/m³
//	noise_db  40 / 55 / 70 / 85 / 100 dB
//	temp_c    heat stress above 30°C, saturating at 42°C
//	humidity  heat-amplifying above 60%, saturating at 95%
//	wind_kph  inverse: calm air scores high, ≥20 km/h scores 0
func FactorSubScore(f Factor, v float64) float64 {
	switch f {
	case FactorPM25:
		return piecewise(v, []point{{0, 0}, {12, 25}, {35.4, 50}, {55.4, 75}, {150.4, 100}})
	case FactorNoise:
		return piecewise(v, []point{{40, 0}, {55, 25}, {70, 50}, {85, 75}, {100, 100}})
	case FactorTemp:
		return piecewise(v, []point{{30, 0}, {32, 25}, {35, 50}, {38, 75}, {42, 100}})
	case FactorHumidity:
		return piecewise(v, []point{{60, 0}, {75, 40}, {85, 70}, {95, 100}})
	case FactorWind:
		return piecewise(v, []point{{0, 60}, {5, 40}, {10, 20}, {20, 0}})
	default:
		return 0
	}
}

type point struct{ x, y float64 }

// piecewise interpolates linearly between breakpoints and clamps to the
// curve's end values outside the breakpoint range.
func piecewise(v float64, points []point) float64 {
	if v <= points[0].x {
		return points[0].y
	}
	for i := 1; i < len(points); i++ {
		if v <= points[i].x {
			prev, next := points[i-1], points[i]
			frac := (v - prev.x) / (next.x - prev.x)
			return prev.y + frac*(next.y-prev.y)
		}
	}
	return points[len(points)-1].y
}
