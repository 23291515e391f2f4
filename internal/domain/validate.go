package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/golang/geo/s2"
)

const earthRadiusKm = 6371.0

// ValidationConfig enumerates the auto-validator tunables.
type ValidationConfig struct {
	// TimeWindow bounds |report time − reading time| for a candidate.
	TimeWindow time.Duration
	// SpatialRadiusKm bounds the report-to-station distance when both sides
	// carry coordinates.
	SpatialRadiusKm float64
	// SeveritySubScoreStep scales the corroboration bar: a severity-s report
	// needs a factor sub-score of at least s×step, so a severity-5 report
	// requires near-Critical sensor evidence, not merely "elevated".
	SeveritySubScoreStep float64

	// Confidence term weights. The spatial weight is dropped and the rest
	// renormalized when either side lacks coordinates.
	MagnitudeWeight float64
	TemporalWeight  float64
	SpatialWeight   float64
}

// DefaultValidationConfig returns the production validation tunables.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		TimeWindow:           45 * time.Minute,
		SpatialRadiusKm:      10,
		SeveritySubScoreStep: 18,
		MagnitudeWeight:      0.5,
		TemporalWeight:       0.3,
		SpatialWeight:        0.2,
	}
}

// reportFactors maps a report type to the sensor factors that can corroborate
// it. "other" is checked against both pollution and noise since the observer
// did not classify the nuisance.
func reportFactors(t ReportType) []Factor {
	switch t {
	case ReportSmoke, ReportOdor:
		return []Factor{FactorPM25}
	case ReportNoise:
		return []Factor{FactorNoise}
	case ReportOther:
		return []Factor{FactorPM25, FactorNoise}
	default:
		return nil
	}
}

// ValidateReport matches a citizen report against candidate sensor readings
// and computes a validation confidence.
//
// A candidate corroborates the report when the sub-score of a corresponding
// factor meets the severity-proportional bar. Confidence blends magnitude
// consistency, temporal proximity, and (when coordinates are available)
// spatial proximity, and is the best candidate's blend. No corroboration —
// including no candidates at all — yields matched=false with confidence 0,
// which is inconclusive, never disproof.
//
// Returns ErrInvalidReport when the report violates the submission contract.
func ValidateReport(report CitizenReport, candidates []SensorReading, cfg ValidationConfig) (ValidationResult, error) {
	if !KnownReportType(report.ReportType) {
		return ValidationResult{}, fmt.Errorf("%w: unknown report type %q", ErrInvalidReport, report.ReportType)
	}
	if report.Severity < 1 || report.Severity > 5 {
		return ValidationResult{}, fmt.Errorf("%w: severity %d outside 1-5", ErrInvalidReport, report.Severity)
	}

	result := ValidationResult{
		ReportID:    report.ID,
		AttemptedAt: clock.Now(),
	}

	factors := reportFactors(report.ReportType)
	required := cfg.SeveritySubScoreStep * float64(report.Severity)

	if len(candidates) == 0 {
		result.Notes = "no sensor readings available for the report window; validation inconclusive"
		return result, nil
	}

	var notes []string
	for _, reading := range candidates {
		delta := reading.Timestamp.Sub(report.Timestamp)
		if delta < 0 {
			delta = -delta
		}
		if delta > cfg.TimeWindow {
			continue
		}

		distanceKm, hasDistance := reportDistanceKm(report, reading)
		if hasDistance && distanceKm > cfg.SpatialRadiusKm {
			continue
		}

		best := 0.0
		var bestFactor Factor
		var bestValue float64
		for _, f := range factors {
			v, ok := reading.Value(f)
			if !ok {
				continue
			}
			if sub := FactorSubScore(f, v); sub > best {
				best, bestFactor, bestValue = sub, f, v
			}
		}
		if best < required {
			continue
		}

		confidence := blendConfidence(best, required, delta, distanceKm, hasDistance, cfg)
		result.MatchingReadingIDs = append(result.MatchingReadingIDs, reading.ID)
		if confidence > result.Confidence {
			result.Confidence = confidence
		}
		notes = append(notes, fmt.Sprintf("%s corroborated by %s=%.1f (sub-score %.0f)",
			reading.ID, bestFactor, bestValue, best))
	}

	if len(result.MatchingReadingIDs) == 0 {
		result.Notes = "no corroborating readings within the validation window; validation inconclusive"
		return result, nil
	}

	result.Matched = true
	sort.Strings(notes)
	result.Notes = strings.Join(notes, "; ")
	return result, nil
}

// blendConfidence combines the three proximity terms. Magnitude consistency
// is the corroborating sub-score relative to the severity bar, capped at 1.
func blendConfidence(subScore, required float64, timeDelta time.Duration, distanceKm float64, hasDistance bool, cfg ValidationConfig) float64 {
	magnitude := 1.0
	if required > 0 {
		magnitude = math.Min(1, subScore/required)
	}
	temporal := 1 - timeDelta.Seconds()/cfg.TimeWindow.Seconds()

	weightSum := cfg.MagnitudeWeight + cfg.TemporalWeight
	blend := cfg.MagnitudeWeight*magnitude + cfg.TemporalWeight*temporal
	if hasDistance {
		spatial := 1 - distanceKm/cfg.SpatialRadiusKm
		blend += cfg.SpatialWeight * spatial
		weightSum += cfg.SpatialWeight
	}
	if weightSum == 0 {
		return 0
	}
	return math.Max(0, math.Min(1, blend/weightSum))
}

// reportDistanceKm returns the great-circle distance between the report and
// the reading's station, when both carry coordinates.
func reportDistanceKm(report CitizenReport, reading SensorReading) (float64, bool) {
	if report.Latitude == nil || report.Longitude == nil || reading.Geo.IsZero() {
		return 0, false
	}
	a := s2.LatLngFromDegrees(*report.Latitude, *report.Longitude)
	b := s2.LatLngFromDegrees(reading.Geo.Lat, reading.Geo.Lon)
	return a.Distance(b).Radians() * earthRadiusKm, true
}
