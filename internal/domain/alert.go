package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Alert combines an assessment with its correlations into an actionable
// notification. Immutable once created; citizen acknowledgement is tracked
// separately in alert validations, never written back onto the alert.
type Alert struct {
	ID                string             `json:"id"`
	LocationID        string             `json:"location_id"`
	Timestamp         time.Time          `json:"timestamp"`
	Risk              RiskAssessment     `json:"risk"`
	Correlations      []CorrelationEvent `json:"correlations,omitempty"`
	Message           string             `json:"message"`
	RecommendedAction string             `json:"recommended_action"`
}

// GenerateAlert decides whether an assessment warrants an alert and builds it.
// Fires when the score reaches the Moderate band, or when a stagnation or
// compound-risk correlation is present — those are alert-worthy even at lower
// scores. Returns nil when no alert is warranted.
//
// Message and action come from a fixed template set keyed by level and the
// correlation types present, so identical inputs always produce an identical
// alert.
func GenerateAlert(assessment RiskAssessment, correlations []CorrelationEvent, cfg RiskConfig) *Alert {
	stagnation := findCorrelation(correlations, CorrelationStagnation)
	compound := findCorrelation(correlations, CorrelationCompoundRisk)

	if assessment.Score < cfg.ModerateAt && stagnation == nil && compound == nil {
		return nil
	}

	return &Alert{
		ID:                alertID(assessment),
		LocationID:        assessment.LocationID,
		Timestamp:         assessment.Timestamp,
		Risk:              assessment,
		Correlations:      correlations,
		Message:           alertMessage(assessment, correlations),
		RecommendedAction: recommendedAction(assessment.Level, stagnation != nil, compound != nil),
	}
}

func findCorrelation(events []CorrelationEvent, t CorrelationType) *CorrelationEvent {
	for i := range events {
		if events[i].Type == t {
			return &events[i]
		}
	}
	return nil
}

// alertMessage renders the level headline plus one clause per fired
// correlation, in rule order.
func alertMessage(assessment RiskAssessment, correlations []CorrelationEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s environmental risk at %s (score %d)",
		assessment.Level, assessment.LocationID, assessment.Score)

	for _, e := range correlations {
		switch e.Type {
		case CorrelationPollutionSource:
			fmt.Fprintf(&b, "; likely pollution source upwind to the %s", e.SourceBearing)
		case CorrelationHeatIndex:
			fmt.Fprintf(&b, "; feels like %.0f°C", e.HeatIndexC)
		case CorrelationStagnation:
			fmt.Fprintf(&b, "; stagnant air for %d readings is concentrating pollutants", e.CalmReadings)
		case CorrelationCompoundRisk:
			fmt.Fprintf(&b, "; %d hazard factors elevated simultaneously", len(e.ElevatedFactors))
		}
	}
	return b.String()
}

// recommendedAction selects the action template. Stagnation outranks the
// level default because its guidance (sealing the building) differs from the
// generic exposure advice; compound risk outranks the Low/Moderate defaults.
func recommendedAction(level RiskLevel, stagnation, compound bool) string {
	switch {
	case stagnation:
		return "Stay indoors with windows closed until winds pick up; pollutant levels will keep rising while the air is calm."
	case level == RiskCritical:
		return "Stay indoors. Close windows. Use air purification if available."
	case level == RiskHigh:
		return "Limit outdoor activities. Vulnerable groups should stay indoors."
	case compound:
		return "Limit time in the affected area; combined exposures add up."
	default:
		return "Monitor conditions. Reduce strenuous outdoor activities."
	}
}

// alertID produces a deterministic ID so replaying a cycle yields the same
// alert rather than a duplicate.
func alertID(assessment RiskAssessment) string {
	input := fmt.Sprintf("%s|%s|%d",
		assessment.LocationID, assessment.Timestamp.UTC().Format(time.RFC3339), assessment.Score)
	hash := sha256.Sum256([]byte(input))
	return "alert-" + hex.EncodeToString(hash[:8])
}
