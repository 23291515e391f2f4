package domain

// CycleResult bundles everything one reading produced in a processing cycle.
// Sinks persist it as a unit; Alert is nil when the cycle raised none.
type CycleResult struct {
	Reading      SensorReading      `json:"reading"`
	Assessment   RiskAssessment     `json:"assessment"`
	Correlations []CorrelationEvent `json:"correlations,omitempty"`
	Alert        *Alert             `json:"alert,omitempty"`
}
