package domain

import "time"

// CorrelationType identifies one rule of the closed correlation rule set.
type CorrelationType string

const (
	CorrelationPollutionSource CorrelationType = "pollution_source_direction"
	CorrelationHeatIndex       CorrelationType = "heat_index"
	CorrelationStagnation      CorrelationType = "stagnation_event"
	CorrelationCompoundRisk    CorrelationType = "compound_risk"
)

// CorrelationEvent is one fired rule. Only the payload fields belonging to
// Type are populated; the rule set is a closed tagged union, not a plugin
// surface.
type CorrelationEvent struct {
	Type       CorrelationType `json:"type"`
	LocationID string          `json:"location_id"`
	ReadingID  string          `json:"reading_id"`
	Timestamp  time.Time       `json:"timestamp"`

	// pollution_source_direction
	SourceBearing string  `json:"source_bearing,omitempty"` // upwind compass point
	WindKph       float64 `json:"wind_kph,omitempty"`

	// heat_index
	HeatIndexC float64 `json:"heat_index_c,omitempty"`

	// stagnation_event
	CalmReadings int `json:"calm_readings,omitempty"`

	// compound_risk
	ElevatedFactors []Factor `json:"elevated_factors,omitempty"`
}

// CorrelationConfig enumerates the correlation rule thresholds.
type CorrelationConfig struct {
	PM25High         float64 // pollution source rule trigger, µg/m³
	PM25Elevated     float64 // stagnation and compound-risk trigger, µg/m³
	NoiseElevated    float64 // dB
	TempElevated     float64 // °C
	HumidityElevated float64 // %
	CalmWindKph      float64 // below this the air counts as calm
	StagnationRuns   int     // consecutive calm+elevated readings required
}

// DefaultCorrelationConfig returns the production rule thresholds.
func DefaultCorrelationConfig() CorrelationConfig {
	return CorrelationConfig{
		PM25High:         55,
		PM25Elevated:     35,
		NoiseElevated:    75,
		TempElevated:     35,
		HumidityElevated: 85,
		CalmWindKph:      5,
		StagnationRuns:   3,
	}
}

// Detect evaluates every correlation rule against a reading. history is the
// station's prior readings, newest first; only the stagnation rule consults
// it. Rules are independent and evaluated in a fixed order so the returned
// slice is reproducible. A rule whose input factor is absent does not fire.
func Detect(reading SensorReading, history []SensorReading, cfg CorrelationConfig) []CorrelationEvent {
	var events []CorrelationEvent

	if e, ok := detectPollutionSource(reading, cfg); ok {
		events = append(events, e)
	}
	if e, ok := detectHeatIndex(reading); ok {
		events = append(events, e)
	}
	if e, ok := detectStagnation(reading, history, cfg); ok {
		events = append(events, e)
	}
	if e, ok := detectCompoundRisk(reading, cfg); ok {
		events = append(events, e)
	}
	return events
}

// detectPollutionSource fires on high PM2.5 when a wind direction is known.
// The feed reports the bearing the wind blows toward, so the likely source
// sits on the reciprocal bearing, upwind of the station.
func detectPollutionSource(reading SensorReading, cfg CorrelationConfig) (CorrelationEvent, bool) {
	pm25, ok := reading.Value(FactorPM25)
	if !ok || pm25 <= cfg.PM25High || reading.WindDir == "" {
		return CorrelationEvent{}, false
	}
	e := newEvent(CorrelationPollutionSource, reading)
	e.SourceBearing = OppositeCompass(reading.WindDir)
	if wind, ok := reading.Value(FactorWind); ok {
		e.WindKph = wind
	}
	return e, true
}

// detectHeatIndex computes the apparent temperature whenever both inputs are
// present. Informational: it fires regardless of the resulting value.
func detectHeatIndex(reading SensorReading) (CorrelationEvent, bool) {
	temp, okT := reading.Value(FactorTemp)
	humidity, okH := reading.Value(FactorHumidity)
	if !okT || !okH {
		return CorrelationEvent{}, false
	}
	e := newEvent(CorrelationHeatIndex, reading)
	e.HeatIndexC = HeatIndexCelsius(temp, humidity)
	return e, true
}

// detectStagnation fires when elevated PM2.5 coincides with calm wind for at
// least StagnationRuns consecutive readings ending at the current one.
// Pollutant accumulation needs sustained calm; a single low-wind sample never
// fires this rule.
func detectStagnation(reading SensorReading, history []SensorReading, cfg CorrelationConfig) (CorrelationEvent, bool) {
	if !isStagnant(reading, cfg) {
		return CorrelationEvent{}, false
	}
	run := 1
	for _, prev := range history {
		if !isStagnant(prev, cfg) {
			break
		}
		run++
	}
	if run < cfg.StagnationRuns {
		return CorrelationEvent{}, false
	}
	e := newEvent(CorrelationStagnation, reading)
	e.CalmReadings = run
	if wind, ok := reading.Value(FactorWind); ok {
		e.WindKph = wind
	}
	return e, true
}

func isStagnant(reading SensorReading, cfg CorrelationConfig) bool {
	pm25, okP := reading.Value(FactorPM25)
	wind, okW := reading.Value(FactorWind)
	return okP && okW && pm25 > cfg.PM25Elevated && wind < cfg.CalmWindKph
}

// detectCompoundRisk fires when two or more factors independently exceed their
// elevated thresholds in the same reading. Wind is excluded: calm air is an
// amplifier, not a hazard on its own, and is covered by the stagnation rule.
func detectCompoundRisk(reading SensorReading, cfg CorrelationConfig) (CorrelationEvent, bool) {
	var elevated []Factor
	checks := []struct {
		factor    Factor
		threshold float64
	}{
		{FactorPM25, cfg.PM25Elevated},
		{FactorNoise, cfg.NoiseElevated},
		{FactorTemp, cfg.TempElevated},
		{FactorHumidity, cfg.HumidityElevated},
	}
	for _, c := range checks {
		if v, ok := reading.Value(c.factor); ok && v > c.threshold {
			elevated = append(elevated, c.factor)
		}
	}
	if len(elevated) < 2 {
		return CorrelationEvent{}, false
	}
	e := newEvent(CorrelationCompoundRisk, reading)
	e.ElevatedFactors = elevated
	return e, true
}

func newEvent(t CorrelationType, reading SensorReading) CorrelationEvent {
	return CorrelationEvent{
		Type:       t,
		LocationID: reading.LocationID,
		ReadingID:  reading.ID,
		Timestamp:  reading.Timestamp,
	}
}
