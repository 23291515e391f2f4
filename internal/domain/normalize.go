package domain

// DefaultSmoothingWindow is the default number of readings averaged by the
// normalizer.
const DefaultSmoothingWindow = 4

// NormalizerConfig holds the tunables of the reading normalizer.
type NormalizerConfig struct {
	// SmoothingWindow is the number of readings (current sample plus most
	// recent history) averaged to damp single-sample sensor spikes.
	SmoothingWindow int
}

// DefaultNormalizerConfig returns the normalizer defaults.
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{SmoothingWindow: DefaultSmoothingWindow}
}

// Normalize converts a raw sample into the canonical SensorReading for its
// station. history is the station's recent readings, newest first.
//
// Present factors are smoothed with a bounded moving average over the window
// so one erratic spike cannot dominate the risk score on its own. Factors the
// sample lacks are carried forward from the most recent reading that had them
// and flagged stale; with no prior value the factor stays absent. Absence is
// never replaced with zero.
func Normalize(sample RawSample, history []SensorReading, cfg NormalizerConfig) SensorReading {
	window := cfg.SmoothingWindow
	if window < 1 {
		window = 1
	}

	reading := SensorReading{
		ID:         ReadingID(sample.LocationID, sample.Timestamp),
		LocationID: sample.LocationID,
		Timestamp:  sample.Timestamp,
		Geo:        Geo{Lat: sample.Lat, Lon: sample.Lon},
		WindDir:    sample.WindDir,
	}
	if reading.Geo.IsZero() && len(history) > 0 {
		reading.Geo = history[0].Geo
	}
	if reading.WindDir == "" {
		reading.WindDir = lastKnownDir(history)
	}

	assign := func(f Factor, raw *float64) *float64 {
		if raw != nil {
			v := smooth(*raw, f, history, window)
			return &v
		}
		if v, ok := lastKnown(f, history); ok {
			reading.Stale = append(reading.Stale, f)
			return &v
		}
		return nil
	}

	// Fixed factor order keeps the Stale slice deterministic.
	reading.PM25 = assign(FactorPM25, sample.PM25)
	reading.NoiseDB = assign(FactorNoise, sample.NoiseDB)
	reading.TempC = assign(FactorTemp, sample.TempC)
	reading.HumidityPct = assign(FactorHumidity, sample.HumidityPct)
	reading.WindKph = assign(FactorWind, sample.WindKph)

	return reading
}

// smooth averages the current value with up to window-1 of the most recent
// history values for the factor. Stale history values are skipped: they are
// repeats of older measurements and would double-count.
func smooth(current float64, f Factor, history []SensorReading, window int) float64 {
	sum := current
	n := 1
	for _, prev := range history {
		if n >= window {
			break
		}
		if prev.IsStale(f) {
			continue
		}
		if v, ok := prev.Value(f); ok {
			sum += v
			n++
		}
	}
	return sum / float64(n)
}

// lastKnown returns the most recent value of a factor from history.
func lastKnown(f Factor, history []SensorReading) (float64, bool) {
	for _, prev := range history {
		if v, ok := prev.Value(f); ok {
			return v, true
		}
	}
	return 0, false
}

func lastKnownDir(history []SensorReading) string {
	for _, prev := range history {
		if prev.WindDir != "" {
			return prev.WindDir
		}
	}
	return ""
}
