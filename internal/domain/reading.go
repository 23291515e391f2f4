package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Factor identifies one of the scored environmental measurements.
type Factor string

const (
	FactorPM25     Factor = "pm25"
	FactorNoise    Factor = "noise_db"
	FactorTemp     Factor = "temp_c"
	FactorHumidity Factor = "humidity_pct"
	FactorWind     Factor = "wind_kph"
)

// scoredFactors is the canonical evaluation order. Keeping it fixed makes
// scores, contributing-factor lists, and correlation payloads reproducible.
var scoredFactors = []Factor{FactorPM25, FactorNoise, FactorTemp, FactorHumidity, FactorWind}

// RawSample is the flat JSON structure published by the collector, one per
// station per ingestion interval. Pointer fields distinguish "absent" from
// zero; the weather feed drops fields when its upstream call fails.
type RawSample struct {
	LocationID  string    `json:"location_id"`
	Timestamp   time.Time `json:"timestamp"`
	Lat         float64   `json:"lat,omitempty"`
	Lon         float64   `json:"lon,omitempty"`
	PM25        *float64  `json:"pm25,omitempty"`
	NoiseDB     *float64  `json:"noise_db,omitempty"`
	TempC       *float64  `json:"temp_c,omitempty"`
	HumidityPct *float64  `json:"humidity_pct,omitempty"`
	WindKph     *float64  `json:"wind_kph,omitempty"`
	WindDir     string    `json:"wind_dir,omitempty"` // compass point, e.g. "SSW"
	WindDeg     *float64  `json:"wind_deg,omitempty"` // degrees, used when wind_dir is absent
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat,omitempty"`
	Lon float64 `json:"lon,omitempty"`
}

// IsZero reports whether no coordinates are set.
func (g Geo) IsZero() bool {
	return g.Lat == 0 && g.Lon == 0
}

// SensorReading is the canonical, smoothed per-station reading produced by the
// normalizer. Immutable after creation. Nil factor pointers mean the factor is
// absent for this cycle and must be excluded from scoring and correlation.
type SensorReading struct {
	ID          string    `json:"id"`
	LocationID  string    `json:"location_id"`
	Timestamp   time.Time `json:"timestamp"`
	Geo         Geo       `json:"geo,omitempty"`
	PM25        *float64  `json:"pm25,omitempty"`
	NoiseDB     *float64  `json:"noise_db,omitempty"`
	TempC       *float64  `json:"temp_c,omitempty"`
	HumidityPct *float64  `json:"humidity_pct,omitempty"`
	WindKph     *float64  `json:"wind_kph,omitempty"`
	WindDir     string    `json:"wind_dir,omitempty"`

	// Stale lists factors whose value was carried forward from an earlier
	// reading because the current sample did not include them.
	Stale []Factor `json:"stale,omitempty"`
}

// Value returns the reading's value for a factor and whether it is present.
func (r SensorReading) Value(f Factor) (float64, bool) {
	var p *float64
	switch f {
	case FactorPM25:
		p = r.PM25
	case FactorNoise:
		p = r.NoiseDB
	case FactorTemp:
		p = r.TempC
	case FactorHumidity:
		p = r.HumidityPct
	case FactorWind:
		p = r.WindKph
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// IsStale reports whether the factor's value was carried forward.
func (r SensorReading) IsStale(f Factor) bool {
	for _, s := range r.Stale {
		if s == f {
			return true
		}
	}
	return false
}

// ParseRawSample deserializes a RawEvent's value into a RawSample and applies
// the field validity policy: negative physical values and humidity outside
// 0–100 are dropped to absent rather than clamped or zeroed.
func ParseRawSample(raw RawEvent) (RawSample, error) {
	var sample RawSample
	if err := json.Unmarshal(raw.Value, &sample); err != nil {
		return RawSample{}, fmt.Errorf("parse raw sample: %w", err)
	}
	if sample.LocationID == "" {
		return RawSample{}, fmt.Errorf("parse raw sample: missing location_id")
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = raw.Timestamp
	}

	sample.PM25 = dropNegative(sample.PM25)
	sample.NoiseDB = dropNegative(sample.NoiseDB)
	sample.WindKph = dropNegative(sample.WindKph)
	if sample.HumidityPct != nil && (*sample.HumidityPct < 0 || *sample.HumidityPct > 100) {
		sample.HumidityPct = nil
	}
	sample.WindDir = NormalizeCompass(sample.WindDir, sample.WindDeg)
	return sample, nil
}

func dropNegative(p *float64) *float64 {
	if p != nil && *p < 0 {
		return nil
	}
	return p
}

// ReadingID produces a deterministic ID from a reading's key fields.
// Deterministic IDs keep downstream upserts idempotent: reprocessing the same
// cycle for the same station yields the same ID.
func ReadingID(locationID string, ts time.Time) string {
	input := fmt.Sprintf("%s|%s", locationID, ts.UTC().Format(time.RFC3339))
	hash := sha256.Sum256([]byte(input))
	short := hex.EncodeToString(hash[:8])
	if locationID == "" {
		return short
	}
	return locationID + "-" + short
}
