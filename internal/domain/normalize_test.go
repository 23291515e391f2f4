package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var normTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func historyOf(pm25 values3) []SensorReading {
	// Newest first, matching the history store contract.
	var readings []SensorReading
	for i, v := range pm25 {
		readings = append(readings, SensorReading{
			ID:         ReadingID("stn-01", normTime.Add(-time.Duration(i+1)*15*time.Minute)),
			LocationID: "stn-01",
			Timestamp:  normTime.Add(-time.Duration(i+1) * 15 * time.Minute),
			PM25:       fptr(v),
		})
	}
	return readings
}

type values3 []float64

func TestNormalize_SmoothsSpikes(t *testing.T) {
	sample := RawSample{LocationID: "stn-01", Timestamp: normTime, PM25: fptr(100)}
	history := historyOf(values3{10, 10, 10})

	reading := Normalize(sample, history, DefaultNormalizerConfig())

	require.NotNil(t, reading.PM25)
	// (100 + 10 + 10 + 10) / 4: a single spike cannot dominate.
	assert.InDelta(t, 32.5, *reading.PM25, 1e-9)
	assert.Empty(t, reading.Stale)
}

func TestNormalize_WindowBoundsHistory(t *testing.T) {
	sample := RawSample{LocationID: "stn-01", Timestamp: normTime, PM25: fptr(40)}
	history := historyOf(values3{20, 20, 20, 999, 999})

	reading := Normalize(sample, history, NormalizerConfig{SmoothingWindow: 4})

	require.NotNil(t, reading.PM25)
	assert.InDelta(t, 25.0, *reading.PM25, 1e-9) // only 3 history values enter the window
}

func TestNormalize_StaleFallback(t *testing.T) {
	t.Run("carries last known value", func(t *testing.T) {
		sample := RawSample{LocationID: "stn-01", Timestamp: normTime} // weather feed down
		history := historyOf(values3{42})

		reading := Normalize(sample, history, DefaultNormalizerConfig())

		require.NotNil(t, reading.PM25)
		assert.InDelta(t, 42.0, *reading.PM25, 1e-9)
		assert.True(t, reading.IsStale(FactorPM25))
	})

	t.Run("no history leaves factor absent", func(t *testing.T) {
		sample := RawSample{LocationID: "stn-01", Timestamp: normTime}

		reading := Normalize(sample, nil, DefaultNormalizerConfig())

		assert.Nil(t, reading.PM25)
		assert.Nil(t, reading.HumidityPct)
		assert.Empty(t, reading.Stale)
	})

	t.Run("stale history values do not re-enter smoothing", func(t *testing.T) {
		history := []SensorReading{
			{LocationID: "stn-01", PM25: fptr(42), Stale: []Factor{FactorPM25}},
			{LocationID: "stn-01", PM25: fptr(42)},
		}
		sample := RawSample{LocationID: "stn-01", Timestamp: normTime, PM25: fptr(10)}

		reading := Normalize(sample, history, DefaultNormalizerConfig())

		require.NotNil(t, reading.PM25)
		assert.InDelta(t, 26.0, *reading.PM25, 1e-9) // (10+42)/2, stale repeat skipped
	})
}

func TestNormalize_CarriesWindDirAndGeo(t *testing.T) {
	history := []SensorReading{{
		LocationID: "stn-01",
		WindDir:    "SSW",
		Geo:        Geo{Lat: 11.25, Lon: 75.78},
	}}
	sample := RawSample{LocationID: "stn-01", Timestamp: normTime}

	reading := Normalize(sample, history, DefaultNormalizerConfig())

	assert.Equal(t, "SSW", reading.WindDir)
	assert.Equal(t, Geo{Lat: 11.25, Lon: 75.78}, reading.Geo)
}

func TestParseRawSample(t *testing.T) {
	t.Run("valid sample", func(t *testing.T) {
		raw := RawEvent{Value: []byte(`{"location_id":"stn-07","timestamp":"2026-03-14T09:00:00Z","pm25":48.2,"noise_db":71,"temp_c":33.5,"humidity_pct":78,"wind_kph":9,"wind_dir":"ne"}`)}

		sample, err := ParseRawSample(raw)

		require.NoError(t, err)
		assert.Equal(t, "stn-07", sample.LocationID)
		assert.InDelta(t, 48.2, *sample.PM25, 1e-9)
		assert.Equal(t, "NE", sample.WindDir)
	})

	t.Run("degrees bucketed when compass absent", func(t *testing.T) {
		raw := RawEvent{Value: []byte(`{"location_id":"stn-07","timestamp":"2026-03-14T09:00:00Z","wind_deg":200}`)}

		sample, err := ParseRawSample(raw)

		require.NoError(t, err)
		assert.Equal(t, "SSW", sample.WindDir)
	})

	t.Run("invalid values dropped to absent", func(t *testing.T) {
		raw := RawEvent{Value: []byte(`{"location_id":"stn-07","timestamp":"2026-03-14T09:00:00Z","pm25":-3,"humidity_pct":140,"wind_kph":-1,"noise_db":55}`)}

		sample, err := ParseRawSample(raw)

		require.NoError(t, err)
		assert.Nil(t, sample.PM25)
		assert.Nil(t, sample.HumidityPct)
		assert.Nil(t, sample.WindKph)
		assert.NotNil(t, sample.NoiseDB)
	})

	t.Run("missing location rejected", func(t *testing.T) {
		raw := RawEvent{Value: []byte(`{"timestamp":"2026-03-14T09:00:00Z"}`)}

		_, err := ParseRawSample(raw)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "location_id")
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := ParseRawSample(RawEvent{Value: []byte("{not json")})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse raw sample")
	})

	t.Run("kafka timestamp backfills missing sample time", func(t *testing.T) {
		raw := RawEvent{
			Value:     []byte(`{"location_id":"stn-07"}`),
			Timestamp: normTime,
		}

		sample, err := ParseRawSample(raw)

		require.NoError(t, err)
		assert.Equal(t, normTime, sample.Timestamp)
	})
}

func TestReadingID(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, ReadingID("stn-01", normTime), ReadingID("stn-01", normTime))
	})

	t.Run("distinct per station and cycle", func(t *testing.T) {
		assert.NotEqual(t, ReadingID("stn-01", normTime), ReadingID("stn-02", normTime))
		assert.NotEqual(t, ReadingID("stn-01", normTime), ReadingID("stn-01", normTime.Add(time.Minute)))
	})

	t.Run("prefixed with the station", func(t *testing.T) {
		assert.Contains(t, ReadingID("stn-01", normTime), "stn-01-")
	})
}
