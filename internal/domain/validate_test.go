package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reportTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func smokeReport(severity int) CitizenReport {
	return CitizenReport{
		ID:         1,
		Timestamp:  reportTime,
		Location:   "stn-01",
		ReportType: ReportSmoke,
		Severity:   severity,
	}
}

func candidateReading(pm25 float64, at time.Time) SensorReading {
	return SensorReading{
		ID:         ReadingID("stn-01", at),
		LocationID: "stn-01",
		Timestamp:  at,
		PM25:       fptr(pm25),
	}
}

func TestValidateReport_InputContract(t *testing.T) {
	cfg := DefaultValidationConfig()

	t.Run("unknown type", func(t *testing.T) {
		report := smokeReport(3)
		report.ReportType = "earthquake"

		_, err := ValidateReport(report, nil, cfg)

		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidReport))
	})

	t.Run("severity out of range", func(t *testing.T) {
		for _, sev := range []int{0, 6, -1} {
			_, err := ValidateReport(smokeReport(sev), nil, cfg)
			require.Error(t, err, "severity %d", sev)
			assert.True(t, errors.Is(err, ErrInvalidReport))
		}
	})
}

func TestValidateReport_Corroboration(t *testing.T) {
	cfg := DefaultValidationConfig()

	t.Run("severity 2 smoke corroborated by heavy pm25", func(t *testing.T) {
		candidates := []SensorReading{candidateReading(150, reportTime.Add(5*time.Minute))}

		result, err := ValidateReport(smokeReport(2), candidates, cfg)

		require.NoError(t, err)
		assert.True(t, result.Matched)
		assert.Greater(t, result.Confidence, 0.9)
		assert.InDelta(t, 0.958, result.Confidence, 0.01)
		require.Len(t, result.MatchingReadingIDs, 1)
		assert.Contains(t, result.Notes, "pm25")
	})

	t.Run("severity 5 needs near-critical evidence", func(t *testing.T) {
		// pm25 40 sub-scores ~56, well under the severity-5 bar of 90.
		candidates := []SensorReading{candidateReading(40, reportTime)}

		result, err := ValidateReport(smokeReport(5), candidates, cfg)

		require.NoError(t, err)
		assert.False(t, result.Matched)
		assert.Zero(t, result.Confidence)
		assert.Contains(t, result.Notes, "inconclusive")
	})

	t.Run("noise report ignores pm25", func(t *testing.T) {
		report := smokeReport(2)
		report.ReportType = ReportNoise
		candidates := []SensorReading{candidateReading(300, reportTime)}

		result, err := ValidateReport(report, candidates, cfg)

		require.NoError(t, err)
		assert.False(t, result.Matched)
	})

	t.Run("other report corroborated by either factor", func(t *testing.T) {
		report := smokeReport(2)
		report.ReportType = ReportOther
		loud := candidateReading(1, reportTime)
		loud.NoiseDB = fptr(95)

		result, err := ValidateReport(report, []SensorReading{loud}, cfg)

		require.NoError(t, err)
		assert.True(t, result.Matched)
		assert.Contains(t, result.Notes, "noise_db")
	})

	t.Run("best of several candidates wins", func(t *testing.T) {
		candidates := []SensorReading{
			candidateReading(60, reportTime.Add(40*time.Minute)), // weak, late
			candidateReading(150, reportTime.Add(2*time.Minute)), // strong, fresh
		}

		result, err := ValidateReport(smokeReport(2), candidates, cfg)

		require.NoError(t, err)
		assert.True(t, result.Matched)
		assert.Len(t, result.MatchingReadingIDs, 2)
		assert.Greater(t, result.Confidence, 0.9)
	})
}

func TestValidateReport_TimeWindow(t *testing.T) {
	cfg := DefaultValidationConfig()

	t.Run("readings outside the window are ignored", func(t *testing.T) {
		candidates := []SensorReading{candidateReading(180, reportTime.Add(-time.Hour))}

		result, err := ValidateReport(smokeReport(2), candidates, cfg)

		require.NoError(t, err)
		assert.False(t, result.Matched)
	})

	t.Run("window is symmetric around the report", func(t *testing.T) {
		candidates := []SensorReading{candidateReading(180, reportTime.Add(-30*time.Minute))}

		result, err := ValidateReport(smokeReport(2), candidates, cfg)

		require.NoError(t, err)
		assert.True(t, result.Matched)
	})
}

func TestValidateReport_SpatialProximity(t *testing.T) {
	cfg := DefaultValidationConfig()
	report := smokeReport(2)
	report.Latitude = fptr(11.25)
	report.Longitude = fptr(75.78)

	t.Run("distant station excluded", func(t *testing.T) {
		reading := candidateReading(180, reportTime)
		reading.Geo = Geo{Lat: 11.43, Lon: 75.78} // ~20 km north

		result, err := ValidateReport(report, []SensorReading{reading}, cfg)

		require.NoError(t, err)
		assert.False(t, result.Matched)
	})

	t.Run("nearby station boosts confidence", func(t *testing.T) {
		reading := candidateReading(180, reportTime)
		reading.Geo = Geo{Lat: 11.26, Lon: 75.78} // ~1.1 km north

		result, err := ValidateReport(report, []SensorReading{reading}, cfg)

		require.NoError(t, err)
		assert.True(t, result.Matched)
		assert.InDelta(t, 0.978, result.Confidence, 0.01)
	})

	t.Run("missing station coordinates drops the spatial term", func(t *testing.T) {
		reading := candidateReading(180, reportTime)

		result, err := ValidateReport(report, []SensorReading{reading}, cfg)

		require.NoError(t, err)
		assert.True(t, result.Matched)
		assert.InDelta(t, 1.0, result.Confidence, 1e-9) // magnitude and temporal both perfect
	})
}

func TestValidateReport_NoCandidates(t *testing.T) {
	result, err := ValidateReport(smokeReport(3), nil, DefaultValidationConfig())

	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Zero(t, result.Confidence)
	assert.Contains(t, result.Notes, "no sensor readings available")
	assert.Equal(t, int64(1), result.ReportID)
}
