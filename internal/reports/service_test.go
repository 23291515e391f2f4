package reports_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airshedlabs/enviro-risk-service/internal/domain"
	"github.com/airshedlabs/enviro-risk-service/internal/history"
	"github.com/airshedlabs/enviro-risk-service/internal/observability"
	"github.com/airshedlabs/enviro-risk-service/internal/reports"
)

var testTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// --- fakes ---

type fakeStore struct {
	nextID      int64
	reports     map[int64]domain.CitizenReport
	alertVotes  []domain.AlertValidation
	insertErr   error
	updateCalls []reports.ValidationUpdate
}

func newFakeStore() *fakeStore {
	return &fakeStore{reports: make(map[int64]domain.CitizenReport)}
}

func (f *fakeStore) InsertReport(_ context.Context, report domain.CitizenReport) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.nextID++
	report.ID = f.nextID
	f.reports[report.ID] = report
	return report.ID, nil
}

func (f *fakeStore) GetReport(_ context.Context, id int64) (domain.CitizenReport, error) {
	r, ok := f.reports[id]
	if !ok {
		return domain.CitizenReport{}, fmt.Errorf("report %d not found", id)
	}
	return r, nil
}

func (f *fakeStore) ListReports(_ context.Context, filter reports.ListFilter) ([]domain.CitizenReport, error) {
	var out []domain.CitizenReport
	for _, r := range f.reports {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Location != "" && r.Location != filter.Location {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) ListPendingReports(ctx context.Context) ([]domain.CitizenReport, error) {
	return f.ListReports(ctx, reports.ListFilter{Status: domain.StatusPending})
}

func (f *fakeStore) UpdateReportValidation(_ context.Context, update reports.ValidationUpdate) error {
	f.updateCalls = append(f.updateCalls, update)
	r := f.reports[update.ReportID]
	r.Status = update.Status
	r.ValidatedBySensor = update.ValidatedBySensor
	r.ValidationTimestamp = &update.ValidatedAt
	r.ValidationNotes = update.Notes
	f.reports[update.ReportID] = r
	return nil
}

func (f *fakeStore) AddVote(_ context.Context, id int64, upvote bool) (domain.CitizenReport, error) {
	r, ok := f.reports[id]
	if !ok {
		return domain.CitizenReport{}, fmt.Errorf("report %d not found", id)
	}
	if upvote {
		r.Upvotes++
	} else {
		r.Downvotes++
	}
	f.reports[id] = r
	return r, nil
}

func (f *fakeStore) InsertAlertValidation(_ context.Context, v domain.AlertValidation) (int64, error) {
	v.ID = int64(len(f.alertVotes) + 1)
	f.alertVotes = append(f.alertVotes, v)
	return v.ID, nil
}

func (f *fakeStore) ReportStatistics(_ context.Context, location string) (domain.ReportStatistics, error) {
	stats := domain.ReportStatistics{
		ByType:   make(map[domain.ReportType]int),
		ByStatus: make(map[domain.ReportStatus]int),
	}
	for _, r := range f.reports {
		if location != "" && r.Location != location {
			continue
		}
		stats.Total++
		stats.ByType[r.ReportType]++
		stats.ByStatus[r.Status]++
	}
	return stats, nil
}

type fakeGeocoder struct {
	result domain.GeocodingResult
	err    error
	calls  int
}

func (f *fakeGeocoder) ForwardGeocode(_ context.Context, _ string) (domain.GeocodingResult, error) {
	f.calls++
	return f.result, f.err
}

// --- helpers ---

func newService(t *testing.T, store *fakeStore, hist *history.Store, geocoder domain.Geocoder) *reports.Service {
	t.Helper()
	svc := reports.New(store, hist, geocoder, slog.Default(), observability.NewMetricsForTesting(),
		domain.DefaultValidationConfig(), domain.DefaultCredibilityConfig())
	svc.SetClock(clockwork.NewFakeClockAt(testTime.Add(10 * time.Minute)))
	return svc
}

func heavySmogReading(loc string, at time.Time) domain.SensorReading {
	return domain.SensorReading{
		ID:         domain.ReadingID(loc, at),
		LocationID: loc,
		Timestamp:  at,
		PM25:       floatPtr(150),
	}
}

func floatPtr(v float64) *float64 { return &v }

func smokeReport() domain.CitizenReport {
	return domain.CitizenReport{
		Timestamp:  testTime,
		Location:   "stn-01",
		ReportType: domain.ReportSmoke,
		Severity:   2,
	}
}

// --- tests ---

func TestService_Submit_AutoValidates(t *testing.T) {
	store := newFakeStore()
	hist := history.New(16)
	hist.Append(heavySmogReading("stn-01", testTime.Add(-5*time.Minute)))
	svc := newService(t, store, hist, nil)

	report, err := svc.Submit(context.Background(), smokeReport())

	require.NoError(t, err)
	assert.Equal(t, int64(1), report.ID)
	assert.Equal(t, domain.StatusValidated, report.Status)
	assert.True(t, report.ValidatedBySensor)
	assert.Contains(t, report.ValidationNotes, "pm25")
}

func TestService_Submit_NoCorroborationStaysPending(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store, history.New(16), nil)

	report, err := svc.Submit(context.Background(), smokeReport())

	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, report.Status)
	assert.False(t, report.ValidatedBySensor)
	assert.Contains(t, report.ValidationNotes, "inconclusive")
}

func TestService_Submit_RejectsInvalidInput(t *testing.T) {
	svc := newService(t, newFakeStore(), history.New(16), nil)

	t.Run("unknown type", func(t *testing.T) {
		bad := smokeReport()
		bad.ReportType = "flood"
		_, err := svc.Submit(context.Background(), bad)
		assert.True(t, errors.Is(err, domain.ErrInvalidReport))
	})

	t.Run("severity out of range", func(t *testing.T) {
		bad := smokeReport()
		bad.Severity = 9
		_, err := svc.Submit(context.Background(), bad)
		assert.True(t, errors.Is(err, domain.ErrInvalidReport))
	})

	t.Run("missing location", func(t *testing.T) {
		bad := smokeReport()
		bad.Location = ""
		_, err := svc.Submit(context.Background(), bad)
		assert.True(t, errors.Is(err, domain.ErrInvalidReport))
	})
}

func TestService_Submit_GeocodesMissingCoordinates(t *testing.T) {
	geocoder := &fakeGeocoder{result: domain.GeocodingResult{Lat: 11.25, Lon: 75.78}}
	store := newFakeStore()
	svc := newService(t, store, history.New(16), geocoder)

	report, err := svc.Submit(context.Background(), smokeReport())

	require.NoError(t, err)
	assert.Equal(t, 1, geocoder.calls)
	stored := store.reports[report.ID]
	require.NotNil(t, stored.Latitude)
	assert.InDelta(t, 11.25, *stored.Latitude, 1e-9)
}

func TestService_Submit_GeocoderSkippedWhenCoordinatesPresent(t *testing.T) {
	geocoder := &fakeGeocoder{}
	svc := newService(t, newFakeStore(), history.New(16), geocoder)

	report := smokeReport()
	report.Latitude, report.Longitude = floatPtr(11.0), floatPtr(75.0)
	_, err := svc.Submit(context.Background(), report)

	require.NoError(t, err)
	assert.Zero(t, geocoder.calls)
}

func TestService_Submit_GeocoderFailureIsNonFatal(t *testing.T) {
	geocoder := &fakeGeocoder{err: errors.New("mapbox unreachable")}
	store := newFakeStore()
	svc := newService(t, store, history.New(16), geocoder)

	report, err := svc.Submit(context.Background(), smokeReport())

	require.NoError(t, err)
	assert.Nil(t, store.reports[report.ID].Latitude)
}

func TestService_Vote_DismissesStaleDownvotedReport(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store, history.New(16), nil)

	report, err := svc.Submit(context.Background(), smokeReport())
	require.NoError(t, err)

	// Move past the validation window, then pile on downvotes.
	svc.SetClock(clockwork.NewFakeClockAt(testTime.Add(25 * time.Hour)))
	for i := 0; i < 4; i++ {
		_, err = svc.Vote(context.Background(), report.ID, false)
		require.NoError(t, err)
	}
	updated, err := svc.Vote(context.Background(), report.ID, false)

	require.NoError(t, err)
	assert.Equal(t, 5, updated.Downvotes)
	assert.Equal(t, domain.StatusDismissed, updated.Status)
}

func TestService_Vote_UpvotesNeverDismiss(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store, history.New(16), nil)

	report, err := svc.Submit(context.Background(), smokeReport())
	require.NoError(t, err)

	svc.SetClock(clockwork.NewFakeClockAt(testTime.Add(25 * time.Hour)))
	updated, err := svc.Vote(context.Background(), report.ID, true)

	require.NoError(t, err)
	assert.Equal(t, 1, updated.Upvotes)
	assert.Equal(t, domain.StatusPending, updated.Status)
}

func TestService_SubmitAlertValidation(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store, history.New(16), nil)

	t.Run("valid verdict stored with ID and timestamp", func(t *testing.T) {
		v, err := svc.SubmitAlertValidation(context.Background(), domain.AlertValidation{
			AlertID:        "alert-abc123",
			ValidationType: domain.AlertConfirm,
			Location:       "stn-01",
		})

		require.NoError(t, err)
		assert.Equal(t, int64(1), v.ID)
		assert.Equal(t, testTime.Add(10*time.Minute), v.Timestamp)
	})

	t.Run("unknown verdict rejected", func(t *testing.T) {
		_, err := svc.SubmitAlertValidation(context.Background(), domain.AlertValidation{
			AlertID:        "alert-abc123",
			ValidationType: "maybe",
		})
		assert.True(t, errors.Is(err, domain.ErrInvalidReport))
	})

	t.Run("missing alert ID rejected", func(t *testing.T) {
		_, err := svc.SubmitAlertValidation(context.Background(), domain.AlertValidation{
			ValidationType: domain.AlertDeny,
		})
		assert.True(t, errors.Is(err, domain.ErrInvalidReport))
	})
}

func TestService_RevalidatePending(t *testing.T) {
	store := newFakeStore()
	hist := history.New(16)
	svc := newService(t, store, hist, nil)

	// Submitted before any sensor evidence exists: stays pending.
	report, err := svc.Submit(context.Background(), smokeReport())
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, report.Status)

	// Corroborating reading arrives later.
	hist.Append(heavySmogReading("stn-01", testTime.Add(10*time.Minute)))

	validated, err := svc.RevalidatePending(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, validated)
	assert.Equal(t, domain.StatusValidated, store.reports[report.ID].Status)
}

func TestService_Statistics(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store, history.New(16), nil)

	_, err := svc.Submit(context.Background(), smokeReport())
	require.NoError(t, err)
	noise := smokeReport()
	noise.ReportType = domain.ReportNoise
	_, err = svc.Submit(context.Background(), noise)
	require.NoError(t, err)

	stats, err := svc.Statistics(context.Background(), "stn-01")

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByType[domain.ReportSmoke])
	assert.Equal(t, 1, stats.ByType[domain.ReportNoise])
}
