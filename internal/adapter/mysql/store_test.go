package mysql

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airshedlabs/enviro-risk-service/internal/domain"
	"github.com/airshedlabs/enviro-risk-service/internal/reports"
)

var storeTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db, slog.Default()), mock
}

func criticalResult() domain.CycleResult {
	pm25 := 180.0
	wind := 3.0
	reading := domain.SensorReading{
		ID:         "stn-01-deadbeef",
		LocationID: "stn-01",
		Timestamp:  storeTime,
		PM25:       &pm25,
		WindKph:    &wind,
		WindDir:    "NE",
	}
	assessment := domain.RiskAssessment{
		LocationID: "stn-01",
		ReadingID:  reading.ID,
		Timestamp:  storeTime,
		Score:      86,
		Level:      domain.RiskCritical,
	}
	alert := domain.GenerateAlert(assessment, nil, domain.DefaultRiskConfig())
	return domain.CycleResult{Reading: reading, Assessment: assessment, Alert: alert}
}

func TestStore_LoadCycle(t *testing.T) {
	t.Run("reading and alert in one transaction", func(t *testing.T) {
		store, mock := newMockStore(t)
		result := criticalResult()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO readings_history")).
			WithArgs(
				"stn-01-deadbeef", "stn-01", storeTime,
				180.0, nil, nil, nil, 3.0,
				"NE", 0.0, 0.0, "", 86, "Critical", true,
			).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO alerts")).
			WithArgs(result.Alert.ID, "stn-01", storeTime, 86, "Critical", result.Alert.Message, result.Alert.RecommendedAction).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, store.LoadCycle(context.Background(), []domain.CycleResult{result}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no alert means no alert insert", func(t *testing.T) {
		store, mock := newMockStore(t)
		result := criticalResult()
		result.Alert = nil
		result.Assessment.Score = 10
		result.Assessment.Level = domain.RiskLow

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO readings_history")).
			WithArgs(
				"stn-01-deadbeef", "stn-01", storeTime,
				180.0, nil, nil, nil, 3.0,
				"NE", 0.0, 0.0, "", 10, "Low", false,
			).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, store.LoadCycle(context.Background(), []domain.CycleResult{result}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure rolls back", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO readings_history")).
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		err := store.LoadCycle(context.Background(), []domain.CycleResult{criticalResult()})
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty cycle is a no-op", func(t *testing.T) {
		store, mock := newMockStore(t)
		require.NoError(t, store.LoadCycle(context.Background(), nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_InsertReport(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO citizen_reports")).
		WithArgs(storeTime, "stn-01", nil, nil, "smoke", 2, "burning smell", "", "", "", "pending").
		WillReturnResult(sqlmock.NewResult(7, 1))

	id, err := store.InsertReport(context.Background(), domain.CitizenReport{
		Timestamp:   storeTime,
		Location:    "stn-01",
		ReportType:  domain.ReportSmoke,
		Severity:    2,
		Description: "burning smell",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func reportRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "ts", "location", "latitude", "longitude", "report_type", "severity", "description",
		"photo_path", "citizen_name", "citizen_contact", "status", "validated_by_sensor",
		"validation_ts", "validation_notes", "upvotes", "downvotes",
	})
}

func TestStore_GetReport(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM citizen_reports WHERE id = ?")).
			WithArgs(int64(7)).
			WillReturnRows(reportRows().AddRow(
				7, storeTime, "stn-01", 11.25, nil, "smoke", 2, "burning smell",
				"", "", "", "validated", true, storeTime, "corroborated", 3, 1,
			))

		report, err := store.GetReport(context.Background(), 7)

		require.NoError(t, err)
		assert.Equal(t, int64(7), report.ID)
		assert.Equal(t, domain.StatusValidated, report.Status)
		require.NotNil(t, report.Latitude)
		assert.InDelta(t, 11.25, *report.Latitude, 1e-9)
		assert.Nil(t, report.Longitude)
		assert.True(t, report.ValidatedBySensor)
		assert.Equal(t, 3, report.Upvotes)
	})

	t.Run("not found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM citizen_reports WHERE id = ?")).
			WithArgs(int64(99)).
			WillReturnRows(reportRows())

		_, err := store.GetReport(context.Background(), 99)

		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestStore_ListReports_Filtering(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM citizen_reports WHERE 1=1 AND location = \\? AND status = \\? ORDER BY ts DESC LIMIT \\?").
		WithArgs("stn-01", "pending", 10).
		WillReturnRows(reportRows().AddRow(
			1, storeTime, "stn-01", nil, nil, "noise", 3, nil,
			"", "", "", "pending", false, nil, nil, 0, 0,
		))

	out, err := store.ListReports(context.Background(), reports.ListFilter{
		Location: "stn-01",
		Status:   domain.StatusPending,
		Limit:    10,
	})

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, domain.ReportNoise, out[0].ReportType)
	assert.Empty(t, out[0].Description)
	assert.Nil(t, out[0].ValidationTimestamp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateReportValidation(t *testing.T) {
	t.Run("updates the row", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE citizen_reports")).
			WithArgs("validated", true, storeTime, "corroborated", int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.UpdateReportValidation(context.Background(), reports.ValidationUpdate{
			ReportID:          7,
			Status:            domain.StatusValidated,
			ValidatedBySensor: true,
			ValidatedAt:       storeTime,
			Notes:             "corroborated",
		})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing report", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE citizen_reports")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.UpdateReportValidation(context.Background(), reports.ValidationUpdate{ReportID: 99})

		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestStore_AddVote(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("SET upvotes = upvotes + 1")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM citizen_reports WHERE id = ?")).
		WithArgs(int64(7)).
		WillReturnRows(reportRows().AddRow(
			7, storeTime, "stn-01", nil, nil, "smoke", 2, nil,
			"", "", "", "pending", false, nil, nil, 4, 0,
		))

	report, err := store.AddVote(context.Background(), 7, true)

	require.NoError(t, err)
	assert.Equal(t, 4, report.Upvotes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InsertAlertValidation(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO alert_validations")).
		WithArgs("alert-deadbeef", storeTime, "confirm", "stn-01", "saw the smoke myself").
		WillReturnResult(sqlmock.NewResult(3, 1))

	id, err := store.InsertAlertValidation(context.Background(), domain.AlertValidation{
		AlertID:        "alert-deadbeef",
		Timestamp:      storeTime,
		ValidationType: domain.AlertConfirm,
		Location:       "stn-01",
		CitizenComment: "saw the smoke myself",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
}

func TestStore_ReportStatistics(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM citizen_reports")).
		WithArgs("stn-01").
		WillReturnRows(sqlmock.NewRows([]string{"report_type", "status", "count", "recent"}).
			AddRow("smoke", "validated", 4, 2).
			AddRow("smoke", "pending", 1, 1).
			AddRow("noise", "dismissed", 2, 0))

	stats, err := store.ReportStatistics(context.Background(), "stn-01")

	require.NoError(t, err)
	assert.Equal(t, 7, stats.Total)
	assert.Equal(t, 3, stats.Recent24)
	assert.Equal(t, 5, stats.ByType[domain.ReportSmoke])
	assert.Equal(t, 2, stats.ByType[domain.ReportNoise])
	assert.Equal(t, 4, stats.ByStatus[domain.StatusValidated])
}
