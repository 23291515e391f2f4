// Package mysql persists cycle results, citizen reports, and alert
// validations in MySQL.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/airshedlabs/enviro-risk-service/internal/domain"
	"github.com/airshedlabs/enviro-risk-service/internal/reports"
)

// alertTriggeredAt is the score at which the readings_history row is flagged
// for downstream consumers. Kept at the High band boundary for compatibility
// with existing dashboard queries; the pipeline's own alerting threshold is
// configured separately.
const alertTriggeredAt = 50

// ErrNotFound aliases the reports sentinel so callers holding only this
// package can still match it.
var ErrNotFound = reports.ErrNotFound

// Store handles all MySQL operations. It implements pipeline.ResultSink and
// reports.Store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens a connection pool for the given DSN and verifies it.
func New(dsn string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Store{db: db, logger: logger}, nil
}

// NewWithDB wraps an existing handle; tests use it with sqlmock.
func NewWithDB(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// InitSchema creates the service tables if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS readings_history (
			reading_id VARCHAR(80) NOT NULL,
			location_id VARCHAR(64) NOT NULL,
			ts DATETIME NOT NULL,
			pm25 DOUBLE NULL,
			noise_db DOUBLE NULL,
			temp_c DOUBLE NULL,
			humidity_pct DOUBLE NULL,
			wind_kph DOUBLE NULL,
			wind_dir VARCHAR(3) NOT NULL DEFAULT '',
			lat DOUBLE NOT NULL DEFAULT 0,
			lon DOUBLE NOT NULL DEFAULT 0,
			stale_factors VARCHAR(128) NOT NULL DEFAULT '',
			risk_score INT NOT NULL,
			risk_level VARCHAR(16) NOT NULL,
			alert_triggered TINYINT(1) NOT NULL DEFAULT 0,
			PRIMARY KEY (reading_id),
			KEY idx_history_location_ts (location_id, ts)
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			alert_id VARCHAR(80) NOT NULL,
			location_id VARCHAR(64) NOT NULL,
			ts DATETIME NOT NULL,
			risk_score INT NOT NULL,
			risk_level VARCHAR(16) NOT NULL,
			message TEXT NOT NULL,
			recommended_action TEXT NOT NULL,
			PRIMARY KEY (alert_id),
			KEY idx_alerts_location_ts (location_id, ts)
		)`,
		`CREATE TABLE IF NOT EXISTS citizen_reports (
			id BIGINT NOT NULL AUTO_INCREMENT,
			ts DATETIME NOT NULL,
			location VARCHAR(128) NOT NULL,
			latitude DOUBLE NULL,
			longitude DOUBLE NULL,
			report_type VARCHAR(16) NOT NULL,
			severity INT NOT NULL,
			description TEXT,
			photo_path VARCHAR(255) NOT NULL DEFAULT '',
			citizen_name VARCHAR(128) NOT NULL DEFAULT '',
			citizen_contact VARCHAR(128) NOT NULL DEFAULT '',
			status VARCHAR(16) NOT NULL DEFAULT 'pending',
			validated_by_sensor TINYINT(1) NOT NULL DEFAULT 0,
			validation_ts DATETIME NULL,
			validation_notes TEXT,
			upvotes INT NOT NULL DEFAULT 0,
			downvotes INT NOT NULL DEFAULT 0,
			PRIMARY KEY (id),
			KEY idx_reports_status (status),
			KEY idx_reports_location_ts (location, ts)
		)`,
		`CREATE TABLE IF NOT EXISTS alert_validations (
			id BIGINT NOT NULL AUTO_INCREMENT,
			alert_id VARCHAR(80) NOT NULL,
			ts DATETIME NOT NULL,
			validation_type VARCHAR(16) NOT NULL,
			location VARCHAR(128) NOT NULL DEFAULT '',
			citizen_comment TEXT,
			PRIMARY KEY (id),
			KEY idx_alert_validations_alert (alert_id)
		)`,
	}

	for _, ddl := range tables {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	s.logger.Info("database schema ensured")
	return nil
}

// LoadCycle writes one cycle's readings and alerts in a single transaction.
// Replayed cycles are absorbed by the deterministic primary keys.
func (s *Store) LoadCycle(ctx context.Context, results []domain.CycleResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cycle tx: %w", err)
	}
	defer tx.Rollback()

	for _, r := range results {
		if err := insertReading(ctx, tx, r); err != nil {
			return err
		}
		if r.Alert != nil {
			if err := insertAlert(ctx, tx, *r.Alert); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cycle tx: %w", err)
	}
	return nil
}

func insertReading(ctx context.Context, tx *sql.Tx, r domain.CycleResult) error {
	stale := make([]string, len(r.Reading.Stale))
	for i, f := range r.Reading.Stale {
		stale[i] = string(f)
	}

	_, err := tx.ExecContext(ctx, `INSERT IGNORE INTO readings_history
		(reading_id, location_id, ts, pm25, noise_db, temp_c, humidity_pct, wind_kph, wind_dir, lat, lon, stale_factors, risk_score, risk_level, alert_triggered)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Reading.ID,
		r.Reading.LocationID,
		r.Reading.Timestamp,
		nullable(r.Reading.PM25),
		nullable(r.Reading.NoiseDB),
		nullable(r.Reading.TempC),
		nullable(r.Reading.HumidityPct),
		nullable(r.Reading.WindKph),
		r.Reading.WindDir,
		r.Reading.Geo.Lat,
		r.Reading.Geo.Lon,
		strings.Join(stale, ","),
		r.Assessment.Score,
		string(r.Assessment.Level),
		r.Assessment.Score >= alertTriggeredAt,
	)
	if err != nil {
		return fmt.Errorf("insert reading %s: %w", r.Reading.ID, err)
	}
	return nil
}

func insertAlert(ctx context.Context, tx *sql.Tx, alert domain.Alert) error {
	_, err := tx.ExecContext(ctx, `INSERT IGNORE INTO alerts
		(alert_id, location_id, ts, risk_score, risk_level, message, recommended_action)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		alert.ID,
		alert.LocationID,
		alert.Timestamp,
		alert.Risk.Score,
		string(alert.Risk.Level),
		alert.Message,
		alert.RecommendedAction,
	)
	if err != nil {
		return fmt.Errorf("insert alert %s: %w", alert.ID, err)
	}
	return nil
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

const reportColumns = `id, ts, location, latitude, longitude, report_type, severity, description,
	photo_path, citizen_name, citizen_contact, status, validated_by_sensor, validation_ts, validation_notes, upvotes, downvotes`

// InsertReport stores a new citizen report and returns its ID.
func (s *Store) InsertReport(ctx context.Context, report domain.CitizenReport) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO citizen_reports
		(ts, location, latitude, longitude, report_type, severity, description, photo_path, citizen_name, citizen_contact, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.Timestamp,
		report.Location,
		nullable(report.Latitude),
		nullable(report.Longitude),
		string(report.ReportType),
		report.Severity,
		report.Description,
		report.PhotoPath,
		report.CitizenName,
		report.CitizenContact,
		string(domain.StatusPending),
	)
	if err != nil {
		return 0, fmt.Errorf("insert report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("report insert id: %w", err)
	}
	return id, nil
}

// GetReport returns one report by ID, or ErrNotFound.
func (s *Store) GetReport(ctx context.Context, id int64) (domain.CitizenReport, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM citizen_reports WHERE id = ?`, id)
	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CitizenReport{}, fmt.Errorf("report %d: %w", id, ErrNotFound)
	}
	return report, err
}

// ListReports returns reports matching the filter, newest first.
func (s *Store) ListReports(ctx context.Context, filter reports.ListFilter) ([]domain.CitizenReport, error) {
	query := `SELECT ` + reportColumns + ` FROM citizen_reports WHERE 1=1`
	var args []any
	if filter.Location != "" {
		query += " AND location = ?"
		args = append(args, filter.Location)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Type != "" {
		query += " AND report_type = ?"
		args = append(args, string(filter.Type))
	}
	query += " ORDER BY ts DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []domain.CitizenReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, report)
	}
	return out, rows.Err()
}

// ListPendingReports returns every report still awaiting validation.
func (s *Store) ListPendingReports(ctx context.Context) ([]domain.CitizenReport, error) {
	return s.ListReports(ctx, reports.ListFilter{Status: domain.StatusPending})
}

// UpdateReportValidation persists the outcome of a validation attempt.
func (s *Store) UpdateReportValidation(ctx context.Context, update reports.ValidationUpdate) error {
	res, err := s.db.ExecContext(ctx, `UPDATE citizen_reports
		SET status = ?, validated_by_sensor = ?, validation_ts = ?, validation_notes = ?
		WHERE id = ?`,
		string(update.Status),
		update.ValidatedBySensor,
		update.ValidatedAt,
		update.Notes,
		update.ReportID,
	)
	if err != nil {
		return fmt.Errorf("update report validation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update report validation: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("report %d: %w", update.ReportID, ErrNotFound)
	}
	return nil
}

// AddVote increments one vote counter and returns the updated report.
func (s *Store) AddVote(ctx context.Context, id int64, upvote bool) (domain.CitizenReport, error) {
	column := "downvotes"
	if upvote {
		column = "upvotes"
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE citizen_reports SET `+column+` = `+column+` + 1 WHERE id = ?`, id)
	if err != nil {
		return domain.CitizenReport{}, fmt.Errorf("add vote: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.CitizenReport{}, fmt.Errorf("add vote: %w", err)
	}
	if affected == 0 {
		return domain.CitizenReport{}, fmt.Errorf("report %d: %w", id, ErrNotFound)
	}
	return s.GetReport(ctx, id)
}

// InsertAlertValidation stores a citizen verdict on an alert.
func (s *Store) InsertAlertValidation(ctx context.Context, v domain.AlertValidation) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO alert_validations
		(alert_id, ts, validation_type, location, citizen_comment)
		VALUES (?, ?, ?, ?, ?)`,
		v.AlertID,
		v.Timestamp,
		string(v.ValidationType),
		v.Location,
		v.CitizenComment,
	)
	if err != nil {
		return 0, fmt.Errorf("insert alert validation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("alert validation insert id: %w", err)
	}
	return id, nil
}

// ReportStatistics summarizes report counts, optionally for one location.
func (s *Store) ReportStatistics(ctx context.Context, location string) (domain.ReportStatistics, error) {
	stats := domain.ReportStatistics{
		ByType:   make(map[domain.ReportType]int),
		ByStatus: make(map[domain.ReportStatus]int),
	}

	query := `SELECT report_type, status, COUNT(*), SUM(ts >= NOW() - INTERVAL 24 HOUR)
		FROM citizen_reports`
	var args []any
	if location != "" {
		query += " WHERE location = ?"
		args = append(args, location)
	}
	query += " GROUP BY report_type, status"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.ReportStatistics{}, fmt.Errorf("report statistics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			reportType string
			status     string
			count      int
			recent     int
		)
		if err := rows.Scan(&reportType, &status, &count, &recent); err != nil {
			return domain.ReportStatistics{}, fmt.Errorf("scan statistics: %w", err)
		}
		stats.Total += count
		stats.Recent24 += recent
		stats.ByType[domain.ReportType(reportType)] += count
		stats.ByStatus[domain.ReportStatus(status)] += count
	}
	return stats, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (domain.CitizenReport, error) {
	var (
		report       domain.CitizenReport
		lat, lon     sql.NullFloat64
		reportType   string
		status       string
		validationTS sql.NullTime
		description  sql.NullString
		notes        sql.NullString
	)
	err := row.Scan(
		&report.ID,
		&report.Timestamp,
		&report.Location,
		&lat,
		&lon,
		&reportType,
		&report.Severity,
		&description,
		&report.PhotoPath,
		&report.CitizenName,
		&report.CitizenContact,
		&status,
		&report.ValidatedBySensor,
		&validationTS,
		&notes,
		&report.Upvotes,
		&report.Downvotes,
	)
	if err != nil {
		return domain.CitizenReport{}, err
	}

	if lat.Valid {
		report.Latitude = &lat.Float64
	}
	if lon.Valid {
		report.Longitude = &lon.Float64
	}
	if validationTS.Valid {
		report.ValidationTimestamp = &validationTS.Time
	}
	report.Description = description.String
	report.ValidationNotes = notes.String
	report.ReportType = domain.ReportType(reportType)
	report.Status = domain.ReportStatus(status)
	return report, nil
}
