// Package reports manages community-submitted pollution reports: submission,
// geocoding, sensor auto-validation, voting, and participation statistics.
package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/airshedlabs/enviro-risk-service/internal/domain"
	"github.com/airshedlabs/enviro-risk-service/internal/observability"
)

// ErrNotFound marks lookups for reports that do not exist. Store
// implementations wrap it so transport layers can map it to a 404.
var ErrNotFound = errors.New("not found")

// Store persists citizen reports and alert validations.
type Store interface {
	InsertReport(ctx context.Context, report domain.CitizenReport) (int64, error)
	GetReport(ctx context.Context, id int64) (domain.CitizenReport, error)
	ListReports(ctx context.Context, filter ListFilter) ([]domain.CitizenReport, error)
	ListPendingReports(ctx context.Context) ([]domain.CitizenReport, error)
	UpdateReportValidation(ctx context.Context, update ValidationUpdate) error
	AddVote(ctx context.Context, id int64, upvote bool) (domain.CitizenReport, error)
	InsertAlertValidation(ctx context.Context, v domain.AlertValidation) (int64, error)
	ReportStatistics(ctx context.Context, location string) (domain.ReportStatistics, error)
}

// ListFilter narrows a report listing. Zero values mean "any".
type ListFilter struct {
	Location string
	Status   domain.ReportStatus
	Type     domain.ReportType
	Limit    int
}

// ValidationUpdate is the persisted outcome of one validation attempt.
type ValidationUpdate struct {
	ReportID          int64
	Status            domain.ReportStatus
	ValidatedBySensor bool
	ValidatedAt       time.Time
	Notes             string
}

// ReadingProvider exposes the sensor history the validator matches against.
// *history.Store satisfies it.
type ReadingProvider interface {
	Window(locationID string, from, to time.Time) []domain.SensorReading
	Locations() []string
}

// Service wires report persistence, the sensor history, and the optional
// geocoder together.
type Service struct {
	store       Store
	readings    ReadingProvider
	geocoder    domain.Geocoder // nil when geocoding is disabled
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	validation  domain.ValidationConfig
	credibility domain.CredibilityConfig
}

// New creates a report service. geocoder may be nil.
func New(store Store, readings ReadingProvider, geocoder domain.Geocoder, logger *slog.Logger, metrics *observability.Metrics, validation domain.ValidationConfig, credibility domain.CredibilityConfig) *Service {
	return &Service{
		store:       store,
		readings:    readings,
		geocoder:    geocoder,
		logger:      logger,
		metrics:     metrics,
		clock:       clockwork.NewRealClock(),
		validation:  validation,
		credibility: credibility,
	}
}

// SetClock swaps the service clock; tests use a fake.
func (s *Service) SetClock(c clockwork.Clock) {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	s.clock = c
}

// Submit stores a new citizen report and immediately attempts sensor
// validation against the current history window. Geocoding and validation are
// both best-effort: their failure leaves the report pending, never rejected.
func (s *Service) Submit(ctx context.Context, report domain.CitizenReport) (domain.CitizenReport, error) {
	if !domain.KnownReportType(report.ReportType) {
		return domain.CitizenReport{}, fmt.Errorf("%w: unknown report type %q", domain.ErrInvalidReport, report.ReportType)
	}
	if report.Severity < 1 || report.Severity > 5 {
		return domain.CitizenReport{}, fmt.Errorf("%w: severity %d outside 1-5", domain.ErrInvalidReport, report.Severity)
	}
	if report.Location == "" {
		return domain.CitizenReport{}, fmt.Errorf("%w: location is required", domain.ErrInvalidReport)
	}

	if report.Timestamp.IsZero() {
		report.Timestamp = s.clock.Now()
	}
	report.Status = domain.StatusPending
	report.Upvotes, report.Downvotes = 0, 0

	s.maybeGeocode(ctx, &report)

	id, err := s.store.InsertReport(ctx, report)
	if err != nil {
		return domain.CitizenReport{}, fmt.Errorf("insert report: %w", err)
	}
	report.ID = id

	validated, err := s.validate(ctx, report)
	if err != nil {
		// The report is already durable; a validation hiccup leaves it pending.
		s.logger.Warn("auto-validation failed", "report_id", id, "error", err)
		return report, nil
	}
	return validated, nil
}

// maybeGeocode fills in missing coordinates from the report's location name.
func (s *Service) maybeGeocode(ctx context.Context, report *domain.CitizenReport) {
	if s.geocoder == nil || report.Latitude != nil || report.Longitude != nil {
		return
	}
	result, err := s.geocoder.ForwardGeocode(ctx, report.Location)
	if err != nil {
		s.logger.Warn("geocode failed", "location", report.Location, "error", err)
		return
	}
	report.Latitude, report.Longitude = &result.Lat, &result.Lon
}

// validate runs one validation attempt for the report and persists the
// resulting status.
func (s *Service) validate(ctx context.Context, report domain.CitizenReport) (domain.CitizenReport, error) {
	candidates := s.candidateReadings(report)

	result, err := domain.ValidateReport(report, candidates, s.validation)
	if err != nil {
		s.metrics.ReportValidations.WithLabelValues("error").Inc()
		return domain.CitizenReport{}, err
	}
	result.ID = uuid.NewString()

	outcome := "inconclusive"
	if result.Matched {
		outcome = "matched"
	}
	s.metrics.ReportValidations.WithLabelValues(outcome).Inc()

	status := domain.ResolveStatus(report, result, s.clock.Now(), s.credibility)
	update := ValidationUpdate{
		ReportID:          report.ID,
		Status:            status,
		ValidatedBySensor: status == domain.StatusValidated && result.Matched,
		ValidatedAt:       result.AttemptedAt,
		Notes:             result.Notes,
	}
	if err := s.store.UpdateReportValidation(ctx, update); err != nil {
		return domain.CitizenReport{}, fmt.Errorf("update report validation: %w", err)
	}

	s.logger.Info("report validated",
		"report_id", report.ID,
		"validation_id", result.ID,
		"matched", result.Matched,
		"confidence", result.Confidence,
		"status", status,
	)

	report.Status = status
	report.ValidatedBySensor = update.ValidatedBySensor
	report.ValidationTimestamp = &update.ValidatedAt
	report.ValidationNotes = result.Notes
	return report, nil
}

// candidateReadings gathers the sensor readings the validator may match. A
// report whose location names a known station is checked against that station
// only; otherwise every station's window is considered and the spatial filter
// sorts out relevance.
func (s *Service) candidateReadings(report domain.CitizenReport) []domain.SensorReading {
	from := report.Timestamp.Add(-s.validation.TimeWindow)
	to := report.Timestamp.Add(s.validation.TimeWindow)

	if window := s.readings.Window(report.Location, from, to); len(window) > 0 {
		return window
	}

	var all []domain.SensorReading
	for _, loc := range s.readings.Locations() {
		all = append(all, s.readings.Window(loc, from, to)...)
	}
	return all
}

// Vote records a community vote and folds the new tallies into the report's
// status, so sustained downvotes can dismiss a stale unvalidated report.
func (s *Service) Vote(ctx context.Context, id int64, upvote bool) (domain.CitizenReport, error) {
	report, err := s.store.AddVote(ctx, id, upvote)
	if err != nil {
		return domain.CitizenReport{}, fmt.Errorf("add vote: %w", err)
	}

	status := domain.ResolveStatus(report, domain.ValidationResult{}, s.clock.Now(), s.credibility)
	if status != report.Status {
		update := ValidationUpdate{
			ReportID:          id,
			Status:            status,
			ValidatedBySensor: report.ValidatedBySensor,
			ValidatedAt:       s.clock.Now(),
			Notes:             fmt.Sprintf("status changed by community votes (%d up, %d down)", report.Upvotes, report.Downvotes),
		}
		if err := s.store.UpdateReportValidation(ctx, update); err != nil {
			return domain.CitizenReport{}, fmt.Errorf("update report validation: %w", err)
		}
		report.Status = status
	}
	return report, nil
}

// Get returns one report by ID.
func (s *Service) Get(ctx context.Context, id int64) (domain.CitizenReport, error) {
	return s.store.GetReport(ctx, id)
}

// List returns reports matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]domain.CitizenReport, error) {
	return s.store.ListReports(ctx, filter)
}

// SubmitAlertValidation records a citizen's verdict on a generated alert.
func (s *Service) SubmitAlertValidation(ctx context.Context, v domain.AlertValidation) (domain.AlertValidation, error) {
	if !domain.KnownAlertValidationType(v.ValidationType) {
		return domain.AlertValidation{}, fmt.Errorf("%w: unknown alert validation type %q", domain.ErrInvalidReport, v.ValidationType)
	}
	if v.AlertID == "" {
		return domain.AlertValidation{}, fmt.Errorf("%w: alert_id is required", domain.ErrInvalidReport)
	}
	if v.Timestamp.IsZero() {
		v.Timestamp = s.clock.Now()
	}

	id, err := s.store.InsertAlertValidation(ctx, v)
	if err != nil {
		return domain.AlertValidation{}, fmt.Errorf("insert alert validation: %w", err)
	}
	v.ID = id
	return v, nil
}

// Statistics summarizes citizen participation, optionally for one location.
func (s *Service) Statistics(ctx context.Context, location string) (domain.ReportStatistics, error) {
	return s.store.ReportStatistics(ctx, location)
}

// RevalidatePending re-runs sensor validation for every pending report and
// returns how many transitioned to validated. Called periodically so reports
// submitted before the corroborating readings arrived still get matched.
func (s *Service) RevalidatePending(ctx context.Context) (int, error) {
	pending, err := s.store.ListPendingReports(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending reports: %w", err)
	}

	validated := 0
	for _, report := range pending {
		updated, err := s.validate(ctx, report)
		if err != nil {
			s.logger.Warn("revalidation failed", "report_id", report.ID, "error", err)
			continue
		}
		if updated.Status == domain.StatusValidated && report.Status != domain.StatusValidated {
			validated++
		}
	}
	return validated, nil
}
