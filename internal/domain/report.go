package domain

import (
	"errors"
	"time"
)

// ErrInvalidReport marks citizen report input that violates the submission
// contract (unknown type, severity outside 1–5). The transport layer rejects
// these before they reach the core; hitting this error inside the core means
// a caller bypassed that boundary.
var ErrInvalidReport = errors.New("invalid citizen report")

// ReportType classifies what a citizen observed.
type ReportType string

const (
	ReportSmoke ReportType = "smoke"
	ReportOdor  ReportType = "odor"
	ReportNoise ReportType = "noise"
	ReportOther ReportType = "other"
)

// KnownReportType reports whether t is one of the accepted report types.
func KnownReportType(t ReportType) bool {
	switch t {
	case ReportSmoke, ReportOdor, ReportNoise, ReportOther:
		return true
	}
	return false
}

// ReportStatus is the lifecycle state of a citizen report. Reports are never
// deleted; status transitions are recorded with a validation timestamp and
// notes.
type ReportStatus string

const (
	StatusPending   ReportStatus = "pending"
	StatusValidated ReportStatus = "validated"
	StatusResolved  ReportStatus = "resolved"
	StatusDismissed ReportStatus = "dismissed"
)

// CitizenReport is a community-submitted pollution observation.
// Vote counters and status mutate over the report's lifetime; everything else
// is fixed at submission.
type CitizenReport struct {
	ID             int64      `json:"id"`
	Timestamp      time.Time  `json:"timestamp"`
	Location       string     `json:"location"` // station/district name
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	ReportType     ReportType `json:"report_type"`
	Severity       int        `json:"severity"` // 1–5
	Description    string     `json:"description,omitempty"`
	PhotoPath      string     `json:"photo_path,omitempty"`
	CitizenName    string     `json:"citizen_name,omitempty"`
	CitizenContact string     `json:"citizen_contact,omitempty"`

	Status              ReportStatus `json:"status"`
	ValidatedBySensor   bool         `json:"validated_by_sensor"`
	ValidationTimestamp *time.Time   `json:"validation_timestamp,omitempty"`
	ValidationNotes     string       `json:"validation_notes,omitempty"`
	Upvotes             int          `json:"upvotes"`
	Downvotes           int          `json:"downvotes"`
}

// ValidationResult is the outcome of one auto-validation attempt. A report
// may be validated repeatedly as new sensor data arrives; each attempt
// produces a fresh result that the credibility aggregator folds into the
// report's status.
type ValidationResult struct {
	ID                 string    `json:"id,omitempty"` // assigned per attempt by the reports service
	ReportID           int64     `json:"report_id"`
	Matched            bool      `json:"matched"`
	Confidence         float64   `json:"confidence"` // 0–1
	MatchingReadingIDs []string  `json:"matching_reading_ids,omitempty"`
	Notes              string    `json:"notes,omitempty"`
	AttemptedAt        time.Time `json:"attempted_at"`
}

// AlertValidationType is a citizen's verdict on a system-generated alert.
type AlertValidationType string

const (
	AlertConfirm AlertValidationType = "confirm"
	AlertDeny    AlertValidationType = "deny"
	AlertUnsure  AlertValidationType = "unsure"
)

// KnownAlertValidationType reports whether t is an accepted verdict.
func KnownAlertValidationType(t AlertValidationType) bool {
	switch t {
	case AlertConfirm, AlertDeny, AlertUnsure:
		return true
	}
	return false
}

// AlertValidation is a citizen response to a system alert.
type AlertValidation struct {
	ID             int64               `json:"id"`
	AlertID        string              `json:"alert_id"`
	Timestamp      time.Time           `json:"timestamp"`
	ValidationType AlertValidationType `json:"validation_type"`
	Location       string              `json:"location"`
	CitizenComment string              `json:"citizen_comment,omitempty"`
}

// ReportStatistics summarizes citizen participation, optionally for a single
// location.
type ReportStatistics struct {
	Total    int                  `json:"total"`
	Recent24 int                  `json:"recent_24h"`
	ByType   map[ReportType]int   `json:"by_type"`
	ByStatus map[ReportStatus]int `json:"by_status"`
}
