package domain

import "time"

// CredibilityConfig enumerates the status-transition tunables.
type CredibilityConfig struct {
	// AutoValidateConfidence is the minimum validation confidence for an
	// automatic transition to validated.
	AutoValidateConfidence float64
	// ValidationWindow is how long after submission a report waits for sensor
	// corroboration before community downvotes can dismiss it.
	ValidationWindow time.Duration
	// DismissDownvotes is the minimum downvote count for dismissal.
	DismissDownvotes int
	// DismissVoteRatio is the required downvote:upvote ratio for dismissal.
	DismissVoteRatio float64
}

// DefaultCredibilityConfig returns the production credibility tunables.
func DefaultCredibilityConfig() CredibilityConfig {
	return CredibilityConfig{
		AutoValidateConfidence: 0.6,
		ValidationWindow:       24 * time.Hour,
		DismissDownvotes:       5,
		DismissVoteRatio:       2,
	}
}

// ResolveStatus folds a validation result and the report's vote counters into
// its next status.
//
// Sensor corroboration above the confidence threshold validates the report.
// Lack of corroboration alone never dismisses it — absence of evidence is
// inconclusive — but once the validation window has closed, strong community
// downvotes with no sensor backing do. Resolved and validated are sticky:
// a later inconclusive attempt does not downgrade them.
func ResolveStatus(report CitizenReport, result ValidationResult, now time.Time, cfg CredibilityConfig) ReportStatus {
	if report.Status == StatusResolved {
		return StatusResolved
	}
	if result.Matched && result.Confidence >= cfg.AutoValidateConfidence {
		return StatusValidated
	}
	if report.Status == StatusValidated {
		return StatusValidated
	}
	if !result.Matched && windowClosed(report, now, cfg) && stronglyDownvoted(report, cfg) {
		return StatusDismissed
	}
	return StatusPending
}

func windowClosed(report CitizenReport, now time.Time, cfg CredibilityConfig) bool {
	return now.Sub(report.Timestamp) > cfg.ValidationWindow
}

func stronglyDownvoted(report CitizenReport, cfg CredibilityConfig) bool {
	if report.Downvotes < cfg.DismissDownvotes {
		return false
	}
	return float64(report.Downvotes) >= cfg.DismissVoteRatio*float64(report.Upvotes)
}
