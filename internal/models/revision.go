package models

import "time"

// RevisionStatus is the review state of a suggested chart revision.
type RevisionStatus string

const (
	StatusPending  RevisionStatus = "pending"
	StatusFlagged  RevisionStatus = "flagged"
	StatusApproved RevisionStatus = "approved"
	StatusRejected RevisionStatus = "rejected"
)

// IsLive reports whether the revision is still open for review. At most one
// live revision may exist per chart.
func (s RevisionStatus) IsLive() bool {
	return s == StatusPending || s == StatusFlagged
}

// IsTerminal reports whether the status permits no further transitions.
func (s RevisionStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// SuggestedRevision is a staged, reviewable proposal to replace a chart's
// config. Rows are append-only; status changes are the only updates.
type SuggestedRevision struct {
	ID              int64
	ChartID         int64
	OriginalConfig  *ChartConfig
	SuggestedConfig *ChartConfig
	Status          RevisionStatus
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Chart is a stored chart row together with its parsed config.
type Chart struct {
	ID     int64
	Config *ChartConfig
}
