package domain

import "time"

// ResolutionAction is the decision recorded for a duplicate.
type ResolutionAction string

const (
	ActionAutoRemoved      ResolutionAction = "auto_removed"
	ActionSkipped          ResolutionAction = "skipped"
	ActionFlaggedForReview ResolutionAction = "flagged_for_review"
	ActionManualKept       ResolutionAction = "manual_kept"
	ActionManualRemoved    ResolutionAction = "manual_removed"
)

// DuplicateResolution is one append-only audit row. Rows are never mutated
// after insert and feed statistics only, never matching decisions.
type DuplicateResolution struct {
	UserID             string
	OriginalTradeID    string
	DuplicateTradeHash string
	MatchType          MatchType
	Confidence         float64
	Action             ResolutionAction
	ResolvedAt         time.Time
	Metadata           map[string]string
}

// ResolutionAggregate is one (match type, action) bucket of the audit log.
type ResolutionAggregate struct {
	MatchType     MatchType
	Action        ResolutionAction
	Count         int64
	AvgConfidence float64
}

// DedupStats summarizes a user's dedup activity over a trailing window.
type DedupStats struct {
	UserID            string
	WindowDays        int
	TotalFingerprints int64
	Resolutions       []ResolutionAggregate
}

// CleanupResult reports retention housekeeping counts.
type CleanupResult struct {
	FingerprintsDeleted int64
	ResolutionsDeleted  int64
}
