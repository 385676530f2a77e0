package domain

// Reasons recorded on DuplicateEntry rows.
const (
	ReasonDuplicateWithinBatch = "duplicate_within_batch"
	ReasonDuplicateOfExisting  = "duplicate_of_existing"
)

// AcceptedTrade is a trade that survived deduplication. RequiresReview marks
// trades accepted with below-threshold candidate duplicates attached.
type AcceptedTrade struct {
	Trade          TradeRecord
	RequiresReview bool
}

// DuplicateEntry records one discarded trade: either an intra-batch skip or
// an auto-removal against history (the latter carries match metadata).
type DuplicateEntry struct {
	Trade  TradeRecord
	Reason string
	Action ResolutionAction

	// Set for auto-removals only.
	ExistingTradeID string
	MatchType       MatchType
	Confidence      float64
	Differences     map[string]FieldDiff
}

// ReviewConflict is a review-queue entry for an accepted trade with
// unresolved candidate duplicates. Candidates holds at most the top 3.
type ReviewConflict struct {
	ReviewID   string
	Trade      TradeRecord
	Candidates []DuplicateMatch
}

// ProcessingError records one trade whose dedup decision failed. The batch
// continues past it.
type ProcessingError struct {
	Trade TradeRecord
	Err   string
}

// BatchDedupResult is the full outcome of one DeduplicateTrades call.
// It is returned to the caller and never persisted.
type BatchDedupResult struct {
	OriginalCount            int
	DuplicatesRemoved        int
	UniqueTrades             []AcceptedTrade
	DuplicatesFound          []DuplicateEntry
	ConflictsRequiringReview []ReviewConflict
	ProcessingErrors         []ProcessingError
}
