package domain

// MatchType classifies how a candidate duplicate was found.
type MatchType string

const (
	MatchExact      MatchType = "exact"
	MatchFuzzyTime  MatchType = "fuzzy_time"
	MatchFuzzyPrice MatchType = "fuzzy_price"
	// MatchComposite is part of the taxonomy but no strategy produces it yet.
	MatchComposite MatchType = "composite"
)

// FieldDiff is one field that differs between a stored fingerprint and the
// incoming trade. Values are string representations for audit/review UI.
type FieldDiff struct {
	Existing string `json:"existing"`
	New      string `json:"new"`
}

// DuplicateMatch is one ranked candidate duplicate for an incoming trade.
// Matches are computed fresh per comparison and never persisted.
type DuplicateMatch struct {
	ExistingTradeID string
	NewTrade        TradeRecord
	MatchType       MatchType
	Confidence      float64
	MatchingFields  []string
	Differences     map[string]FieldDiff
}
