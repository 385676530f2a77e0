package domain

import "time"

// TradeFingerprint is the persisted identity of one registered trade.
// Exactly one row exists per TradeID; re-registering replaces the row.
//
// The trade's identifying fields are denormalized onto the fingerprint for
// diffing and proximity queries. EntryTimeMs is the parsed entry time in
// Unix milliseconds, or 0 when the raw string could not be parsed; such a
// row is still matchable by hash but never by the time-range strategy.
type TradeFingerprint struct {
	TradeID   string
	UserID    string
	ExactHash string
	FuzzyHash string

	Symbol     string
	EntryTime  string
	ExitTime   string
	EntryPrice float64
	ExitPrice  float64
	Qty        float64
	Direction  string
	DataSource string

	EntryTimeMs int64
	CreatedAt   time.Time
}
