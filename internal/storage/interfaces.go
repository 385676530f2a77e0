package storage

import (
	"context"
	"time"

	"github.com/tarigelamin1997/tradesense-sub005/internal/domain"
)

// FingerprintStore provides access to trade_fingerprints storage.
// All lookups are scoped to a single user.
type FingerprintStore interface {
	// Upsert inserts a fingerprint, replacing any existing row with the
	// same trade_id.
	Upsert(ctx context.Context, fp *domain.TradeFingerprint) error

	// FindByExactHash retrieves the user's fingerprints whose exact hash
	// equals exactHash.
	FindByExactHash(ctx context.Context, userID, exactHash string) ([]*domain.TradeFingerprint, error)

	// FindByFuzzyHash retrieves the user's fingerprints whose fuzzy hash
	// equals fuzzyHash and whose exact hash differs from excludeExactHash.
	FindByFuzzyHash(ctx context.Context, userID, fuzzyHash, excludeExactHash string) ([]*domain.TradeFingerprint, error)

	// FindBySymbolDirectionTimeRange retrieves the user's fingerprints with
	// matching symbol and direction (case-normalized by the caller) whose
	// entry time falls within [startMs, endMs] inclusive. Rows with an
	// unparseable entry time (EntryTimeMs == 0) are never returned.
	FindBySymbolDirectionTimeRange(ctx context.Context, userID, symbol, direction string, startMs, endMs int64) ([]*domain.TradeFingerprint, error)

	// Count returns the number of fingerprints registered for the user.
	Count(ctx context.Context, userID string) (int64, error)

	// DeleteOlderThan removes fingerprints created before cutoff and
	// returns the number of rows deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ResolutionLogStore provides access to the append-only dedup_resolutions
// audit log.
type ResolutionLogStore interface {
	// Append adds one resolution row. Rows are never mutated afterwards.
	Append(ctx context.Context, r *domain.DuplicateResolution) error

	// Aggregate groups the user's resolutions since the given time by
	// (match type, action) with counts and average confidence.
	Aggregate(ctx context.Context, userID string, since time.Time) ([]domain.ResolutionAggregate, error)

	// DeleteOlderThan removes resolutions recorded before cutoff and
	// returns the number of rows deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
