// Package matching finds and ranks potential duplicates of an incoming
// trade against one user's fingerprint history.
package matching

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tarigelamin1997/tradesense-sub005/internal/domain"
	"github.com/tarigelamin1997/tradesense-sub005/internal/fingerprint"
	"github.com/tarigelamin1997/tradesense-sub005/internal/storage"
)

// Fixed confidence scores. Only exact hash matches may claim 1.0; the
// proximity strategy is capped below it.
const (
	exactConfidence        = 1.0
	fuzzyHashConfidence    = 0.95
	maxProximityConfidence = 0.99
)

// Config holds the tunable matching thresholds.
type Config struct {
	// TimeToleranceMinutes is the half-width of the proximity-match entry
	// time window.
	TimeToleranceMinutes int

	// PriceTolerancePercent is the denominator in proximity confidence
	// scoring (0.01 = 1% average relative difference zeroes the score).
	PriceTolerancePercent float64

	// MinimumConfidenceScore is the floor for accepting a proximity match
	// as a candidate.
	MinimumConfidenceScore float64
}

// DefaultConfig returns the standard matching thresholds.
func DefaultConfig() Config {
	return Config{
		TimeToleranceMinutes:   5,
		PriceTolerancePercent:  0.01,
		MinimumConfidenceScore: 0.85,
	}
}

// Matching field lists attached to DuplicateMatch for audit/UI.
var (
	exactMatchingFields = []string{
		"symbol", "entry_time", "exit_time",
		"entry_price", "exit_price", "qty", "direction",
	}
	fuzzyMatchingFields     = []string{"symbol", "direction", "entry_time_fuzzy", "exit_time_fuzzy"}
	proximityMatchingFields = []string{"symbol", "direction", "time_range"}
)

// Matcher runs the three duplicate-detection strategies against a user's
// fingerprint history.
type Matcher struct {
	store  storage.FingerprintStore
	cfg    Config
	logger *logrus.Logger
}

// NewMatcher creates a Matcher over the given fingerprint store.
func NewMatcher(store storage.FingerprintStore, cfg Config, logger *logrus.Logger) *Matcher {
	return &Matcher{store: store, cfg: cfg, logger: logger}
}

// FindPotentialDuplicates returns ranked candidate duplicates for the trade,
// sorted by confidence descending (stable). Strategies run in strict
// priority order and short-circuit: fuzzy-hash matching only runs when exact
// matching found nothing, proximity only when both hash strategies found
// nothing.
func (m *Matcher) FindPotentialDuplicates(ctx context.Context, trade domain.TradeRecord, userID string) ([]domain.DuplicateMatch, error) {
	exactHash := fingerprint.ExactHash(trade)

	matches, err := m.exactMatches(ctx, trade, userID, exactHash)
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		return ranked(matches), nil
	}

	matches, err = m.fuzzyHashMatches(ctx, trade, userID, exactHash)
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		return ranked(matches), nil
	}

	matches, err = m.proximityMatches(ctx, trade, userID)
	if err != nil {
		return nil, err
	}
	return ranked(matches), nil
}

func (m *Matcher) exactMatches(ctx context.Context, trade domain.TradeRecord, userID, exactHash string) ([]domain.DuplicateMatch, error) {
	rows, err := m.store.FindByExactHash(ctx, userID, exactHash)
	if err != nil {
		return nil, fmt.Errorf("exact hash lookup: %w", err)
	}

	matches := make([]domain.DuplicateMatch, 0, len(rows))
	for _, fp := range rows {
		matches = append(matches, domain.DuplicateMatch{
			ExistingTradeID: fp.TradeID,
			NewTrade:        trade,
			MatchType:       domain.MatchExact,
			Confidence:      exactConfidence,
			MatchingFields:  exactMatchingFields,
			// Equal exact hashes imply equal canonical fields.
			Differences: map[string]domain.FieldDiff{},
		})
	}
	return matches, nil
}

func (m *Matcher) fuzzyHashMatches(ctx context.Context, trade domain.TradeRecord, userID, exactHash string) ([]domain.DuplicateMatch, error) {
	fuzzyHash, err := fingerprint.FuzzyHash(trade)
	if err != nil {
		if !errors.Is(err, fingerprint.ErrUnparseableTime) {
			return nil, fmt.Errorf("fuzzy hash: %w", err)
		}
		// Degraded to the exact hash; the excluding lookup below then
		// cannot re-surface the trade's own exact matches.
		m.logger.WithFields(logrus.Fields{
			"trade_id": trade.TradeID,
			"user_id":  userID,
		}).Warn("fuzzy hash degraded to exact hash")
	}

	rows, err := m.store.FindByFuzzyHash(ctx, userID, fuzzyHash, exactHash)
	if err != nil {
		return nil, fmt.Errorf("fuzzy hash lookup: %w", err)
	}

	matches := make([]domain.DuplicateMatch, 0, len(rows))
	for _, fp := range rows {
		matches = append(matches, domain.DuplicateMatch{
			ExistingTradeID: fp.TradeID,
			NewTrade:        trade,
			MatchType:       domain.MatchFuzzyTime,
			Confidence:      fuzzyHashConfidence,
			MatchingFields:  fuzzyMatchingFields,
			Differences:     calculateDifferences(fp, trade),
		})
	}
	return matches, nil
}

func (m *Matcher) proximityMatches(ctx context.Context, trade domain.TradeRecord, userID string) ([]domain.DuplicateMatch, error) {
	entry, err := fingerprint.ParseTradeTime(trade.EntryTime)
	if err != nil {
		// Without a parseable entry time there is no window to search.
		m.logger.WithFields(logrus.Fields{
			"trade_id":   trade.TradeID,
			"entry_time": trade.EntryTime,
		}).Debug("skipping proximity match for unparseable entry time")
		return nil, nil
	}

	tolerance := time.Duration(m.cfg.TimeToleranceMinutes) * time.Minute
	startMs := entry.Add(-tolerance).UnixMilli()
	endMs := entry.Add(tolerance).UnixMilli()

	rows, err := m.store.FindBySymbolDirectionTimeRange(ctx, userID,
		strings.ToUpper(trade.Symbol), strings.ToLower(trade.Direction), startMs, endMs)
	if err != nil {
		return nil, fmt.Errorf("time range lookup: %w", err)
	}

	var matches []domain.DuplicateMatch
	for _, fp := range rows {
		confidence := m.priceSimilarityConfidence(fp, trade)
		if confidence < m.cfg.MinimumConfidenceScore {
			continue
		}
		matches = append(matches, domain.DuplicateMatch{
			ExistingTradeID: fp.TradeID,
			NewTrade:        trade,
			MatchType:       domain.MatchFuzzyPrice,
			Confidence:      confidence,
			MatchingFields:  proximityMatchingFields,
			Differences:     calculateDifferences(fp, trade),
		})
	}
	return matches, nil
}

// priceSimilarityConfidence scores how closely the trade's prices and
// quantity track the stored fingerprint: the average relative difference is
// mapped to [0, 1] against the configured tolerance and capped below the
// exact-match score. Returns 0.0 when any existing value is zero or the
// computation is not finite.
func (m *Matcher) priceSimilarityConfidence(fp *domain.TradeFingerprint, trade domain.TradeRecord) float64 {
	if fp.EntryPrice == 0 || fp.ExitPrice == 0 || fp.Qty == 0 {
		return 0.0
	}

	entryDiff := math.Abs(fp.EntryPrice-trade.EntryPrice) / fp.EntryPrice
	exitDiff := math.Abs(fp.ExitPrice-trade.ExitPrice) / fp.ExitPrice
	qtyDiff := math.Abs(fp.Qty-trade.Qty) / fp.Qty
	avgDiff := (entryDiff + exitDiff + qtyDiff) / 3

	confidence := 1.0 - avgDiff/m.cfg.PriceTolerancePercent
	if math.IsNaN(confidence) || math.IsInf(confidence, 0) {
		return 0.0
	}
	if confidence < 0 {
		return 0.0
	}
	if confidence > maxProximityConfidence {
		return maxProximityConfidence
	}
	return confidence
}

// calculateDifferences compares the stored fingerprint's denormalized fields
// against the incoming trade field by field, by string representation.
// Fields that agree are omitted.
func calculateDifferences(fp *domain.TradeFingerprint, trade domain.TradeRecord) map[string]domain.FieldDiff {
	diffs := make(map[string]domain.FieldDiff)

	compare := func(field, existing, new string) {
		if existing != new {
			diffs[field] = domain.FieldDiff{Existing: existing, New: new}
		}
	}

	compare("symbol", fp.Symbol, trade.Symbol)
	compare("entry_time", fp.EntryTime, trade.EntryTime)
	compare("exit_time", fp.ExitTime, trade.ExitTime)
	compare("entry_price", formatFloat(fp.EntryPrice), formatFloat(trade.EntryPrice))
	compare("exit_price", formatFloat(fp.ExitPrice), formatFloat(trade.ExitPrice))
	compare("qty", formatFloat(fp.Qty), formatFloat(trade.Qty))
	compare("direction", fp.Direction, trade.Direction)
	compare("data_source", fp.DataSource, trade.DataSource)

	return diffs
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ranked sorts matches by confidence descending, keeping insertion order
// for ties.
func ranked(matches []domain.DuplicateMatch) []domain.DuplicateMatch {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
	return matches
}
