// Package dedup implements the batch resolution policy: accept, auto-remove
// or flag each incoming trade based on ranked candidate duplicates.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tarigelamin1997/tradesense-sub005/internal/domain"
	"github.com/tarigelamin1997/tradesense-sub005/internal/fingerprint"
	"github.com/tarigelamin1997/tradesense-sub005/internal/matching"
	"github.com/tarigelamin1997/tradesense-sub005/internal/storage"
)

// autoResolveThreshold is the confidence at or above which a best match is
// discarded without review. Not configurable.
const autoResolveThreshold = 0.95

// maxReviewCandidates caps how many candidate matches a review-queue entry
// carries.
const maxReviewCandidates = 3

// Service is the deduplication service. Construct it with explicit store and
// matcher dependencies; there is no package-level instance.
type Service struct {
	fingerprints storage.FingerprintStore
	resolutions  storage.ResolutionLogStore
	matcher      *matching.Matcher
	logger       *logrus.Logger
}

// NewService creates a deduplication service.
func NewService(fingerprints storage.FingerprintStore, resolutions storage.ResolutionLogStore, matcher *matching.Matcher, logger *logrus.Logger) *Service {
	return &Service{
		fingerprints: fingerprints,
		resolutions:  resolutions,
		matcher:      matcher,
		logger:       logger,
	}
}

// DeduplicateTrades processes a batch of incoming trades for one user and
// returns the batch report. Trades are processed strictly in input order:
// earlier trades establish the original when later trades in the same batch
// collide. A failure on one trade is recorded and never aborts the batch.
//
// The intra-batch accepted-hash state lives in this call only; concurrent
// batches for the same user do not observe each other's pending decisions
// and need external serialization.
func (s *Service) DeduplicateTrades(ctx context.Context, trades []domain.TradeRecord, userID string, autoResolve bool) *domain.BatchDedupResult {
	result := &domain.BatchDedupResult{OriginalCount: len(trades)}

	// Exact hashes of trades accepted earlier in this batch.
	accepted := make(map[string]struct{})

	for _, trade := range trades {
		exactHash := fingerprint.ExactHash(trade)

		// Intra-batch check runs before any history lookup and uses exact
		// hash equality only.
		if _, seen := accepted[exactHash]; seen {
			result.DuplicatesFound = append(result.DuplicatesFound, domain.DuplicateEntry{
				Trade:  trade,
				Reason: domain.ReasonDuplicateWithinBatch,
				Action: domain.ActionSkipped,
			})
			result.DuplicatesRemoved++
			continue
		}

		matches, err := s.matcher.FindPotentialDuplicates(ctx, trade, userID)
		if err != nil {
			result.ProcessingErrors = append(result.ProcessingErrors, domain.ProcessingError{
				Trade: trade,
				Err:   err.Error(),
			})
			continue
		}

		switch {
		case len(matches) == 0:
			result.UniqueTrades = append(result.UniqueTrades, domain.AcceptedTrade{Trade: trade})
			accepted[exactHash] = struct{}{}

		case autoResolve && matches[0].Confidence >= autoResolveThreshold:
			best := matches[0]
			if err := s.logResolution(ctx, userID, exactHash, trade, best); err != nil {
				result.ProcessingErrors = append(result.ProcessingErrors, domain.ProcessingError{
					Trade: trade,
					Err:   err.Error(),
				})
				continue
			}
			result.DuplicatesFound = append(result.DuplicatesFound, domain.DuplicateEntry{
				Trade:           trade,
				Reason:          domain.ReasonDuplicateOfExisting,
				Action:          domain.ActionAutoRemoved,
				ExistingTradeID: best.ExistingTradeID,
				MatchType:       best.MatchType,
				Confidence:      best.Confidence,
				Differences:     best.Differences,
			})
			result.DuplicatesRemoved++
			// The trade was never accepted, so its hash does not join the
			// intra-batch state.

		default:
			candidates := matches
			if len(candidates) > maxReviewCandidates {
				candidates = candidates[:maxReviewCandidates]
			}
			result.ConflictsRequiringReview = append(result.ConflictsRequiringReview, domain.ReviewConflict{
				ReviewID:   uuid.NewString(),
				Trade:      trade,
				Candidates: candidates,
			})
			result.UniqueTrades = append(result.UniqueTrades, domain.AcceptedTrade{
				Trade:          trade,
				RequiresReview: true,
			})
			accepted[exactHash] = struct{}{}
		}
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"original":   result.OriginalCount,
		"unique":     len(result.UniqueTrades),
		"duplicates": result.DuplicatesRemoved,
		"review":     len(result.ConflictsRequiringReview),
		"errors":     len(result.ProcessingErrors),
	}).Info("trade batch deduplicated")

	return result
}

func (s *Service) logResolution(ctx context.Context, userID, duplicateHash string, trade domain.TradeRecord, best domain.DuplicateMatch) error {
	res := &domain.DuplicateResolution{
		UserID:             userID,
		OriginalTradeID:    best.ExistingTradeID,
		DuplicateTradeHash: duplicateHash,
		MatchType:          best.MatchType,
		Confidence:         best.Confidence,
		Action:             domain.ActionAutoRemoved,
		ResolvedAt:         time.Now().UTC(),
		Metadata: map[string]string{
			"new_trade_id": trade.TradeID,
			"data_source":  trade.DataSource,
		},
	}
	if err := s.resolutions.Append(ctx, res); err != nil {
		return fmt.Errorf("append resolution: %w", err)
	}
	return nil
}

// RegisterTrades computes both hashes for each confirmed trade and upserts
// its fingerprint, replacing any prior fingerprint for the same trade_id.
// Per-trade failures are logged and skipped; the loop never aborts. Returns
// the number of fingerprints registered.
func (s *Service) RegisterTrades(ctx context.Context, trades []domain.TradeRecord, userID string) (int, error) {
	registered := 0
	for _, trade := range trades {
		fp := s.buildFingerprint(trade, userID)
		if err := s.fingerprints.Upsert(ctx, fp); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"trade_id": trade.TradeID,
				"user_id":  userID,
			}).Warn("fingerprint registration failed, skipping trade")
			continue
		}
		registered++
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"registered": registered,
		"total":      len(trades),
	}).Info("trade fingerprints registered")

	return registered, nil
}

func (s *Service) buildFingerprint(trade domain.TradeRecord, userID string) *domain.TradeFingerprint {
	exactHash := fingerprint.ExactHash(trade)
	fuzzyHash, err := fingerprint.FuzzyHash(trade)
	if errors.Is(err, fingerprint.ErrUnparseableTime) {
		s.logger.WithFields(logrus.Fields{
			"trade_id": trade.TradeID,
			"user_id":  userID,
		}).Warn("fuzzy hash degraded to exact hash")
	}

	return &domain.TradeFingerprint{
		TradeID:     trade.TradeID,
		UserID:      userID,
		ExactHash:   exactHash,
		FuzzyHash:   fuzzyHash,
		Symbol:      trade.Symbol,
		EntryTime:   trade.EntryTime,
		ExitTime:    trade.ExitTime,
		EntryPrice:  trade.EntryPrice,
		ExitPrice:   trade.ExitPrice,
		Qty:         trade.Qty,
		Direction:   trade.Direction,
		DataSource:  trade.DataSource,
		EntryTimeMs: fingerprint.EntryTimeMs(trade),
		CreatedAt:   time.Now().UTC(),
	}
}

// DeduplicationStats aggregates the user's audit log over a trailing window
// of days and counts the currently registered fingerprints.
func (s *Service) DeduplicationStats(ctx context.Context, userID string, days int) (*domain.DedupStats, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)

	aggregates, err := s.resolutions.Aggregate(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("aggregate resolutions: %w", err)
	}

	count, err := s.fingerprints.Count(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count fingerprints: %w", err)
	}

	return &domain.DedupStats{
		UserID:            userID,
		WindowDays:        days,
		TotalFingerprints: count,
		Resolutions:       aggregates,
	}, nil
}

// CleanupOldFingerprints deletes fingerprints and resolution rows older than
// the retention cutoff. Pure housekeeping, no decision logic.
func (s *Service) CleanupOldFingerprints(ctx context.Context, daysToKeep int) (*domain.CleanupResult, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -daysToKeep)

	fps, err := s.fingerprints.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("delete old fingerprints: %w", err)
	}

	logs, err := s.resolutions.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("delete old resolutions: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"fingerprints": fps,
		"resolutions":  logs,
		"cutoff":       cutoff.Format(time.RFC3339),
	}).Info("retention cleanup completed")

	return &domain.CleanupResult{
		FingerprintsDeleted: fps,
		ResolutionsDeleted:  logs,
	}, nil
}
