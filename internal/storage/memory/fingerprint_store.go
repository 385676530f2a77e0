package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tarigelamin1997/tradesense-sub005/internal/domain"
	"github.com/tarigelamin1997/tradesense-sub005/internal/storage"
)

// FingerprintStore is an in-memory implementation of storage.FingerprintStore.
type FingerprintStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeFingerprint // keyed by trade_id
}

// NewFingerprintStore creates a new in-memory fingerprint store.
func NewFingerprintStore() *FingerprintStore {
	return &FingerprintStore{
		data: make(map[string]*domain.TradeFingerprint),
	}
}

// Compile-time interface check.
var _ storage.FingerprintStore = (*FingerprintStore)(nil)

// Upsert inserts a fingerprint, replacing any existing row with the same trade_id.
func (s *FingerprintStore) Upsert(_ context.Context, fp *domain.TradeFingerprint) error {
	if fp == nil || fp.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *fp
	if copy.CreatedAt.IsZero() {
		copy.CreatedAt = time.Now().UTC()
	}
	s.data[fp.TradeID] = &copy
	return nil
}

// FindByExactHash retrieves the user's fingerprints with the given exact hash.
func (s *FingerprintStore) FindByExactHash(_ context.Context, userID, exactHash string) ([]*domain.TradeFingerprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeFingerprint
	for _, fp := range s.data {
		if fp.UserID == userID && fp.ExactHash == exactHash {
			copy := *fp
			result = append(result, &copy)
		}
	}
	sortByCreatedAt(result)
	return result, nil
}

// FindByFuzzyHash retrieves fuzzy-hash matches excluding exact-hash matches.
func (s *FingerprintStore) FindByFuzzyHash(_ context.Context, userID, fuzzyHash, excludeExactHash string) ([]*domain.TradeFingerprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeFingerprint
	for _, fp := range s.data {
		if fp.UserID == userID && fp.FuzzyHash == fuzzyHash && fp.ExactHash != excludeExactHash {
			copy := *fp
			result = append(result, &copy)
		}
	}
	sortByCreatedAt(result)
	return result, nil
}

// FindBySymbolDirectionTimeRange retrieves fingerprints matching symbol and
// direction whose entry time falls within [startMs, endMs].
func (s *FingerprintStore) FindBySymbolDirectionTimeRange(_ context.Context, userID, symbol, direction string, startMs, endMs int64) ([]*domain.TradeFingerprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeFingerprint
	for _, fp := range s.data {
		if fp.UserID != userID || fp.EntryTimeMs == 0 {
			continue
		}
		if !strings.EqualFold(fp.Symbol, symbol) || !strings.EqualFold(fp.Direction, direction) {
			continue
		}
		if fp.EntryTimeMs >= startMs && fp.EntryTimeMs <= endMs {
			copy := *fp
			result = append(result, &copy)
		}
	}
	sortByCreatedAt(result)
	return result, nil
}

// Count returns the number of fingerprints registered for the user.
func (s *FingerprintStore) Count(_ context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, fp := range s.data {
		if fp.UserID == userID {
			n++
		}
	}
	return n, nil
}

// DeleteOlderThan removes fingerprints created before cutoff.
func (s *FingerprintStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, fp := range s.data {
		if fp.CreatedAt.Before(cutoff) {
			delete(s.data, id)
			n++
		}
	}
	return n, nil
}
