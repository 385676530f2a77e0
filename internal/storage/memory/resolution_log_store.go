package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tarigelamin1997/tradesense-sub005/internal/domain"
	"github.com/tarigelamin1997/tradesense-sub005/internal/storage"
)

// ResolutionLogStore is an in-memory implementation of storage.ResolutionLogStore.
type ResolutionLogStore struct {
	mu   sync.RWMutex
	rows []*domain.DuplicateResolution
}

// NewResolutionLogStore creates a new in-memory resolution log store.
func NewResolutionLogStore() *ResolutionLogStore {
	return &ResolutionLogStore{}
}

// Compile-time interface check.
var _ storage.ResolutionLogStore = (*ResolutionLogStore)(nil)

// Append adds one resolution row.
func (s *ResolutionLogStore) Append(_ context.Context, r *domain.DuplicateResolution) error {
	if r == nil || r.UserID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *r
	if copy.ResolvedAt.IsZero() {
		copy.ResolvedAt = time.Now().UTC()
	}
	s.rows = append(s.rows, &copy)
	return nil
}

// Aggregate groups the user's resolutions since the given time by
// (match type, action) with counts and average confidence.
func (s *ResolutionLogStore) Aggregate(_ context.Context, userID string, since time.Time) ([]domain.ResolutionAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type bucket struct {
		count int64
		sum   float64
	}
	buckets := make(map[string]*bucket)
	for _, r := range s.rows {
		if r.UserID != userID || r.ResolvedAt.Before(since) {
			continue
		}
		key := string(r.MatchType) + "|" + string(r.Action)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.count++
		b.sum += r.Confidence
	}

	var result []domain.ResolutionAggregate
	for key, b := range buckets {
		parts := strings.SplitN(key, "|", 2)
		result = append(result, domain.ResolutionAggregate{
			MatchType:     domain.MatchType(parts[0]),
			Action:        domain.ResolutionAction(parts[1]),
			Count:         b.count,
			AvgConfidence: b.sum / float64(b.count),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].MatchType != result[j].MatchType {
			return result[i].MatchType < result[j].MatchType
		}
		return result[i].Action < result[j].Action
	})
	return result, nil
}

// DeleteOlderThan removes resolutions recorded before cutoff.
func (s *ResolutionLogStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.rows[:0]
	var n int64
	for _, r := range s.rows {
		if r.ResolvedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	s.rows = kept
	return n, nil
}
