package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/tarigelamin1997/tradesense-sub005/internal/domain"
	"github.com/tarigelamin1997/tradesense-sub005/internal/storage"
)

// ResolutionLogStore implements storage.ResolutionLogStore using PostgreSQL.
type ResolutionLogStore struct {
	pool *Pool
}

// NewResolutionLogStore creates a new ResolutionLogStore.
func NewResolutionLogStore(pool *Pool) *ResolutionLogStore {
	return &ResolutionLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ResolutionLogStore = (*ResolutionLogStore)(nil)

// Append adds one resolution row to the audit log.
func (s *ResolutionLogStore) Append(ctx context.Context, r *domain.DuplicateResolution) error {
	if r == nil || r.UserID == "" {
		return storage.ErrInvalidInput
	}

	resolvedAt := r.ResolvedAt
	if resolvedAt.IsZero() {
		resolvedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO dedup_resolutions (
			user_id, original_trade_id, duplicate_trade_hash,
			match_type, confidence_score, action_taken,
			resolved_at, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		r.UserID, r.OriginalTradeID, r.DuplicateTradeHash,
		string(r.MatchType), r.Confidence, string(r.Action),
		resolvedAt, r.Metadata,
	)
	if err != nil {
		return fmt.Errorf("append resolution: %w", err)
	}
	return nil
}

// Aggregate groups the user's resolutions since the given time by
// (match type, action) with counts and average confidence.
func (s *ResolutionLogStore) Aggregate(ctx context.Context, userID string, since time.Time) ([]domain.ResolutionAggregate, error) {
	query := `
		SELECT match_type, action_taken, COUNT(*), AVG(confidence_score)
		FROM dedup_resolutions
		WHERE user_id = $1 AND resolved_at >= $2
		GROUP BY match_type, action_taken
		ORDER BY match_type ASC, action_taken ASC
	`

	rows, err := s.pool.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("aggregate resolutions: %w", err)
	}
	defer rows.Close()

	var result []domain.ResolutionAggregate
	for rows.Next() {
		var (
			agg       domain.ResolutionAggregate
			matchType string
			action    string
		)
		if err := rows.Scan(&matchType, &action, &agg.Count, &agg.AvgConfidence); err != nil {
			return nil, fmt.Errorf("scan resolution aggregate row: %w", err)
		}
		agg.MatchType = domain.MatchType(matchType)
		agg.Action = domain.ResolutionAction(action)
		result = append(result, agg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resolution aggregate rows: %w", err)
	}

	return result, nil
}

// DeleteOlderThan removes resolutions recorded before cutoff.
func (s *ResolutionLogStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM dedup_resolutions WHERE resolved_at < $1`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete old resolutions: %w", err)
	}
	return tag.RowsAffected(), nil
}
