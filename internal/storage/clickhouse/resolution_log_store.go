package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/tarigelamin1997/tradesense-sub005/internal/domain"
	"github.com/tarigelamin1997/tradesense-sub005/internal/storage"
)

// ResolutionLogStore implements storage.ResolutionLogStore using ClickHouse.
// The audit log is append-only and aggregation-heavy, which suits a
// MergeTree table.
type ResolutionLogStore struct {
	conn *Conn
}

// NewResolutionLogStore creates a new ResolutionLogStore.
func NewResolutionLogStore(conn *Conn) *ResolutionLogStore {
	return &ResolutionLogStore{conn: conn}
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

	metadata := r.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	query := `
		INSERT INTO dedup_resolutions (
			user_id, original_trade_id, duplicate_trade_hash,
			match_type, confidence_score, action_taken,
			resolved_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		r.UserID, r.OriginalTradeID, r.DuplicateTradeHash,
		string(r.MatchType), r.Confidence, string(r.Action),
		resolvedAt, metadata,
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
		SELECT match_type, action_taken, count() AS cnt, avg(confidence_score) AS avg_conf
		FROM dedup_resolutions
		WHERE user_id = ? AND resolved_at >= ?
		GROUP BY match_type, action_taken
		ORDER BY match_type ASC, action_taken ASC
	`

	rows, err := s.conn.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("aggregate resolutions: %w", err)
	}
	defer rows.Close()

	var result []domain.ResolutionAggregate
	for rows.Next() {
		var (
			matchType string
			action    string
			count     uint64
			avgConf   float64
		)
		if err := rows.Scan(&matchType, &action, &count, &avgConf); err != nil {
			return nil, fmt.Errorf("scan resolution aggregate row: %w", err)
		}
		result = append(result, domain.ResolutionAggregate{
			MatchType:     domain.MatchType(matchType),
			Action:        domain.ResolutionAction(action),
			Count:         int64(count),
			AvgConfidence: avgConf,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resolution aggregate rows: %w", err)
	}

	return result, nil
}

// DeleteOlderThan removes resolutions recorded before cutoff.
//
// ClickHouse deletes are asynchronous mutations, so the affected row count
// is measured with a count query first.
func (s *ResolutionLogStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count() FROM dedup_resolutions WHERE resolved_at < ?`, cutoff,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count old resolutions: %w", err)
	}

	err = s.conn.Exec(ctx,
		`ALTER TABLE dedup_resolutions DELETE WHERE resolved_at < ?`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete old resolutions: %w", err)
	}

	return int64(count), nil
}
