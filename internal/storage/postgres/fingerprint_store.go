package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tarigelamin1997/tradesense-sub005/internal/domain"
	"github.com/tarigelamin1997/tradesense-sub005/internal/storage"
)

// FingerprintStore implements storage.FingerprintStore using PostgreSQL.
type FingerprintStore struct {
	pool *Pool
}

// NewFingerprintStore creates a new FingerprintStore.
func NewFingerprintStore(pool *Pool) *FingerprintStore {
	return &FingerprintStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FingerprintStore = (*FingerprintStore)(nil)

const fingerprintColumns = `
	trade_id, user_id, exact_hash, fuzzy_hash,
	symbol, entry_time, exit_time,
	entry_price, exit_price, qty, direction, data_source,
	entry_time_ms, created_at
`

// Upsert inserts a fingerprint, replacing any existing row with the same
// trade_id. The replacement refreshes created_at, so a re-registered trade
// restarts its retention clock.
func (s *FingerprintStore) Upsert(ctx context.Context, fp *domain.TradeFingerprint) error {
	if fp == nil || fp.TradeID == "" {
		return storage.ErrInvalidInput
	}

	createdAt := fp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO trade_fingerprints (
			trade_id, user_id, exact_hash, fuzzy_hash,
			symbol, entry_time, exit_time,
			entry_price, exit_price, qty, direction, data_source,
			entry_time_ms, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14
		)
		ON CONFLICT (trade_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			exact_hash = EXCLUDED.exact_hash,
			fuzzy_hash = EXCLUDED.fuzzy_hash,
			symbol = EXCLUDED.symbol,
			entry_time = EXCLUDED.entry_time,
			exit_time = EXCLUDED.exit_time,
			entry_price = EXCLUDED.entry_price,
			exit_price = EXCLUDED.exit_price,
			qty = EXCLUDED.qty,
			direction = EXCLUDED.direction,
			data_source = EXCLUDED.data_source,
			entry_time_ms = EXCLUDED.entry_time_ms,
			created_at = EXCLUDED.created_at
	`

	_, err := s.pool.Exec(ctx, query,
		fp.TradeID, fp.UserID, fp.ExactHash, fp.FuzzyHash,
		fp.Symbol, fp.EntryTime, fp.ExitTime,
		fp.EntryPrice, fp.ExitPrice, fp.Qty, fp.Direction, fp.DataSource,
		fp.EntryTimeMs, createdAt,
	)
	if err != nil {
		return fmt.Errorf("upsert fingerprint: %w", err)
	}
	return nil
}

// FindByExactHash retrieves the user's fingerprints with the given exact hash.
func (s *FingerprintStore) FindByExactHash(ctx context.Context, userID, exactHash string) ([]*domain.TradeFingerprint, error) {
	query := `
		SELECT ` + fingerprintColumns + `
		FROM trade_fingerprints
		WHERE user_id = $1 AND exact_hash = $2
		ORDER BY created_at ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, userID, exactHash)
	if err != nil {
		return nil, fmt.Errorf("find by exact hash: %w", err)
	}
	defer rows.Close()

	return scanFingerprints(rows)
}

// FindByFuzzyHash retrieves fuzzy-hash matches excluding exact-hash matches.
func (s *FingerprintStore) FindByFuzzyHash(ctx context.Context, userID, fuzzyHash, excludeExactHash string) ([]*domain.TradeFingerprint, error) {
	query := `
		SELECT ` + fingerprintColumns + `
		FROM trade_fingerprints
		WHERE user_id = $1 AND fuzzy_hash = $2 AND exact_hash <> $3
		ORDER BY created_at ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, userID, fuzzyHash, excludeExactHash)
	if err != nil {
		return nil, fmt.Errorf("find by fuzzy hash: %w", err)
	}
	defer rows.Close()

	return scanFingerprints(rows)
}

// FindBySymbolDirectionTimeRange retrieves fingerprints matching symbol and
// direction whose entry time falls within [startMs, endMs]. Rows without a
// parseable entry time are excluded.
func (s *FingerprintStore) FindBySymbolDirectionTimeRange(ctx context.Context, userID, symbol, direction string, startMs, endMs int64) ([]*domain.TradeFingerprint, error) {
	query := `
		SELECT ` + fingerprintColumns + `
		FROM trade_fingerprints
		WHERE user_id = $1
		  AND upper(symbol) = upper($2)
		  AND lower(direction) = lower($3)
		  AND entry_time_ms <> 0
		  AND entry_time_ms BETWEEN $4 AND $5
		ORDER BY created_at ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, userID, symbol, direction, startMs, endMs)
	if err != nil {
		return nil, fmt.Errorf("find by symbol/direction/time range: %w", err)
	}
	defer rows.Close()

	return scanFingerprints(rows)
}

// Count returns the number of fingerprints registered for the user.
func (s *FingerprintStore) Count(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM trade_fingerprints WHERE user_id = $1`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count fingerprints: %w", err)
	}
	return n, nil
}

// DeleteOlderThan removes fingerprints created before cutoff.
func (s *FingerprintStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM trade_fingerprints WHERE created_at < $1`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete old fingerprints: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanFingerprints scans multiple rows into a slice of TradeFingerprint.
func scanFingerprints(rows pgx.Rows) ([]*domain.TradeFingerprint, error) {
	var fps []*domain.TradeFingerprint

	for rows.Next() {
		var fp domain.TradeFingerprint

		err := rows.Scan(
			&fp.TradeID, &fp.UserID, &fp.ExactHash, &fp.FuzzyHash,
			&fp.Symbol, &fp.EntryTime, &fp.ExitTime,
			&fp.EntryPrice, &fp.ExitPrice, &fp.Qty, &fp.Direction, &fp.DataSource,
			&fp.EntryTimeMs, &fp.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fingerprint row: %w", err)
		}

		fps = append(fps, &fp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fingerprint rows: %w", err)
	}

	return fps, nil
}
