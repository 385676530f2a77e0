package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tarigelamin1997/tradesense-sub005/internal/domain"
)

// setupTestDB creates a PostgreSQL container for testing and applies the
// embedded migrations. Returns a cleanup function that must be called after
// tests complete.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	runMigrations(t, ctx, pool)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// runMigrations applies the schema. The migrations package imports this one,
// so its runner cannot be used here; the statements mirror
// internal/storage/migrations/postgres/.
func runMigrations(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS trade_fingerprints (
			trade_id      TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			exact_hash    CHAR(64) NOT NULL,
			fuzzy_hash    CHAR(64) NOT NULL,
			symbol        TEXT NOT NULL DEFAULT '',
			entry_time    TEXT NOT NULL DEFAULT '',
			exit_time     TEXT NOT NULL DEFAULT '',
			entry_price   DOUBLE PRECISION NOT NULL DEFAULT 0,
			exit_price    DOUBLE PRECISION NOT NULL DEFAULT 0,
			qty           DOUBLE PRECISION NOT NULL DEFAULT 0,
			direction     TEXT NOT NULL DEFAULT '',
			data_source   TEXT NOT NULL DEFAULT '',
			entry_time_ms BIGINT NOT NULL DEFAULT 0,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fingerprints_user_exact
			ON trade_fingerprints (user_id, exact_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_fingerprints_user_fuzzy
			ON trade_fingerprints (user_id, fuzzy_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_fingerprints_user_symbol_entry
			ON trade_fingerprints (user_id, symbol, direction, entry_time_ms)`,
		`CREATE INDEX IF NOT EXISTS idx_fingerprints_created_at
			ON trade_fingerprints (created_at)`,
		`CREATE TABLE IF NOT EXISTS dedup_resolutions (
			id                   BIGSERIAL PRIMARY KEY,
			user_id              TEXT NOT NULL,
			original_trade_id    TEXT NOT NULL,
			duplicate_trade_hash CHAR(64) NOT NULL,
			match_type           TEXT NOT NULL,
			confidence_score     DOUBLE PRECISION NOT NULL,
			action_taken         TEXT NOT NULL,
			resolved_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
			metadata             JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_resolutions_user_resolved
			ON dedup_resolutions (user_id, resolved_at)`,
		`CREATE INDEX IF NOT EXISTS idx_resolutions_resolved_at
			ON dedup_resolutions (resolved_at)`,
	}

	for _, stmt := range statements {
		_, err := pool.Exec(ctx, stmt)
		require.NoError(t, err, "failed to apply schema statement")
	}
}

// testFingerprint builds a fingerprint row with distinct hashes per trade ID.
func testFingerprint(tradeID, userID string) *domain.TradeFingerprint {
	return &domain.TradeFingerprint{
		TradeID:     tradeID,
		UserID:      userID,
		ExactHash:   padHash("exact-" + tradeID),
		FuzzyHash:   padHash("fuzzy-" + tradeID),
		Symbol:      "ES",
		EntryTime:   "2024-01-01T10:00:00",
		ExitTime:    "2024-01-01T10:30:00",
		EntryPrice:  4500,
		ExitPrice:   4510,
		Qty:         2,
		Direction:   "long",
		DataSource:  "broker_csv",
		EntryTimeMs: 1704103200000,
		CreatedAt:   time.Now().UTC(),
	}
}

// padHash pads a test hash to the CHAR(64) column width.
func padHash(s string) string {
	for len(s) < 64 {
		s += "0"
	}
	return s
}
