// Command retention prints deduplication statistics and optionally runs
// retention cleanup over fingerprints and the resolution audit log.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/tarigelamin1997/tradesense-sub005/internal/config"
	"github.com/tarigelamin1997/tradesense-sub005/internal/dedup"
	"github.com/tarigelamin1997/tradesense-sub005/internal/logging"
	"github.com/tarigelamin1997/tradesense-sub005/internal/matching"
	"github.com/tarigelamin1997/tradesense-sub005/internal/storage"
	"github.com/tarigelamin1997/tradesense-sub005/internal/storage/clickhouse"
	"github.com/tarigelamin1997/tradesense-sub005/internal/storage/migrations"
	"github.com/tarigelamin1997/tradesense-sub005/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	userID := flag.String("user", "", "User ID to report stats for")
	days := flag.Int("days", 30, "Trailing window in days for stats")
	cleanup := flag.Bool("cleanup", false, "Delete fingerprints and audit rows older than -keep-days")
	keepDays := flag.Int("keep-days", 365, "Retention period in days for -cleanup")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)

	ctx := context.Background()

	if cfg.Database.PostgresDSN == "" {
		logger.Error("database.postgres_dsn is required")
		os.Exit(1)
	}
	pool, err := postgres.NewPool(ctx, cfg.Database.PostgresDSN)
	if err != nil {
		logger.WithError(err).Error("postgres setup failed")
		os.Exit(1)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.WithError(err).Error("postgres migrations failed")
		os.Exit(1)
	}

	fingerprints := postgres.NewFingerprintStore(pool)

	var resolutions storage.ResolutionLogStore
	if cfg.Database.AuditBackend == "clickhouse" {
		conn, err := clickhouse.NewConn(ctx, cfg.Database.ClickhouseDSN)
		if err != nil {
			logger.WithError(err).Error("clickhouse setup failed")
			os.Exit(1)
		}
		defer conn.Close()
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			logger.WithError(err).Error("clickhouse migrations failed")
			os.Exit(1)
		}
		resolutions = clickhouse.NewResolutionLogStore(conn)
	} else {
		resolutions = postgres.NewResolutionLogStore(pool)
	}

	matcher := matching.NewMatcher(fingerprints, cfg.MatcherConfig(), logger)
	service := dedup.NewService(fingerprints, resolutions, matcher, logger)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if *userID != "" {
		stats, err := service.DeduplicationStats(ctx, *userID, *days)
		if err != nil {
			logger.WithError(err).Error("stats query failed")
			os.Exit(1)
		}
		if err := enc.Encode(stats); err != nil {
			logger.WithError(err).Error("encode stats")
			os.Exit(1)
		}
	}

	if *cleanup {
		result, err := service.CleanupOldFingerprints(ctx, *keepDays)
		if err != nil {
			logger.WithError(err).Error("cleanup failed")
			os.Exit(1)
		}
		if err := enc.Encode(result); err != nil {
			logger.WithError(err).Error("encode cleanup result")
			os.Exit(1)
		}
	}

	if *userID == "" && !*cleanup {
		fmt.Fprintln(os.Stderr, "usage: retention [-config config.yaml] [-user USER -days N] [-cleanup -keep-days N]")
		os.Exit(2)
	}
}
