// Command dedup runs a batch of imported trades through the deduplication
// service and prints the batch report as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tarigelamin1997/tradesense-sub005/internal/config"
	"github.com/tarigelamin1997/tradesense-sub005/internal/dedup"
	"github.com/tarigelamin1997/tradesense-sub005/internal/domain"
	"github.com/tarigelamin1997/tradesense-sub005/internal/logging"
	"github.com/tarigelamin1997/tradesense-sub005/internal/matching"
	"github.com/tarigelamin1997/tradesense-sub005/internal/storage"
	"github.com/tarigelamin1997/tradesense-sub005/internal/storage/clickhouse"
	"github.com/tarigelamin1997/tradesense-sub005/internal/storage/memory"
	"github.com/tarigelamin1997/tradesense-sub005/internal/storage/migrations"
	"github.com/tarigelamin1997/tradesense-sub005/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional, defaults apply)")
	inputPath := flag.String("input", "", "Path to JSON file with an array of trade objects")
	userID := flag.String("user", "", "User ID owning the trades")
	autoResolve := flag.Bool("auto-resolve", true, "Auto-discard duplicates at or above the 0.95 confidence threshold")
	register := flag.Bool("register", false, "Register accepted trades as fingerprints after deduplication")
	backend := flag.String("storage", "memory", "Storage backend: memory or postgres")
	flag.Parse()

	if *inputPath == "" || *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: dedup -input trades.json -user USER [-config config.yaml] [-auto-resolve] [-register] [-storage memory|postgres]")
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warnf("received signal %v, cancelling", sig)
		cancel()
	}()

	fingerprints, resolutions, closeStores, err := buildStores(ctx, cfg, *backend)
	if err != nil {
		logger.WithError(err).Error("storage setup failed")
		os.Exit(1)
	}
	defer closeStores()

	trades, parseErrors := loadTrades(*inputPath)
	if trades == nil && len(parseErrors) == 0 {
		logger.Errorf("no trades found in %s", *inputPath)
		os.Exit(1)
	}

	matcher := matching.NewMatcher(fingerprints, cfg.MatcherConfig(), logger)
	service := dedup.NewService(fingerprints, resolutions, matcher, logger)

	result := service.DeduplicateTrades(ctx, trades, *userID, *autoResolve)
	result.ProcessingErrors = append(result.ProcessingErrors, parseErrors...)
	result.OriginalCount += len(parseErrors)

	if *register {
		accepted := make([]domain.TradeRecord, 0, len(result.UniqueTrades))
		for _, t := range result.UniqueTrades {
			accepted = append(accepted, t.Trade)
		}
		registered, err := service.RegisterTrades(ctx, accepted, *userID)
		if err != nil {
			logger.WithError(err).Error("registration failed")
			os.Exit(1)
		}
		logger.Infof("registered %d of %d accepted trades", registered, len(accepted))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		logger.WithError(err).Error("encode result")
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadAndValidate(path)
}

// loadTrades reads the input file and coerces each JSON object into a
// TradeRecord. Objects that fail coercion become processing errors instead
// of aborting the run.
func loadTrades(path string) ([]domain.TradeRecord, []domain.ProcessingError) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}

	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing input: %v\n", err)
		os.Exit(1)
	}

	var (
		trades      []domain.TradeRecord
		parseErrors []domain.ProcessingError
	)
	for _, obj := range raw {
		trade, err := domain.ParseTradeRecord(obj)
		if err != nil {
			parseErrors = append(parseErrors, domain.ProcessingError{
				Trade: domain.TradeRecord{TradeID: fmt.Sprint(obj["trade_id"])},
				Err:   err.Error(),
			})
			continue
		}
		trades = append(trades, trade)
	}
	return trades, parseErrors
}

// buildStores wires the fingerprint store and audit log for the selected
// backend. The returned func closes any opened connections.
func buildStores(ctx context.Context, cfg *config.Config, backend string) (storage.FingerprintStore, storage.ResolutionLogStore, func(), error) {
	switch backend {
	case "memory":
		return memory.NewFingerprintStore(), memory.NewResolutionLogStore(), func() {}, nil

	case "postgres":
		if cfg.Database.PostgresDSN == "" {
			return nil, nil, nil, fmt.Errorf("database.postgres_dsn is required for the postgres backend")
		}
		pool, err := postgres.NewPool(ctx, cfg.Database.PostgresDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}

		fingerprints := postgres.NewFingerprintStore(pool)

		if cfg.Database.AuditBackend == "clickhouse" {
			conn, err := clickhouse.NewConn(ctx, cfg.Database.ClickhouseDSN)
			if err != nil {
				pool.Close()
				return nil, nil, nil, err
			}
			if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
				conn.Close()
				pool.Close()
				return nil, nil, nil, err
			}
			closeAll := func() {
				conn.Close()
				pool.Close()
			}
			return fingerprints, clickhouse.NewResolutionLogStore(conn), closeAll, nil
		}

		return fingerprints, postgres.NewResolutionLogStore(pool), pool.Close, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
