// Package config loads the deduplication service configuration from YAML
// with environment variable expansion.
package config

import (
	"github.com/tarigelamin1997/tradesense-sub005/internal/matching"
)

// Config is the root configuration for the dedup service.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Dedup    DedupConfig    `yaml:"dedup"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds storage backend connections. PostgresDSN is required
// for the postgres backend; ClickhouseDSN is only needed when the audit log
// backend is "clickhouse".
type DatabaseConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	AuditBackend  string `yaml:"audit_backend"` // "postgres" or "clickhouse"
}

// DedupConfig holds the tunable matching thresholds.
type DedupConfig struct {
	TimeToleranceMinutes   int     `yaml:"time_tolerance_minutes"`
	PriceTolerancePercent  float64 `yaml:"price_tolerance_percent"`
	MinimumConfidenceScore float64 `yaml:"minimum_confidence_score"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// MatcherConfig converts the dedup section into matching thresholds.
func (c *Config) MatcherConfig() matching.Config {
	return matching.Config{
		TimeToleranceMinutes:   c.Dedup.TimeToleranceMinutes,
		PriceTolerancePercent:  c.Dedup.PriceTolerancePercent,
		MinimumConfidenceScore: c.Dedup.MinimumConfidenceScore,
	}
}
