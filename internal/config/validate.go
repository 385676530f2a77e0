package config

import "errors"

// Validate checks that all values are in range.
func (c *Config) Validate() error {
	if c.Dedup.TimeToleranceMinutes < 1 {
		return errors.New("dedup.time_tolerance_minutes must be >= 1")
	}
	if c.Dedup.PriceTolerancePercent <= 0 {
		return errors.New("dedup.price_tolerance_percent must be > 0")
	}
	if c.Dedup.MinimumConfidenceScore < 0 || c.Dedup.MinimumConfidenceScore > 1 {
		return errors.New("dedup.minimum_confidence_score must be in [0, 1]")
	}

	switch c.Database.AuditBackend {
	case "postgres", "clickhouse":
	default:
		return errors.New("database.audit_backend must be \"postgres\" or \"clickhouse\"")
	}
	if c.Database.AuditBackend == "clickhouse" && c.Database.ClickhouseDSN == "" {
		return errors.New("database.clickhouse_dsn is required for the clickhouse audit backend")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return errors.New("logging.format must be \"text\" or \"json\"")
	}

	return nil
}
