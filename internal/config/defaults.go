package config

// Default values for optional configuration fields.
const (
	DefaultTimeToleranceMinutes   = 5
	DefaultPriceTolerancePercent  = 0.01
	DefaultMinimumConfidenceScore = 0.85
	DefaultAuditBackend           = "postgres"
	DefaultLogLevel               = "info"
	DefaultLogFormat              = "text"
)

func (c *Config) applyDefaults() {
	if c.Dedup.TimeToleranceMinutes == 0 {
		c.Dedup.TimeToleranceMinutes = DefaultTimeToleranceMinutes
	}
	if c.Dedup.PriceTolerancePercent == 0 {
		c.Dedup.PriceTolerancePercent = DefaultPriceTolerancePercent
	}
	if c.Dedup.MinimumConfidenceScore == 0 {
		c.Dedup.MinimumConfidenceScore = DefaultMinimumConfidenceScore
	}
	if c.Database.AuditBackend == "" {
		c.Database.AuditBackend = DefaultAuditBackend
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}
