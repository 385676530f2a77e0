// Package fingerprint derives the deterministic digests used as duplicate
// lookup keys for trade records.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tarigelamin1997/tradesense-sub005/internal/domain"
)

// ErrUnparseableTime signals that FuzzyHash degraded to the exact hash
// because a trade time could not be parsed.
var ErrUnparseableTime = errors.New("unparseable trade time")

// fuzzyTimeBucket is the rounding granularity for fuzzy time matching.
const fuzzyTimeBucket = 5 * time.Minute

// Accepted layouts for trade timestamps, tried in order.
var tradeTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ExactHash computes SHA256(SYMBOL|entry_time|exit_time|entry_price|
// exit_price|qty|direction) over the trade's precision-preserving fields.
// Times are used verbatim, prices and qty at exactly 6 decimal places.
// Returns hex-encoded hash (64 characters).
func ExactHash(t domain.TradeRecord) string {
	data := strings.Join([]string{
		strings.ToUpper(t.Symbol),
		t.EntryTime,
		t.ExitTime,
		fmt.Sprintf("%.6f", t.EntryPrice),
		fmt.Sprintf("%.6f", t.ExitPrice),
		fmt.Sprintf("%.6f", t.Qty),
		strings.ToLower(t.Direction),
	}, "|")

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// FuzzyHash computes the tolerance-bucketed digest: times rounded to the
// nearest 5-minute boundary, prices and qty to 2 decimal places.
//
// When a time cannot be parsed the function returns the exact hash together
// with an error wrapping ErrUnparseableTime. Callers log the degradation and
// keep going; a fuzzy-hash failure never aborts the pipeline.
func FuzzyHash(t domain.TradeRecord) (string, error) {
	entry, err := ParseTradeTime(t.EntryTime)
	if err != nil {
		return ExactHash(t), fmt.Errorf("%w: entry_time %q", ErrUnparseableTime, t.EntryTime)
	}
	exit, err := ParseTradeTime(t.ExitTime)
	if err != nil {
		return ExactHash(t), fmt.Errorf("%w: exit_time %q", ErrUnparseableTime, t.ExitTime)
	}

	data := strings.Join([]string{
		strings.ToUpper(t.Symbol),
		entry.Round(fuzzyTimeBucket).Format("2006-01-02 15:04"),
		exit.Round(fuzzyTimeBucket).Format("2006-01-02 15:04"),
		fmt.Sprintf("%.2f", t.EntryPrice),
		fmt.Sprintf("%.2f", t.ExitPrice),
		fmt.Sprintf("%.2f", t.Qty),
		strings.ToLower(t.Direction),
	}, "|")

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:]), nil
}

// ParseTradeTime parses a raw trade timestamp string, trying the accepted
// layouts in order. Layouts without a zone are interpreted as UTC.
func ParseTradeTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrUnparseableTime)
	}

	for _, layout := range tradeTimeLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableTime, s)
}

// EntryTimeMs returns the trade's entry time in Unix milliseconds, or 0 when
// it cannot be parsed. Used for the proximity-match range queries.
func EntryTimeMs(t domain.TradeRecord) int64 {
	ts, err := ParseTradeTime(t.EntryTime)
	if err != nil {
		return 0
	}
	return ts.UnixMilli()
}
