package domain

import (
	"fmt"
	"strconv"
)

// TradeRecord is one imported trade as it enters the dedup pipeline.
//
// EntryTime and ExitTime keep the raw string representation from the import
// source. Exact-hash identity is defined over the verbatim strings, so two
// spellings of the same instant are distinct on purpose.
type TradeRecord struct {
	TradeID    string
	Symbol     string
	EntryTime  string
	ExitTime   string
	EntryPrice float64
	ExitPrice  float64
	Qty        float64
	Direction  string
	DataSource string
}

// Trade direction constants
const (
	DirectionLong  = "long"
	DirectionShort = "short"
)

// ParseTradeRecord coerces a loosely-typed import payload (decoded JSON
// object) into a TradeRecord. Missing keys default to empty/zero; numeric
// fields that cannot be coerced fail here, at the boundary, rather than
// deeper in the pipeline.
func ParseTradeRecord(raw map[string]any) (TradeRecord, error) {
	t := TradeRecord{
		TradeID:    stringField(raw, "trade_id"),
		Symbol:     stringField(raw, "symbol"),
		EntryTime:  stringField(raw, "entry_time"),
		ExitTime:   stringField(raw, "exit_time"),
		Direction:  stringField(raw, "direction"),
		DataSource: stringField(raw, "data_source"),
	}

	var err error
	if t.EntryPrice, err = floatField(raw, "entry_price"); err != nil {
		return TradeRecord{}, err
	}
	if t.ExitPrice, err = floatField(raw, "exit_price"); err != nil {
		return TradeRecord{}, err
	}
	if t.Qty, err = floatField(raw, "qty"); err != nil {
		return TradeRecord{}, err
	}

	return t, nil
}

func stringField(raw map[string]any, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func floatField(raw map[string]any, key string) (float64, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return 0, nil
	}

	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("parse %s %q: %w", key, n, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("parse %s: unsupported type %T", key, v)
	}
}
