package cursor

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Coercion from the loosely-typed values produced by database/sql drivers and
// in-memory rows to the engine's primitive set. Drivers disagree on how they
// surface numerics (sqlite reports everything as int64/float64/string), so
// every accessor funnels through these helpers.

func coerceBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case int:
		return x != 0
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	}
	return false
}

func coerceInt(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	case uint8:
		return int64(x)
	case uint64:
		return int64(x)
	case float64:
		return int64(x)
	case []byte:
		n, _ := strconv.ParseInt(string(x), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(x, 10, 64)
		return n
	}
	return 0
}

func coerceFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case []byte:
		f, _ := strconv.ParseFloat(string(x), 64)
		return f
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	}
	return 0
}

func coerceDecimal(v any) decimal.Decimal {
	switch x := v.(type) {
	case decimal.Decimal:
		return x
	case float64:
		return decimal.NewFromFloat(x)
	case float32:
		return decimal.NewFromFloat32(x)
	case int64:
		return decimal.NewFromInt(x)
	case int:
		return decimal.NewFromInt(int64(x))
	case []byte:
		d, err := decimal.NewFromString(string(x))
		if err == nil {
			return d
		}
	case string:
		d, err := decimal.NewFromString(x)
		if err == nil {
			return d
		}
	}
	return decimal.Zero
}

func coerceTime(v any) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x
	case []byte:
		t, _ := time.Parse(time.RFC3339Nano, string(x))
		return t
	case string:
		t, _ := time.Parse(time.RFC3339Nano, x)
		return t
	case int64:
		return time.UnixMilli(x).UTC()
	}
	return time.Time{}
}

func coerceUUID(v any) uuid.UUID {
	switch x := v.(type) {
	case uuid.UUID:
		return x
	case [16]byte:
		return uuid.UUID(x)
	case []byte:
		if id, err := uuid.ParseBytes(x); err == nil {
			return id
		}
		if id, err := uuid.FromBytes(x); err == nil {
			return id
		}
	case string:
		id, _ := uuid.Parse(x)
		return id
	}
	return uuid.Nil
}

func coerceString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case rune:
		return string(x)
	}
	return ""
}

func coerceChar(v any) rune {
	switch x := v.(type) {
	case rune:
		return x
	case string:
		for _, r := range x {
			return r
		}
	case []byte:
		for _, r := range string(x) {
			return r
		}
	case int64:
		return rune(x)
	}
	return 0
}
