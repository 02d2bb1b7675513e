package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Shape patterns for sniffing legacy plain-text values. These intentionally
// stay narrow: anything not clearly numeric or date-like remains a string.
var (
	intShape   = regexp.MustCompile(`^-?\d+$`)
	floatShape = regexp.MustCompile(`^-?\d+\.\d+([eE][+-]?\d+)?$`)
)

// dateShapes are tried in order when a legacy value looks like a timestamp.
var dateShapes = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// Coerce interprets a raw stored string as a typed value. It tries a codec
// decode first; on ErrNotEncoded it falls back to sniffing the textual shape
// of the legacy value: null tokens, booleans, integers, floats, and ISO-ish
// timestamps. Timestamp keys ending in "_gmt" are read as UTC, everything
// else in the site-local location.
//
// A corrupt encoded value is returned as the raw string alongside the
// ErrCorrupt error so callers can log it without losing the display value.
func Coerce(key, raw string, local *time.Location) (any, error) {
	v, err := Decode(raw)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNotEncoded) {
		return raw, err
	}

	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "null", "nil":
		return nil, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	}

	if intShape.MatchString(raw) {
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i, nil
		}
		// Overflows int64: leave as string rather than lose digits.
		return raw, nil
	}
	if floatShape.MatchString(raw) {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f, nil
		}
	}

	if local == nil {
		local = time.Local
	}
	loc := local
	if strings.HasSuffix(key, "_gmt") {
		loc = time.UTC
	}
	for _, shape := range dateShapes {
		if t, err := time.ParseInLocation(shape, raw, loc); err == nil {
			return t, nil
		}
	}

	return raw, nil
}

// Equal reports semantic equality of two values after normalization: same
// type and same value. Timestamps compare as instants; composite values and
// value objects compare by their canonical JSON form, never by reference
// identity.
func Equal(a, b any) bool {
	a, b = normalize(a), normalize(b)

	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}

	switch a.(type) {
	case bool, int64, float64, string:
		return a == b
	}

	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}

// normalize collapses the integer and float zoo to int64/float64 so values
// loaded from different paths compare equal.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
