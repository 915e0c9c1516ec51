package board

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Lenient number parsing for client-supplied structural fields. Clients send
// numbers, numeric strings and sometimes garbage; none of it is rejected.

const numberSpace = " \t\n\r\v\f\u00a0\ufeff"

var (
	leadingIntPattern   = regexp.MustCompile(`^[+-]?\d+`)
	leadingFloatPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	fullNumberPattern   = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
)

// parseIntPrefix returns the integer value of a size-like field. Numbers are
// truncated toward zero, strings contribute their leading integer. Anything
// that does not parse yields 0.
func parseIntPrefix(raw json.RawMessage) int {
	v, ok := decodeValue(raw)
	if !ok {
		return 0
	}

	switch t := v.(type) {
	case float64:
		return truncate(t)
	case string:
		m := leadingIntPattern.FindString(strings.TrimLeft(t, numberSpace))
		if m == "" {
			return 0
		}
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0
		}
		return truncate(f)
	}
	return 0
}

// parseFloatPrefix returns the float value of a coordinate-like field. Strings
// contribute their leading decimal number. Anything that does not parse
// yields NaN.
func parseFloatPrefix(raw json.RawMessage) float64 {
	v, ok := decodeValue(raw)
	if !ok {
		return math.NaN()
	}

	switch t := v.(type) {
	case float64:
		return t
	case string:
		s := strings.TrimLeft(t, numberSpace)
		if inf, ok := parseInfinity(s, false); ok {
			return inf
		}
		m := leadingFloatPattern.FindString(s)
		if m == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}

// toNumber converts a field the way a whole-value numeric conversion would:
// null, false and empty strings are 0, true is 1, strings must be entirely
// numeric, everything else is NaN.
func toNumber(raw json.RawMessage) float64 {
	v, ok := decodeValue(raw)
	if !ok {
		return math.NaN()
	}

	switch t := v.(type) {
	case nil:
		return 0
	case bool:
		if t {
			return 1
		}
		return 0
	case float64:
		return t
	case string:
		s := strings.Trim(t, numberSpace)
		if s == "" {
			return 0
		}
		if inf, ok := parseInfinity(s, true); ok {
			return inf
		}
		if !fullNumberPattern.MatchString(s) {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}

// decodeValue decodes a raw JSON value. Numbers outside the float64 range,
// which encoding/json rejects, decode to ±Inf.
func decodeValue(raw json.RawMessage) (interface{}, bool) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil, false
	}
	return f, true
}

func parseInfinity(s string, exact bool) (float64, bool) {
	for _, candidate := range []struct {
		text string
		sign int
	}{{"Infinity", 1}, {"+Infinity", 1}, {"-Infinity", -1}} {
		if s == candidate.text || (!exact && strings.HasPrefix(s, candidate.text)) {
			return math.Inf(candidate.sign), true
		}
	}
	return 0, false
}

// truncate converts f to an int toward zero, saturating at the int32 range.
func truncate(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}
