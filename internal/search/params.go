package search

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	DefaultLimit    = 10
	MaxLimit        = 50
	DefaultMinScore = 0.7

	DefaultConnectionsLimit    = 10
	MaxConnectionsLimit        = 20
	DefaultConnectionsMinScore = 0.6

	// MaxFreshness is the highest QDF level.
	MaxFreshness = 5
)

var qdfRe = regexp.MustCompile(`--QDF=(\d)`)

// ParseLimit coerces a loosely typed limit (JSON number, string, nil) into
// [1, max]. Absent, non-numeric or non-finite input yields def.
func ParseLimit(v any, def, max int) int {
	var f float64
	switch val := v.(type) {
	case nil:
		return def
	case int:
		return ClampLimit(val, max)
	case int64:
		f = float64(val)
	case float64:
		f = val
	case float32:
		f = float64(val)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return def
		}
		f = parsed
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	if f > float64(max) {
		return max
	}
	return ClampLimit(int(math.Floor(f)), max)
}

// ClampLimit bounds n to [1, max].
func ClampLimit(n, max int) int {
	if n < 1 {
		return 1
	}
	if n > max {
		return max
	}
	return n
}

// ParseMinScore coerces a loosely typed score threshold into [0, 1].
func ParseMinScore(v any, def float64) float64 {
	switch val := v.(type) {
	case float64:
		return ClampMinScore(val, def)
	case float32:
		return ClampMinScore(float64(val), def)
	case int:
		return ClampMinScore(float64(val), def)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return def
		}
		return ClampMinScore(parsed, def)
	default:
		return def
	}
}

// ClampMinScore bounds s to [0, 1]; non-finite input yields def.
func ClampMinScore(s, def float64) float64 {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return def
	}
	return math.Min(1, math.Max(0, s))
}

// ParseFreshness extracts a "--QDF=<digit>" marker from query. It returns
// the level (0 when absent, at most MaxFreshness) and the query with the
// marker removed.
func ParseFreshness(query string) (int, string) {
	loc := qdfRe.FindStringSubmatchIndex(query)
	if loc == nil {
		return 0, strings.TrimSpace(query)
	}
	level, _ := strconv.Atoi(query[loc[2]:loc[3]])
	clean := strings.TrimSpace(query[:loc[0]] + query[loc[1]:])
	return min(level, MaxFreshness), clean
}

// freshnessWindowDays maps a QDF level to its recency window.
func freshnessWindowDays(level int) int {
	switch {
	case level >= 5:
		return 30
	case level == 4:
		return 60
	default:
		return 90
	}
}

// freshnessFactor is the score multiplier for in-window notes.
func freshnessFactor(level int) float64 {
	return 1 + 0.05*float64(level-2)
}
