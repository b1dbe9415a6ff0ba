package parse

import (
	"math"
	"strconv"
	"strings"
)

// ParseAmount normalizes a price-shaped token into a decimal value,
// tolerating both comma-decimal ("1.234,56") and dot-decimal ("1,234.56")
// conventions. A single separator followed by exactly two digits is read as
// the decimal mark; one followed by three digits is a thousands group.
func ParseAmount(s string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			return r
		}
		return -1
	}, s)
	cleaned = strings.Trim(cleaned, ".,")
	if cleaned == "" {
		return 0, false
	}
	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")
	var normalized string
	switch {
	case lastDot >= 0 && lastComma >= 0:
		// Both present: the rightmost separator is the decimal mark.
		if lastComma > lastDot {
			normalized = strings.ReplaceAll(cleaned, ".", "")
			normalized = strings.Replace(normalized, ",", ".", 1)
		} else {
			normalized = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastDot >= 0:
		normalized = normalizeSingleSep(cleaned, ".")
	case lastComma >= 0:
		normalized = normalizeSingleSep(cleaned, ",")
	default:
		normalized = cleaned
	}
	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, false
	}
	return round2(v), true
}

func normalizeSingleSep(s, sep string) string {
	if strings.Count(s, sep) > 1 {
		// Repeated separator can only be grouping ("1.234.567").
		return strings.ReplaceAll(s, sep, "")
	}
	idx := strings.LastIndex(s, sep)
	frac := len(s) - idx - 1
	if frac == 3 {
		return strings.ReplaceAll(s, sep, "")
	}
	return strings.Replace(s, sep, ".", 1)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
