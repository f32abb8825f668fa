package parser

import (
	"strconv"
	"strings"
)

// decimalDigits is the digit count after the last separator that marks it
// as a decimal point rather than a thousands separator.
const decimalDigits = 2

// thousandsDigits is the digit count after a separator in grouped notation.
const thousandsDigits = 3

// rangeMarkers split price ranges; the lower bound wins.
var rangeMarkers = []string{" to ", " - ", "–"}

// ParsePrice normalizes free-form price text into a numeric value.
// Currency symbols and separators are stripped; a separator followed by
// exactly two digits is treated as the decimal point, one followed by three
// digits as a thousands separator. A range such as "$10 to $20" reduces to
// its lower bound. Returns nil when no number can be extracted.
func ParsePrice(text string) *float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	// Reduce ranges to the lower bound.
	lowered := strings.ToLower(text)
	for _, marker := range rangeMarkers {
		if idx := strings.Index(lowered, marker); idx > 0 {
			text = text[:idx]
			break
		}
	}

	// Keep digits and separators only.
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.Trim(b.String(), ".,")
	if cleaned == "" {
		return nil
	}

	normalized := normalizeSeparators(cleaned)

	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return nil
	}

	return &value
}

// normalizeSeparators disambiguates comma-as-decimal from comma-as-thousands
// by checking the digit count after the last separator.
func normalizeSeparators(s string) string {
	lastSep := strings.LastIndexAny(s, ".,")
	if lastSep < 0 {
		return s
	}

	tail := len(s) - lastSep - 1

	if tail == thousandsDigits {
		// Grouped notation: "1,234" or "1.234" means 1234.
		return stripSeparators(s)
	}

	// Everything before the last separator is grouping; the tail is the
	// fractional part. Covers "1.234,56", "$1,234.56" and "10,5".
	head := stripSeparators(s[:lastSep])
	return head + "." + s[lastSep+1:]
}

// stripSeparators removes every dot and comma.
func stripSeparators(s string) string {
	s = strings.ReplaceAll(s, ",", "")
	return strings.ReplaceAll(s, ".", "")
}
