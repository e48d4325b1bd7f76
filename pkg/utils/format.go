// Package utils provides display helpers shared by the CLI and reports.
package utils

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// FormatPrice formats a price with thousands separators. Prices below 1
// keep six decimals so crypto pairs and forex quotes stay readable.
// e.g., 1234567.891 → "1,234,567.89", 0.00012345 → "0.000123"
func FormatPrice(price float64) string {
	if price == 0 {
		return "-"
	}
	negative := price < 0
	price = math.Abs(price)

	if price < 1 {
		s := fmt.Sprintf("%.6f", price)
		if negative {
			return "-" + s
		}
		return s
	}

	s := fmt.Sprintf("%.2f", price)
	intPart, decPart, _ := strings.Cut(s, ".")
	formatted := groupThousands(intPart) + "." + decPart
	if negative {
		return "-" + formatted
	}
	return formatted
}

// FormatPct formats a percentage value with sign and suffix.
// e.g., 2.45 → "+2.45%", -1.23 → "-1.23%"
func FormatPct(pct float64) string {
	if pct >= 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatCompact formats a volume or market cap in short notation.
// e.g., 1500 → "1.5K", 25000000 → "25M", 3.2e9 → "3.2B"
func FormatCompact(v float64) string {
	negative := v < 0
	v = math.Abs(v)

	var s string
	switch {
	case v >= 1e12:
		s = formatWithDecimals(v/1e12) + "T"
	case v >= 1e9:
		s = formatWithDecimals(v/1e9) + "B"
	case v >= 1e6:
		s = formatWithDecimals(v/1e6) + "M"
	case v >= 1e3:
		s = formatWithDecimals(v/1e3) + "K"
	default:
		s = formatWithDecimals(v)
	}
	if negative {
		return "-" + s
	}
	return s
}

// FormatInZone formats t as "2006-01-02 15:04 MST" in the named IANA zone.
// An unknown or empty zone falls back to UTC.
func FormatInZone(t time.Time, zone string) string {
	loc, err := time.LoadLocation(zone)
	if err != nil || zone == "" {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01-02 15:04 MST")
}

// Truncate shortens s to at most n runes, marking the cut with "…".
func Truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

// groupThousands inserts commas into a run of digits.
func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// formatWithDecimals formats a number with up to 2 decimal places,
// removing trailing zeros.
func formatWithDecimals(n float64) string {
	s := fmt.Sprintf("%.2f", n)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}
