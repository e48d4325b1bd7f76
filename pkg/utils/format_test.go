package utils

import (
	"testing"
	"time"
	_ "time/tzdata"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{0, "-"},
		{1, "1.00"},
		{999.5, "999.50"},
		{1000, "1,000.00"},
		{67250.126, "67,250.13"},
		{1234567.891, "1,234,567.89"},
		{-2847.5, "-2,847.50"},
		{0.00012345, "0.000123"},
		{-0.5, "-0.500000"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := FormatPrice(tt.input)
			if result != tt.expected {
				t.Errorf("FormatPrice(%f) = %s, want %s", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatPct(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{2.45, "+2.45%"},
		{-1.23, "-1.23%"},
		{0, "+0.00%"},
		{100, "+100.00%"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := FormatPct(tt.input); got != tt.expected {
				t.Errorf("FormatPct(%f) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatCompact(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{500, "500"},
		{1500, "1.5K"},
		{25000000, "25M"},
		{3.2e9, "3.2B"},
		{1.05e12, "1.05T"},
		{-1500, "-1.5K"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := FormatCompact(tt.input); got != tt.expected {
				t.Errorf("FormatCompact(%f) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatInZone(t *testing.T) {
	ts := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		zone     string
		expected string
	}{
		{"UTC", "2024-03-05 09:30 UTC"},
		{"Asia/Kolkata", "2024-03-05 15:00 IST"},
		{"", "2024-03-05 09:30 UTC"},
		{"Mars/Olympus", "2024-03-05 09:30 UTC"},
	}

	for _, tt := range tests {
		t.Run(tt.zone, func(t *testing.T) {
			if got := FormatInZone(ts, tt.zone); got != tt.expected {
				t.Errorf("FormatInZone(%q) = %s, want %s", tt.zone, got, tt.expected)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		n        int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a longer sentence", 8, "a longe…"},
		{"multi\nline   text", 20, "multi line text"},
		{"ünïcödé", 4, "ünï…"},
		{"anything", 0, "anything"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Truncate(tt.input, tt.n); got != tt.expected {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.expected)
			}
		})
	}
}
