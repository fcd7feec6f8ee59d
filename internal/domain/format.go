package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// ─── Display Formatting ─────────────────────────────────────────────────────

var binaryPrefixes = []string{"", "ki", "Mi", "Gi", "Ti", "Pi", "Ei", "Zi", "Yi"}

// FormatBits renders a bit count. Below 8 KiB the raw count is shown with digit
// grouping ("1,024 b"); above it the value is converted to bytes with a binary
// prefix ("1.500 kiB"). Short mode drops the fraction digits.
func FormatBits(bits float64, short bool) string {
	if bits < 1024*8 {
		return humanize.Comma(int64(math.Floor(bits))) + " b"
	}
	return formatUnit(bits/8, "B", short)
}

// FormatHertz renders a clock speed with a binary prefix ("2.000 kiHz").
func FormatHertz(hz float64, short bool) string {
	return formatUnit(hz, "Hz", short)
}

func formatUnit(num float64, unit string, short bool) string {
	idx := 0
	if num >= 1 {
		idx = int(math.Floor(math.Log2(num) / 10))
	}
	if idx >= len(binaryPrefixes) {
		idx = len(binaryPrefixes) - 1
	}
	significant := num / math.Pow(2, float64(idx*10))
	floored := math.Floor(significant*1000) / 1000

	var formatted string
	if short {
		formatted = humanize.Comma(int64(math.Round(floored)))
	} else {
		whole := math.Floor(floored)
		frac := fmt.Sprintf("%.3f", floored-whole)
		formatted = humanize.Comma(int64(whole)) + strings.TrimPrefix(frac, "0")
	}
	return fmt.Sprintf("%s %s%s", formatted, binaryPrefixes[idx], unit)
}

// FormatTime renders whole seconds as "1h, 2m, 3s", omitting zero parts.
func FormatTime(seconds float64) string {
	if seconds <= 0 || math.IsInf(seconds, 0) || math.IsNaN(seconds) {
		return ""
	}
	total := int64(seconds)
	hours := total / 3600
	minutes := (total / 60) % 60
	secs := total % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if secs > 0 {
		parts = append(parts, fmt.Sprintf("%ds", secs))
	}
	return strings.Join(parts, ", ")
}

// FormatBinary renders n in binary, zero-padded to width and grouped in bytes.
func FormatBinary(n uint64, width int) string {
	s := fmt.Sprintf("%0*b", width, n)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%8 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
