// Package format turns byte counts and counters into display strings.
package format

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var sizes = []string{"B", "KB", "MB", "GB", "TB", "PB"}

var printer = message.NewPrinter(language.English)

// Bytes renders n with 1024-based units and two decimals, e.g. "1.50 KB".
func Bytes(n uint64) string {
	if n == 0 {
		return "0 B"
	}

	value := float64(n)
	i := 0
	for value >= 1024 && i < len(sizes)-1 {
		value /= 1024
		i++
	}
	return fmt.Sprintf("%.2f %s", value, sizes[i])
}

// Megabytes renders n as whole megabytes with thousands separators.
func Megabytes(n uint64) string {
	if n == 0 {
		return "0 MB"
	}
	mb := math.Round(float64(n) / (1024 * 1024))
	return printer.Sprintf("%d MB", int64(mb))
}

// Number renders n with thousands separators.
func Number(n uint64) string {
	return printer.Sprintf("%d", n)
}

// Percent renders a signed percentage with one decimal.
func Percent(p float64) string {
	return fmt.Sprintf("%+.1f%%", p)
}
