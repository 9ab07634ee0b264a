package exporter

import (
	"strconv"
)

// formatFloat formats a level for CSV output with fixed precision
func formatFloat(f float64, prec int) string {
	return strconv.FormatFloat(f, 'f', prec, 64)
}

// formatYear drops the fractional part of whole years
func formatYear(y float64) string {
	return strconv.FormatFloat(y, 'f', -1, 64)
}
