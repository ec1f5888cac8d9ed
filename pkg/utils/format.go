package utils

import (
	"math"
	"strconv"
	"strings"
)

// FormatDecimal renders v the way clinicians typed it: shortest round-trip
// representation, always with a fractional part ("1.0", "4.25", "12.0").
func FormatDecimal(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}
