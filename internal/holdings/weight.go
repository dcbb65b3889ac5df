package holdings

import (
	"math"
	"strconv"
	"strings"
)

// ParseWeight coerces a raw weight cell into a percentage float.
// Percent signs are stripped and decimal commas replaced before
// parsing; anything that does not come out as a finite non-negative
// number is rejected.
func ParseWeight(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "%", "")
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	w, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
		return 0, false
	}
	return w, true
}
